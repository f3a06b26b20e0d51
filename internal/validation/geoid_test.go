package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/canonical"
)

func TestGeoid_NoReferenceConfiguredWarns(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCongressional, "50", recordAt("5000", "At Large", boundary.LayerCongressional, -73, 44, 0.1))
	result := p.geoid(fc)
	assert.False(t, result.Rejected)
	assert.NotEmpty(t, result.Warnings)
}

func TestGeoid_CompleteMatchScoresHigh(t *testing.T) {
	ref, err := canonical.Load()
	require.NoError(t, err)
	p := New(ref, nil, DefaultThresholds())

	fc := collectionOf(boundary.LayerCongressional, "50", recordAt("5000", "At Large", boundary.LayerCongressional, -73, 44, 0.1))
	result := p.geoid(fc)
	assert.False(t, result.Rejected)
	assert.Equal(t, 95, result.Confidence)
}

func TestGeoid_MissingExpectedGeoidRejects(t *testing.T) {
	ref, err := canonical.Load()
	require.NoError(t, err)
	p := New(ref, nil, DefaultThresholds())

	fc := collectionOf(boundary.LayerCounty, "06", recordAt("06001", "Alameda County", boundary.LayerCounty, -122, 37, 0.1))
	result := p.geoid(fc)
	assert.True(t, result.Rejected)
}
