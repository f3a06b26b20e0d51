package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shadowatlas/internal/boundary"
)

func TestNamePattern_EmptyCollectionIsLowConfidenceNotRejected(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	result := p.namePattern(collectionOf(boundary.LayerCouncilDistrict, "50"))
	assert.False(t, result.Rejected)
	assert.Equal(t, 60, result.Confidence)
}

func TestNamePattern_WellFormedDistrictNamesScoreHigh(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCouncilDistrict, "50",
		recordAt("1", "District 1", boundary.LayerCouncilDistrict, -73, 44, 0.1),
		recordAt("2", "District 2", boundary.LayerCouncilDistrict, -73, 44, 0.1),
	)
	result := p.namePattern(fc)
	assert.False(t, result.Rejected)
	assert.Equal(t, 85, result.Confidence)
}

func TestNamePattern_ForeignDomainKeywordRejects(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCouncilDistrict, "50",
		recordAt("1", "State Senate District 4", boundary.LayerCouncilDistrict, -73, 44, 0.1),
	)
	result := p.namePattern(fc)
	assert.True(t, result.Rejected)
}

func TestNamePattern_OwnDomainKeywordIsNotForeign(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCounty, "06",
		recordAt("06001", "Alameda County", boundary.LayerCounty, -122, 37, 0.1),
	)
	result := p.namePattern(fc)
	assert.False(t, result.Rejected)
}
