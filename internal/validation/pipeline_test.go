package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/canonical"
)

func TestValidate_AllStagesPassYieldsMinConfidenceAcrossStages(t *testing.T) {
	ref, err := canonical.Load()
	require.NoError(t, err)
	rules := map[boundary.Layer]CardinalityRule{
		boundary.LayerCongressional: {Min: 1, Max: 1, TypicalLo: 1, TypicalHi: 1},
	}
	p := New(ref, rules, DefaultThresholds())

	fc := collectionOf(boundary.LayerCongressional, "50", recordAt("5000", "At Large", boundary.LayerCongressional, -73, 44, 0.1))
	result := p.Validate(fc, nil, nil)

	assert.True(t, result.Valid)
	assert.True(t, result.CommitEligible(MinConfidence))
}

func TestValidate_ShortCircuitsOnFirstRejection(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCouncilDistrict, "50", recordAt("1", "State Senate District 4", boundary.LayerCouncilDistrict, -73, 44, 0.1))

	result := p.Validate(fc, nil, nil)
	assert.False(t, result.Valid)
	assert.Len(t, result.PerStage, 1) // only name_pattern ran
	assert.Equal(t, "name_pattern", result.PerStage[0].Stage)
}

func TestValidate_ConfidenceIsMinimumAcrossStages(t *testing.T) {
	rules := map[boundary.Layer]CardinalityRule{
		boundary.LayerCounty: {Min: 1, Max: 100, TypicalLo: 55, TypicalHi: 60},
	}
	p := New(nil, rules, DefaultThresholds())

	records := make([]boundary.BoundaryRecord, 40)
	for i := range records {
		records[i] = recordAt(string(rune('a'+i)), "n", boundary.LayerCounty, float64(i)*0.5, 37, 0.1)
	}
	fc := collectionOf(boundary.LayerCounty, "06", records...)

	result := p.Validate(fc, nil, nil)
	assert.True(t, result.Valid)
	assert.Equal(t, 60, result.Confidence) // cardinality's warning-level confidence is the floor
}

func TestAsError_NilWhenValid(t *testing.T) {
	result := AggregatedValidationResult{Valid: true}
	assert.NoError(t, result.AsError())
}

func TestAsError_JoinsIssuesWhenInvalid(t *testing.T) {
	result := AggregatedValidationResult{Valid: false, Issues: []string{"one", "two"}}
	err := result.AsError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one")
	assert.Contains(t, err.Error(), "two")
}
