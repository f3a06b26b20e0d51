package validation

import (
	"fmt"

	"shadowatlas/internal/boundary"
)

// cardinality is the cardinality validator (§4.F stage 2): feature count
// against the layer's {min, max, typical[lo, hi]} envelope.
func (p *Pipeline) cardinality(fc boundary.FeatureCollection) StageResult {
	rule, ok := p.rules[fc.Layer]
	if !ok {
		return StageResult{Stage: "cardinality", Confidence: 60, Warnings: []string{fmt.Sprintf("no cardinality rule registered for layer %s", fc.Layer)}}
	}

	count := len(fc.Records)
	if count < rule.Min || (rule.Max > 0 && count > rule.Max) {
		return StageResult{
			Stage:      "cardinality",
			Confidence: 10,
			Rejected:   true,
			Issues:     []string{fmt.Sprintf("feature count %d is outside allowed range [%d, %d]", count, rule.Min, rule.Max)},
		}
	}

	if count >= rule.TypicalLo && count <= rule.TypicalHi {
		return StageResult{Stage: "cardinality", Confidence: 90}
	}

	return StageResult{
		Stage:      "cardinality",
		Confidence: 60,
		Warnings:   []string{fmt.Sprintf("feature count %d is outside the typical range [%d, %d]", count, rule.TypicalLo, rule.TypicalHi)},
	}
}
