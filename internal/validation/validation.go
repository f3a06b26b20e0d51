// Package validation implements the seven-stage deterministic validation
// pipeline that filters and scores extracted feature collections before
// they are eligible for commitment (§4.F).
package validation

import (
	"github.com/hashicorp/go-multierror"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/canonical"
)

// StageResult is one stage's verdict: accept, accept-with-warning, or
// reject.
type StageResult struct {
	Stage      string
	Confidence int
	Rejected   bool
	Issues     []string
	Warnings   []string
}

// AggregatedValidationResult is the pipeline's final verdict (§4.F).
type AggregatedValidationResult struct {
	Valid      bool
	Confidence int
	Issues     []string
	Warnings   []string
	PerStage   []StageResult
}

// MinConfidence is the default commit-eligibility confidence floor (§4.F).
const MinConfidence = 60

// CommitEligible reports whether r meets the commit-eligibility bar:
// valid && confidence >= minConfidence.
func (r AggregatedValidationResult) CommitEligible(minConfidence int) bool {
	return r.Valid && r.Confidence >= minConfidence
}

// CardinalityRule is a layer's expected feature-count envelope (§4.F stage 2).
type CardinalityRule struct {
	Min, Max     int
	TypicalLo, TypicalHi int
}

// Thresholds bundles the pipeline's configurable knobs, all with the
// spec's stated defaults.
type Thresholds struct {
	GeographicBoundsKM   float64 // default 50
	MaxCountRatio        float64 // default 3
	TessellationTolerance float64
	ExhaustivityMin       float64
	MinMatchRate          float64 // default 0.9
}

// DefaultThresholds returns the spec's stated default threshold values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GeographicBoundsKM:    50,
		MaxCountRatio:         3,
		TessellationTolerance: 0.02,
		ExhaustivityMin:       0.95,
		MinMatchRate:          0.9,
	}
}

// Pipeline runs the seven validation stages in order, short-circuiting on
// the first rejection.
type Pipeline struct {
	reference  *canonical.Reference
	rules      map[boundary.Layer]CardinalityRule
	thresholds Thresholds
}

// New builds a Pipeline against a canonical reference and per-layer
// cardinality rules.
func New(reference *canonical.Reference, rules map[boundary.Layer]CardinalityRule, thresholds Thresholds) *Pipeline {
	return &Pipeline{reference: reference, rules: rules, thresholds: thresholds}
}

// Validate runs fc through every stage. referencePolygon is the authoritative
// jurisdiction polygon used by the geographic-bounds validator and the
// tessellation proof (nil makes the geographic-bounds validator record a
// warning instead of checking, and skips the tessellation proof entirely;
// that proof also runs only for the council-district layer). otherSource is an
// optional independently-extracted collection for cross-source comparison
// (§4.F stage 7); nil skips that stage.
func (p *Pipeline) Validate(fc boundary.FeatureCollection, referencePolygon *boundary.BoundaryRecord, otherSource *boundary.FeatureCollection) AggregatedValidationResult {
	var stages []StageResult

	stages = append(stages, p.namePattern(fc))
	if stages[len(stages)-1].Rejected {
		return aggregate(stages)
	}

	stages = append(stages, p.cardinality(fc))
	if stages[len(stages)-1].Rejected {
		return aggregate(stages)
	}

	stages = append(stages, p.geoid(fc))
	if stages[len(stages)-1].Rejected {
		return aggregate(stages)
	}

	stages = append(stages, p.geographicBounds(fc, referencePolygon))
	if stages[len(stages)-1].Rejected {
		return aggregate(stages)
	}

	stages = append(stages, p.topology(fc))
	if stages[len(stages)-1].Rejected {
		return aggregate(stages)
	}

	if fc.Layer == boundary.LayerCouncilDistrict && referencePolygon != nil {
		stages = append(stages, p.tessellationProof(fc, *referencePolygon))
		if stages[len(stages)-1].Rejected {
			return aggregate(stages)
		}
	}

	if otherSource != nil {
		stages = append(stages, p.crossSourceComparator(fc, *otherSource))
	}

	return aggregate(stages)
}

func aggregate(stages []StageResult) AggregatedValidationResult {
	result := AggregatedValidationResult{Valid: true, Confidence: 100, PerStage: stages}
	for _, s := range stages {
		if s.Confidence < result.Confidence {
			result.Confidence = s.Confidence
		}
		if s.Rejected {
			result.Valid = false
		}
		result.Issues = append(result.Issues, s.Issues...)
		result.Warnings = append(result.Warnings, s.Warnings...)
	}
	return result
}

// AsError collapses every issue into a single multierror, or nil if the
// result is valid. Callers surfacing a rejection as a Go error (e.g. the
// atlas service) use this instead of hand-joining r.Issues.
func (r AggregatedValidationResult) AsError() error {
	if r.Valid {
		return nil
	}
	var merr *multierror.Error
	for _, issue := range r.Issues {
		merr = multierror.Append(merr, errIssue(issue))
	}
	return merr.ErrorOrNil()
}

type errIssue string

func (e errIssue) Error() string { return string(e) }
