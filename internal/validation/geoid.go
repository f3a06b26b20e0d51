package validation

import (
	"fmt"

	"shadowatlas/internal/boundary"
)

// geoid is the GEOID validator (§4.F stage 3): for layers with a canonical
// reference, missing/extra GEOIDs reject; for variable-length layers, only
// the declared regex is checked.
func (p *Pipeline) geoid(fc boundary.FeatureCollection) StageResult {
	stateFIPS := jurisdictionFIPS(fc)
	if p.reference == nil {
		return StageResult{Stage: "geoid", Confidence: 60, Warnings: []string{"no canonical reference configured"}}
	}

	if _, ok := p.reference.ExpectedCount(fc.Layer, stateFIPS); !ok {
		return StageResult{Stage: "geoid", Confidence: 60, Warnings: []string{fmt.Sprintf("no canonical reference for %s/%s", fc.Layer, stateFIPS)}}
	}

	observed := fc.GEOIDs()
	for _, id := range observed {
		if !p.reference.MatchesPattern(fc.Layer, stateFIPS, id) {
			return StageResult{
				Stage:      "geoid",
				Confidence: 10,
				Rejected:   true,
				Issues:     []string{fmt.Sprintf("geoid %q does not match the expected pattern for %s/%s", id, fc.Layer, stateFIPS)},
			}
		}
	}

	completeness := p.reference.Complete(fc.Layer, stateFIPS, observed)
	if !completeness.OK {
		var issues []string
		if len(completeness.Missing) > 0 {
			issues = append(issues, fmt.Sprintf("missing %d expected geoid(s): %v", len(completeness.Missing), completeness.Missing))
		}
		if len(completeness.Extra) > 0 {
			issues = append(issues, fmt.Sprintf("%d unexpected geoid(s): %v", len(completeness.Extra), completeness.Extra))
		}
		return StageResult{Stage: "geoid", Confidence: 10, Rejected: true, Issues: issues}
	}

	return StageResult{Stage: "geoid", Confidence: 95}
}

func jurisdictionFIPS(fc boundary.FeatureCollection) string {
	if fc.Scope.Kind == boundary.ScopeState || fc.Scope.Kind == boundary.ScopeLayer {
		return fc.Scope.StateFIPS
	}
	if len(fc.Records) > 0 {
		return fc.Records[0].JurisdictionFIPS
	}
	return ""
}
