package validation

import (
	"fmt"

	"github.com/paulmach/orb"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/geo"
)

// tessellationProof is the tessellation proof stage (§4.F stage 6),
// applied only to the municipal council layer: verifies exclusivity,
// exhaustivity, containment, and cardinality against a ground-truth
// municipal polygon and expected district count.
func (p *Pipeline) tessellationProof(fc boundary.FeatureCollection, municipality boundary.BoundaryRecord) StageResult {
	parent, ok := municipality.Geometry.(orb.Polygon)
	if !ok {
		return StageResult{Stage: "tessellation_proof", Confidence: 60, Warnings: []string{"reference municipal geometry is not a single polygon; skipping proof"}}
	}

	children := make([]orb.Polygon, 0, len(fc.Records))
	for _, rec := range fc.Records {
		if p, ok := rec.Geometry.(orb.Polygon); ok {
			children = append(children, p)
		}
	}

	tolerance := p.thresholds.TessellationTolerance
	if tolerance <= 0 {
		tolerance = 0.02
	}

	// Exclusivity: pairwise interior-disjoint above tolerance.
	totalArea := geo.AreaM2(orb.Geometry(parent))
	for i := 0; i < len(children); i++ {
		for j := i + 1; j < len(children); j++ {
			overlap := geo.PairwiseOverlapArea(children[i], children[j])
			if totalArea > 0 && overlap/totalArea > tolerance {
				return StageResult{
					Stage:      "tessellation_proof",
					Confidence: 10,
					Rejected:   true,
					Issues:     []string{fmt.Sprintf("exclusivity violated: districts %s and %s overlap", fc.Records[i].BoundaryID, fc.Records[j].BoundaryID)},
				}
			}
		}
	}

	union := orb.MultiPolygon(children)

	// Exhaustivity: coverage ratio >= threshold.
	exhaustivityMin := p.thresholds.ExhaustivityMin
	if exhaustivityMin <= 0 {
		exhaustivityMin = 0.95
	}
	exhaustivity := geo.ExhaustivityRatio(union, parent)
	if exhaustivity < exhaustivityMin {
		return StageResult{
			Stage:      "tessellation_proof",
			Confidence: 10,
			Rejected:   true,
			Issues:     []string{fmt.Sprintf("exhaustivity %.3f below minimum %.3f", exhaustivity, exhaustivityMin)},
		}
	}

	// Containment: district union is a subset of the municipal polygon
	// within tolerance.
	containment := geo.ContainmentRatio(union, parent, tolerance)
	if containment < 1-tolerance {
		return StageResult{
			Stage:      "tessellation_proof",
			Confidence: 10,
			Rejected:   true,
			Issues:     []string{fmt.Sprintf("containment %.3f below 1-tolerance (%.3f)", containment, 1-tolerance)},
		}
	}

	// Cardinality: count equals expected.
	expected, hasExpected := p.rules[fc.Layer]
	if hasExpected && expected.TypicalLo == expected.TypicalHi && len(children) != expected.TypicalLo {
		return StageResult{
			Stage:      "tessellation_proof",
			Confidence: 10,
			Rejected:   true,
			Issues:     []string{fmt.Sprintf("district count %d does not match expected count %d", len(children), expected.TypicalLo)},
		}
	}

	return StageResult{Stage: "tessellation_proof", Confidence: 95}
}
