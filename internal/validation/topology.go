package validation

import (
	"fmt"

	"github.com/paulmach/orb"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/geo"
)

// topology is the topology validator (§4.F stage 5): counts
// self-intersections and, for layers that tessellate, detects pairwise
// overlaps beyond tolerance. It does not check for gaps; coverage is checked
// only by the tessellation proof (stage 6).
func (p *Pipeline) topology(fc boundary.FeatureCollection) StageResult {
	var issues, warnings []string
	polys := make([]orb.Polygon, 0, len(fc.Records))
	for _, rec := range fc.Records {
		switch g := rec.Geometry.(type) {
		case orb.Polygon:
			if n := geo.SelfIntersections(g); n > 0 {
				issues = append(issues, fmt.Sprintf("boundary %s has %d self-intersection(s)", rec.BoundaryID, n))
			}
			polys = append(polys, g)
		case orb.MultiPolygon:
			for _, sub := range g {
				if n := geo.SelfIntersections(sub); n > 0 {
					issues = append(issues, fmt.Sprintf("boundary %s has %d self-intersection(s)", rec.BoundaryID, n))
				}
				polys = append(polys, sub)
			}
		}
	}
	if len(issues) > 0 {
		return StageResult{Stage: "topology", Confidence: 10, Rejected: true, Issues: issues}
	}

	tolerance := p.thresholds.TessellationTolerance
	if tolerance <= 0 {
		tolerance = 0.02
	}
	allowOverlap := !fc.Layer.Tessellates()

	if !allowOverlap {
		for i := 0; i < len(polys); i++ {
			for j := i + 1; j < len(polys); j++ {
				overlap := geo.PairwiseOverlapArea(polys[i], polys[j])
				smaller := geo.AreaM2(orb.Geometry(polys[i]))
				if a := geo.AreaM2(orb.Geometry(polys[j])); a < smaller {
					smaller = a
				}
				if smaller > 0 && overlap/smaller > tolerance {
					issues = append(issues, fmt.Sprintf("boundaries %s and %s overlap beyond tolerance", fc.Records[i].BoundaryID, fc.Records[j].BoundaryID))
				}
			}
		}
	}

	if len(issues) > 0 {
		return StageResult{Stage: "topology", Confidence: 10, Rejected: true, Issues: issues}
	}
	if len(warnings) > 0 {
		return StageResult{Stage: "topology", Confidence: 70, Warnings: warnings}
	}
	return StageResult{Stage: "topology", Confidence: 90}
}
