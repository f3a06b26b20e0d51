package validation

import (
	"fmt"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/geo"
)

// GeometryMismatch records a boundary whose cross-source Jaccard score fell
// below the match threshold (§4.F stage 7).
type GeometryMismatch struct {
	BoundaryID string
	Jaccard    float64
}

// crossSourceComparator is the cross-source comparator stage (§4.F stage
// 7): for each boundary present in both collections, computes Jaccard
// (intersection-over-union) and aggregates a match rate.
func (p *Pipeline) crossSourceComparator(fc, other boundary.FeatureCollection) StageResult {
	otherByID := make(map[string]boundary.BoundaryRecord, len(other.Records))
	for _, rec := range other.Records {
		otherByID[rec.BoundaryID] = rec
	}

	var (
		compared  int
		matches   int
		warnings  []string
		mismatches []GeometryMismatch
	)

	for _, rec := range fc.Records {
		peer, ok := otherByID[rec.BoundaryID]
		if !ok || rec.Geometry == nil || peer.Geometry == nil {
			continue
		}
		compared++
		score := geo.Jaccard(rec.Geometry, peer.Geometry)
		switch {
		case score >= 0.95:
			matches++
		case score >= 0.90:
			matches++
			warnings = append(warnings, fmt.Sprintf("boundary %s cross-source jaccard %.3f is a marginal match", rec.BoundaryID, score))
		default:
			mismatches = append(mismatches, GeometryMismatch{BoundaryID: rec.BoundaryID, Jaccard: score})
		}
	}

	if compared == 0 {
		return StageResult{Stage: "cross_source_comparator", Confidence: 60, Warnings: []string{"no overlapping boundary_ids with the comparison source"}}
	}

	matchRate := float64(matches) / float64(compared)
	minMatchRate := p.thresholds.MinMatchRate
	if minMatchRate <= 0 {
		minMatchRate = 0.9
	}

	var issues []string
	for _, m := range mismatches {
		issues = append(issues, fmt.Sprintf("boundary %s geometry mismatch: jaccard %.3f", m.BoundaryID, m.Jaccard))
	}

	if matchRate < minMatchRate {
		warnings = append(warnings, fmt.Sprintf("aggregate match rate %.3f below min_match_rate %.3f; snapshot flagged for review", matchRate, minMatchRate))
		return StageResult{Stage: "cross_source_comparator", Confidence: 70, Issues: issues, Warnings: warnings}
	}

	return StageResult{Stage: "cross_source_comparator", Confidence: 90, Issues: issues, Warnings: warnings}
}
