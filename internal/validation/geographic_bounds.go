package validation

import (
	"fmt"

	"github.com/paulmach/orb"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/geo"
)

// geographicBounds is the geographic-bounds validator (§4.F stage 4):
// compares the collection's centroid to a reference jurisdiction polygon
// and checks the feature count against a ratio of the typical range.
func (p *Pipeline) geographicBounds(fc boundary.FeatureCollection, reference *boundary.BoundaryRecord) StageResult {
	if reference == nil {
		return StageResult{Stage: "geographic_bounds", Confidence: 60, Warnings: []string{"no reference jurisdiction polygon supplied"}}
	}

	collectionCentroid := collectionCentroid(fc)
	referenceCentroid := geo.Centroid(reference.Geometry)
	distanceKM := geo.HaversineDistanceMeters(collectionCentroid, referenceCentroid) / 1000

	thresholdKM := p.thresholds.GeographicBoundsKM
	if thresholdKM <= 0 {
		thresholdKM = 50
	}
	if distanceKM > thresholdKM {
		return StageResult{
			Stage:      "geographic_bounds",
			Confidence: 10,
			Rejected:   true,
			Issues:     []string{fmt.Sprintf("collection centroid is %.1f km from reference jurisdiction centroid (threshold %.1f km)", distanceKM, thresholdKM)},
		}
	}

	rule, ok := p.rules[fc.Layer]
	if ok {
		maxRatio := p.thresholds.MaxCountRatio
		if maxRatio <= 0 {
			maxRatio = 3
		}
		if rule.TypicalHi > 0 && float64(len(fc.Records)) > float64(rule.TypicalHi)*maxRatio {
			return StageResult{
				Stage:      "geographic_bounds",
				Confidence: 10,
				Rejected:   true,
				Issues:     []string{fmt.Sprintf("feature count %d exceeds typical_hi*max_ratio (%d*%.1f)", len(fc.Records), rule.TypicalHi, maxRatio)},
			}
		}
	}

	return StageResult{Stage: "geographic_bounds", Confidence: 90}
}

func collectionCentroid(fc boundary.FeatureCollection) orb.Point {
	var sumLon, sumLat, count float64
	for _, rec := range fc.Records {
		if rec.Geometry == nil {
			continue
		}
		c := geo.Centroid(rec.Geometry)
		sumLon += c[0]
		sumLat += c[1]
		count++
	}
	if count == 0 {
		return orb.Point{}
	}
	return orb.Point{sumLon / count, sumLat / count}
}
