package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitSquareDeg is a roughly 0.1deg square near Montpelier, VT, small enough
// that the equirectangular correction is well within tolerance.
func unitSquareDeg() orb.Polygon {
	return orb.Polygon{
		orb.Ring{{-72.6, 44.2}, {-72.5, 44.2}, {-72.5, 44.3}, {-72.6, 44.3}, {-72.6, 44.2}},
	}
}

func TestHaversineDistanceMeters(t *testing.T) {
	montpelier := orb.Point{-72.5754, 44.2601}
	burlington := orb.Point{-73.2121, 44.4759}
	d := HaversineDistanceMeters(montpelier, burlington)
	assert.InDelta(t, 55000, d, 5000) // roughly 55km apart
}

func TestCentroid_Polygon(t *testing.T) {
	c := Centroid(unitSquareDeg())
	assert.InDelta(t, -72.55, c[0], 0.01)
	assert.InDelta(t, 44.25, c[1], 0.01)
}

func TestCentroid_MultiPolygonWeightsByArea(t *testing.T) {
	small := orb.Polygon{orb.Ring{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0}}}
	big := orb.Polygon{orb.Ring{{10, 10}, {10.1, 10}, {10.1, 10.1}, {10, 10.1}, {10, 10}}}
	c := Centroid(orb.MultiPolygon{small, big})
	// Both squares are the same size in degrees, so centroid should be near
	// the midpoint of both centers rather than collapsed on one.
	assert.Greater(t, c[0], 0.0)
	assert.Less(t, c[0], 10.1)
}

func TestAreaM2_ApproximatelyCorrect(t *testing.T) {
	area := AreaM2(unitSquareDeg())
	// ~0.1deg x 0.1deg at ~44N is roughly 63 km^2.
	assert.InDelta(t, 63_000_000, area, 8_000_000)
}

func TestNormalizeRingOrientation(t *testing.T) {
	ccw := unitSquareDeg()
	cw := orb.Polygon{reverse(ccw[0])}

	normalizedCCW := NormalizeRingOrientation(ccw)
	normalizedCW := NormalizeRingOrientation(cw)

	assert.Equal(t, orb.CCW, normalizedCCW[0].Orientation())
	assert.Equal(t, orb.CCW, normalizedCW[0].Orientation())
}

func reverse(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

func TestSortRingsLexicographically_Deterministic(t *testing.T) {
	a := orb.Polygon{orb.Ring{{1, 1}, {2, 1}, {2, 2}, {1, 2}, {1, 1}}}
	b := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

	sorted1 := SortRingsLexicographically(orb.MultiPolygon{a, b})
	sorted2 := SortRingsLexicographically(orb.MultiPolygon{b, a})

	assert.Equal(t, sorted1, sorted2)
}

func TestCanonicalWKB_RoundingMakesEquivalentGeometryIdentical(t *testing.T) {
	p1 := orb.Polygon{orb.Ring{{-72.123456789, 44.1}, {-72.0, 44.1}, {-72.0, 44.2}, {-72.123456789, 44.2}, {-72.123456789, 44.1}}}
	p2 := orb.Polygon{orb.Ring{{-72.1234567, 44.1}, {-72.0, 44.1}, {-72.0, 44.2}, {-72.1234567, 44.2}, {-72.1234567, 44.1}}}

	wkb1, err := CanonicalWKB(p1, 6)
	require.NoError(t, err)
	wkb2, err := CanonicalWKB(p2, 6)
	require.NoError(t, err)

	assert.Equal(t, wkb1, wkb2)
}

func TestSelfIntersections(t *testing.T) {
	simple := orb.Polygon{unitSquareDeg()[0]}
	assert.Equal(t, 0, SelfIntersections(simple))

	bowtie := orb.Polygon{orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}}
	assert.Greater(t, SelfIntersections(bowtie), 0)
}

func TestJaccard_IdenticalPolygonsIsOne(t *testing.T) {
	p := unitSquareDeg()
	j := Jaccard(orb.Geometry(p), orb.Geometry(p))
	assert.InDelta(t, 1.0, j, 0.05)
}

func TestJaccard_DisjointPolygonsIsZero(t *testing.T) {
	a := unitSquareDeg()
	b := orb.Polygon{orb.Ring{{10, 10}, {10.1, 10}, {10.1, 10.1}, {10, 10.1}, {10, 10}}}
	j := Jaccard(orb.Geometry(a), orb.Geometry(b))
	assert.Equal(t, 0.0, j)
}

func TestExhaustivityRatio_FullCoverageIsOne(t *testing.T) {
	parent := unitSquareDeg()
	ratio := ExhaustivityRatio(orb.MultiPolygon{parent}, parent)
	assert.InDelta(t, 1.0, ratio, 0.05)
}

func TestContainmentRatio_SelfContainedIsOne(t *testing.T) {
	parent := unitSquareDeg()
	ratio := ContainmentRatio(orb.MultiPolygon{parent}, parent, 0.02)
	assert.InDelta(t, 1.0, ratio, 0.05)
}
