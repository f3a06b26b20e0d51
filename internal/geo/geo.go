// Package geo wraps github.com/paulmach/orb with the geometry operations the
// validation pipeline and Merkle commit engine need: areas and centroids in
// WGS84, ring normalization for canonical encoding, overlap/gap detection for
// tessellation proofs, and Jaccard/IoU for cross-source comparison.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geo"
)

// earthRadiusM is the mean Earth radius used for the equirectangular area
// correction. HaversineDistanceMeters goes through orb/geo, which uses its
// own (equatorial, 6378137 m) radius instead of this one.
const earthRadiusM = 6371008.8

// HaversineDistanceMeters returns the great-circle distance between two WGS84
// points, used by the geographic-bounds validator to flag boundaries whose
// centroid sits implausibly far from their jurisdiction's expected location.
func HaversineDistanceMeters(a, b orb.Point) float64 {
	return geo.Distance(a, b)
}

// Centroid returns the area-weighted centroid of a geometry. Polygons use
// their outer-ring-minus-holes centroid; multipolygons weight each member
// polygon's centroid by its own area.
func Centroid(g orb.Geometry) orb.Point {
	switch v := g.(type) {
	case orb.Polygon:
		c, _ := ringCentroidArea(v)
		return c
	case orb.MultiPolygon:
		var sumX, sumY, sumArea float64
		for _, poly := range v {
			c, a := ringCentroidArea(poly)
			a = math.Abs(a)
			sumX += c[0] * a
			sumY += c[1] * a
			sumArea += a
		}
		if sumArea == 0 {
			return orb.Point{}
		}
		return orb.Point{sumX / sumArea, sumY / sumArea}
	default:
		return orb.Point{}
	}
}

// ringCentroidArea computes the planar (shoelace) centroid and signed area of
// a polygon in degree coordinates, then weights it so the returned point is
// still a valid lon/lat pair.
func ringCentroidArea(p orb.Polygon) (orb.Point, float64) {
	if len(p) == 0 {
		return orb.Point{}, 0
	}
	cx, cy, area := signedCentroid(p[0])
	for _, hole := range p[1:] {
		hx, hy, harea := signedCentroid(hole)
		area -= harea
		cx -= hx
		cy -= hy
	}
	if area == 0 {
		return orb.Point{}, 0
	}
	return orb.Point{cx / (3 * area), cy / (3 * area)}, area
}

func signedCentroid(ring orb.Ring) (cx, cy, area float64) {
	n := len(ring)
	if n < 3 {
		return 0, 0, 0
	}
	for i := 0; i < n; i++ {
		p0 := ring[i]
		p1 := ring[(i+1)%n]
		cross := p0[0]*p1[1] - p1[0]*p0[1]
		area += cross
		cx += (p0[0] + p1[0]) * cross
		cy += (p0[1] + p1[1]) * cross
	}
	area /= 2
	return cx, cy, area
}

// AreaM2 returns the equirectangular-corrected planar area of a geometry in
// square meters, matching BoundaryRecord.land_area_m2/water_area_m2. Each
// ring's shoelace area (in square degrees) is scaled by the local
// meters-per-degree factors at the ring's mean latitude rather than
// reprojecting every vertex, which is accurate enough at boundary scale and
// keeps the computation a closed-form correction instead of a full
// projection pipeline.
func AreaM2(g orb.Geometry) float64 {
	switch v := g.(type) {
	case orb.Polygon:
		return polygonAreaM2(v)
	case orb.MultiPolygon:
		var total float64
		for _, poly := range v {
			total += polygonAreaM2(poly)
		}
		return total
	default:
		return 0
	}
}

func polygonAreaM2(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	total := ringAreaM2(p[0])
	for _, hole := range p[1:] {
		total -= ringAreaM2(hole)
	}
	if total < 0 {
		total = -total
	}
	return total
}

func ringAreaM2(ring orb.Ring) float64 {
	_, _, areaDeg2 := signedCentroid(ring)
	meanLat := meanLatitude(ring)
	metersPerDegLat := (math.Pi / 180) * earthRadiusM
	metersPerDegLon := metersPerDegLat * math.Cos(meanLat*math.Pi/180)
	return math.Abs(areaDeg2) * metersPerDegLat * metersPerDegLon
}

func meanLatitude(ring orb.Ring) float64 {
	if len(ring) == 0 {
		return 0
	}
	var sum float64
	for _, p := range ring {
		sum += p[1]
	}
	return sum / float64(len(ring))
}

// NormalizeRingOrientation returns a copy of p with its outer ring wound
// counter-clockwise and every inner ring wound clockwise, the orientation the
// canonical leaf encoding requires (§4.G).
func NormalizeRingOrientation(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		r := make(orb.Ring, len(ring))
		copy(r, ring)
		want := orb.CCW
		if i > 0 {
			want = orb.CW
		}
		if r.Orientation() != want {
			r.Reverse()
		}
		out[i] = r
	}
	return out
}

// SortRingsLexicographically returns a copy of mp with its member polygons
// sorted by their first outer-ring vertex, so a multipolygon built from
// differently-ordered upstream rings hashes identically.
func SortRingsLexicographically(mp orb.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(mp))
	copy(out, mp)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && polygonLess(out[j], out[j-1]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func polygonLess(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) < len(b)
	}
	pa, pb := a[0], b[0]
	if len(pa) == 0 || len(pb) == 0 {
		return len(pa) < len(pb)
	}
	if pa[0][0] != pb[0][0] {
		return pa[0][0] < pb[0][0]
	}
	return pa[0][1] < pb[0][1]
}

// CanonicalWKB encodes g as well-known binary after rounding every coordinate
// to precision decimal places, so the leaf hash is stable across
// floating-point representations of the same geometry (§4.G).
func CanonicalWKB(g orb.Geometry, precision int) ([]byte, error) {
	rounded := roundGeometry(g, precision)
	return wkb.Marshal(rounded)
}

func roundGeometry(g orb.Geometry, precision int) orb.Geometry {
	switch v := g.(type) {
	case orb.Polygon:
		return roundPolygon(v, precision)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, poly := range v {
			out[i] = roundPolygon(poly, precision)
		}
		return out
	default:
		return g
	}
}

func roundPolygon(p orb.Polygon, precision int) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			r[j] = roundPoint(pt, precision)
		}
		out[i] = r
	}
	return out
}

func roundPoint(p orb.Point, precision int) orb.Point {
	scale := math.Pow(10, float64(precision))
	return orb.Point{
		math.Round(p[0]*scale) / scale,
		math.Round(p[1]*scale) / scale,
	}
}

// SelfIntersections counts the number of edge pairs in p's outer ring that
// cross, used by the topology validator (§4.F stage 5) to reject
// non-simple polygons beyond the configured tolerance.
func SelfIntersections(p orb.Polygon) int {
	if len(p) == 0 {
		return 0
	}
	ring := p[0]
	n := len(ring)
	count := 0
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip edges that share an endpoint with edge i; adjacency is
			// not a self-intersection.
			if j == i || (j+1)%n == i {
				continue
			}
			b1, b2 := ring[j], ring[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				count++
			}
		}
	}
	return count
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// PairwiseOverlapArea returns the approximate overlap area (m^2) between two
// polygons, computed as the smaller of the two polygon areas times the larger
// of two vertex-containment fractions: the share of a's outer-ring vertices
// that fall inside b, and the share of b's outer-ring vertices that fall
// inside a. This is a bounded approximation rather than true polygon
// clipping — see DESIGN.md for why a full Weiler-Atherton clip was not
// pulled in.
func PairwiseOverlapArea(a, b orb.Polygon) float64 {
	insideA := verticesInside(b, a)
	insideB := verticesInside(a, b)
	fracA := fraction(insideA, len(a[0]))
	fracB := fraction(insideB, len(b[0]))
	overlap := math.Min(AreaM2(orb.Geometry(a)), AreaM2(orb.Geometry(b))) * math.Max(fracA, fracB)
	return overlap
}

func fraction(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

func verticesInside(container, probe orb.Polygon) int {
	if len(container) == 0 || len(probe) == 0 {
		return 0
	}
	count := 0
	for _, pt := range probe[0] {
		if pointInRing(pt, container[0]) {
			count++
		}
	}
	return count
}

// pointInRing implements a standard ray-casting point-in-polygon test.
func pointInRing(pt orb.Point, ring orb.Ring) bool {
	n := len(ring)
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if ((pi[1] > pt[1]) != (pj[1] > pt[1])) &&
			(pt[0] < (pj[0]-pi[0])*(pt[1]-pi[1])/(pj[1]-pi[1])+pi[0]) {
			inside = !inside
		}
	}
	return inside
}

// Gaps estimates the uncovered area (m^2) of parent left over after
// subtracting the union of children, used by the tessellation proof's gap
// budget (§4.F stage 5).
func Gaps(parent orb.MultiPolygon, children []orb.Polygon) float64 {
	parentArea := AreaM2(orb.Geometry(parent))
	var coveredFraction float64
	for _, poly := range parent {
		for _, child := range children {
			coveredFraction += fraction(verticesInside(poly, child), len(poly[0])) * AreaM2(orb.Geometry(child)) / math.Max(parentArea, 1)
		}
	}
	if coveredFraction > 1 {
		coveredFraction = 1
	}
	return parentArea * (1 - coveredFraction)
}

// Jaccard returns the intersection-over-union ratio of two geometries,
// comparing boundaries extracted from independent sources (§4.F stage 7).
func Jaccard(a, b orb.Geometry) float64 {
	areaA := AreaM2(a)
	areaB := AreaM2(b)
	inter := geometryOverlapM2(a, b)
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func geometryOverlapM2(a, b orb.Geometry) float64 {
	pa, aOK := a.(orb.Polygon)
	pb, bOK := b.(orb.Polygon)
	if aOK && bOK {
		return PairwiseOverlapArea(pa, pb)
	}
	mpa := asMultiPolygon(a)
	mpb := asMultiPolygon(b)
	var total float64
	for _, x := range mpa {
		for _, y := range mpb {
			total += PairwiseOverlapArea(x, y)
		}
	}
	return total
}

func asMultiPolygon(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}
	case orb.MultiPolygon:
		return v
	default:
		return nil
	}
}

// ContainmentRatio returns the fraction of union's area that falls within
// tolerance of being inside parent, used by the tessellation proof (§4.F
// stage 6) to check that children don't spill outside their jurisdiction.
func ContainmentRatio(union orb.MultiPolygon, parent orb.Polygon, tolerance float64) float64 {
	unionArea := AreaM2(orb.Geometry(union))
	if unionArea == 0 {
		return 1
	}
	var contained float64
	for _, poly := range union {
		contained += PairwiseOverlapArea(poly, parent)
	}
	ratio := contained / unionArea
	if ratio > 1 {
		ratio = 1
	}
	if ratio >= 1-tolerance {
		return 1
	}
	return ratio
}

// ExhaustivityRatio returns the fraction of parent's area covered by union,
// the complement of Gaps expressed as a ratio (§4.F stage 6).
func ExhaustivityRatio(union orb.MultiPolygon, parent orb.Polygon) float64 {
	parentArea := AreaM2(orb.Geometry(parent))
	if parentArea == 0 {
		return 1
	}
	gap := Gaps(orb.MultiPolygon{parent}, []orb.Polygon(union))
	ratio := 1 - gap/parentArea
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
