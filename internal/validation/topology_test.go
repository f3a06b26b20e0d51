package validation

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"shadowatlas/internal/boundary"
)

func TestTopology_CleanNonOverlappingPolygonsAccepts(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCounty, "06",
		recordAt("06001", "a", boundary.LayerCounty, -122.0, 37.0, 0.1),
		recordAt("06003", "b", boundary.LayerCounty, -121.5, 37.0, 0.1),
	)
	result := p.topology(fc)
	assert.False(t, result.Rejected)
}

func TestTopology_SelfIntersectingRingRejects(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	// Bowtie / figure-eight ring: self-intersecting.
	bowtie := orb.Polygon{orb.Ring{
		{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0},
	}}
	fc := collectionOf(boundary.LayerCounty, "06", boundary.BoundaryRecord{
		BoundaryID: "06001", Layer: boundary.LayerCounty, DisplayName: "a",
		VintageYear: 2024, Geometry: bowtie,
	})
	result := p.topology(fc)
	assert.True(t, result.Rejected)
}

func TestTopology_OverlappingTessellatingLayerRejects(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCounty, "06",
		recordAt("06001", "a", boundary.LayerCounty, -122.0, 37.0, 0.2),
		recordAt("06003", "b", boundary.LayerCounty, -122.1, 37.0, 0.2), // overlaps heavily with "a"
	)
	result := p.topology(fc)
	assert.True(t, result.Rejected)
}

func TestTopology_OverlapAllowedForNonTessellatingLayer(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerSchoolElementary, "06",
		recordAt("06001", "a", boundary.LayerSchoolElementary, -122.0, 37.0, 0.2),
		recordAt("06003", "b", boundary.LayerSchoolElementary, -122.1, 37.0, 0.2),
	)
	result := p.topology(fc)
	assert.False(t, result.Rejected)
}
