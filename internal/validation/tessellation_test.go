package validation

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"shadowatlas/internal/boundary"
)

func municipalParent() boundary.BoundaryRecord {
	return boundary.BoundaryRecord{
		BoundaryID:  "city",
		Layer:       boundary.LayerCouncilDistrict,
		DisplayName: "City",
		VintageYear: 2024,
		Geometry:    orb.Polygon{orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}},
	}
}

func TestTessellationProof_NonPolygonReferenceWarnsSkip(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	muni := municipalParent()
	muni.Geometry = orb.MultiPolygon{muni.Geometry.(orb.Polygon)}
	fc := collectionOf(boundary.LayerCouncilDistrict, "50")
	result := p.tessellationProof(fc, muni)
	assert.False(t, result.Rejected)
	assert.NotEmpty(t, result.Warnings)
}

func TestTessellationProof_ExhaustiveDisjointCoverageAccepts(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCouncilDistrict, "50",
		boundary.BoundaryRecord{BoundaryID: "d1", Layer: boundary.LayerCouncilDistrict, VintageYear: 2024,
			Geometry: orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 2}, {0, 2}, {0, 0}}}},
		boundary.BoundaryRecord{BoundaryID: "d2", Layer: boundary.LayerCouncilDistrict, VintageYear: 2024,
			Geometry: orb.Polygon{orb.Ring{{1, 0}, {2, 0}, {2, 2}, {1, 2}, {1, 0}}}},
	)
	result := p.tessellationProof(fc, municipalParent())
	assert.False(t, result.Rejected)
	assert.Equal(t, 95, result.Confidence)
}

func TestTessellationProof_OverlappingDistrictsViolateExclusivity(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCouncilDistrict, "50",
		boundary.BoundaryRecord{BoundaryID: "d1", Layer: boundary.LayerCouncilDistrict, VintageYear: 2024,
			Geometry: orb.Polygon{orb.Ring{{0, 0}, {1.5, 0}, {1.5, 2}, {0, 2}, {0, 0}}}},
		boundary.BoundaryRecord{BoundaryID: "d2", Layer: boundary.LayerCouncilDistrict, VintageYear: 2024,
			Geometry: orb.Polygon{orb.Ring{{0.5, 0}, {2, 0}, {2, 2}, {0.5, 2}, {0.5, 0}}}},
	)
	result := p.tessellationProof(fc, municipalParent())
	assert.True(t, result.Rejected)
}

func TestTessellationProof_GapLeavesInsufficientExhaustivity(t *testing.T) {
	p := New(nil, nil, DefaultThresholds())
	fc := collectionOf(boundary.LayerCouncilDistrict, "50",
		boundary.BoundaryRecord{BoundaryID: "d1", Layer: boundary.LayerCouncilDistrict, VintageYear: 2024,
			Geometry: orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}}, // covers only 1/4 of the 2x2 parent
	)
	result := p.tessellationProof(fc, municipalParent())
	assert.True(t, result.Rejected)
}
