package boundary

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func validPolygon() orb.Polygon {
	return orb.Polygon{
		orb.Ring{{-73.2, 44.0}, {-73.1, 44.0}, {-73.1, 44.1}, {-73.2, 44.1}, {-73.2, 44.0}},
	}
}

func TestBoundaryRecord_Validate(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		rec := BoundaryRecord{
			BoundaryID:  "5000100",
			Layer:       LayerCongressional,
			VintageYear: 2024,
			Geometry:    validPolygon(),
		}
		assert.NoError(t, rec.Validate())
	})

	t.Run("empty boundary_id rejected", func(t *testing.T) {
		rec := BoundaryRecord{VintageYear: 2024, Geometry: validPolygon()}
		assert.Error(t, rec.Validate())
	})

	t.Run("vintage before minimum rejected", func(t *testing.T) {
		rec := BoundaryRecord{BoundaryID: "x", VintageYear: 2019, Geometry: validPolygon()}
		assert.Error(t, rec.Validate())
	})

	t.Run("non polygon geometry rejected", func(t *testing.T) {
		rec := BoundaryRecord{BoundaryID: "x", VintageYear: 2024, Geometry: orb.Point{-73, 44}}
		assert.Error(t, rec.Validate())
	})

	t.Run("multipolygon accepted", func(t *testing.T) {
		rec := BoundaryRecord{
			BoundaryID:  "x",
			VintageYear: 2024,
			Geometry:    orb.MultiPolygon{validPolygon()},
		}
		assert.NoError(t, rec.Validate())
	})
}

func TestFeatureCollection_DeduplicateMissingGeometry(t *testing.T) {
	fc := FeatureCollection{
		Records: []BoundaryRecord{
			{BoundaryID: "a", Geometry: validPolygon()},
			{BoundaryID: "b", Geometry: nil},
			{BoundaryID: "a", Geometry: validPolygon()},
			{BoundaryID: "c", Geometry: validPolygon()},
		},
	}
	fc.DeduplicateMissingGeometry()

	ids := fc.GEOIDs()
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestProvenance_FieldsPreserved(t *testing.T) {
	now := time.Now()
	p := Provenance{SourceURL: "https://example.test", ResponseChecksum: "abc", RetrievedAt: now, AuthorityTier: AuthorityFederal}
	assert.Equal(t, "federal", p.AuthorityTier.String())
	assert.Equal(t, now, p.RetrievedAt)
}
