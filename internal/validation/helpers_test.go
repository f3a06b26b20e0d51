package validation

import (
	"github.com/paulmach/orb"

	"shadowatlas/internal/boundary"
)

// squareAt builds a small closed square polygon centered near (lon, lat),
// sized in degrees (tiny, well under geographic-bounds thresholds at this
// scale).
func squareAt(lon, lat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat},
	}}
}

func recordAt(id, name string, layer boundary.Layer, lon, lat, size float64) boundary.BoundaryRecord {
	return boundary.BoundaryRecord{
		BoundaryID:       id,
		Layer:            layer,
		JurisdictionFIPS: "50",
		DisplayName:      name,
		VintageYear:      2024,
		Geometry:         squareAt(lon, lat, size),
	}
}

func collectionOf(layer boundary.Layer, stateFIPS string, records ...boundary.BoundaryRecord) boundary.FeatureCollection {
	return boundary.FeatureCollection{
		Layer:   layer,
		Scope:   boundary.NewLayerScope(layer, stateFIPS),
		Records: records,
	}
}
