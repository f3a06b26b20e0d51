// Package boundary defines the canonical data model for Shadow Atlas: the
// immutable records, transient extraction containers, and scope selectors
// that flow through the extraction-validation-commitment pipeline.
package boundary

// Layer identifies the kind of political boundary a record belongs to.
type Layer string

const (
	LayerCongressional      Layer = "congressional"
	LayerStateUpper         Layer = "state_upper"
	LayerStateLower         Layer = "state_lower"
	LayerCounty             Layer = "county"
	LayerPlace              Layer = "place"
	LayerCouncilDistrict    Layer = "council_district"
	LayerSchoolUnified      Layer = "school_unified"
	LayerSchoolElementary   Layer = "school_elementary"
	LayerSchoolSecondary    Layer = "school_secondary"
	LayerSpecialFire        Layer = "special_fire"
	LayerSpecialLibrary     Layer = "special_library"
	LayerSpecialHospital    Layer = "special_hospital"
	LayerSpecialWater       Layer = "special_water"
	LayerSpecialTransit     Layer = "special_transit"
	LayerSpecialUtility     Layer = "special_utility"
)

// AllLayers enumerates every layer, in the order used for deterministic leaf
// placement in the Merkle Commit Engine (§4.G: "first by layer (enum order)").
var AllLayers = []Layer{
	LayerCongressional,
	LayerStateUpper,
	LayerStateLower,
	LayerCounty,
	LayerPlace,
	LayerCouncilDistrict,
	LayerSchoolUnified,
	LayerSchoolElementary,
	LayerSchoolSecondary,
	LayerSpecialFire,
	LayerSpecialLibrary,
	LayerSpecialHospital,
	LayerSpecialWater,
	LayerSpecialTransit,
	LayerSpecialUtility,
}

// Ordinal returns the enum order of a layer for deterministic leaf placement.
// Unknown layers sort last.
func (l Layer) Ordinal() int {
	for i, candidate := range AllLayers {
		if candidate == l {
			return i
		}
	}
	return len(AllLayers)
}

// tag is the single-byte enum tag used by the canonical leaf encoding (§4.G
// step 1: "layer (enum tag, 1 byte)"). It is independent of Ordinal so that
// reordering AllLayers for display purposes never perturbs committed leaves.
var tag = map[Layer]byte{
	LayerCongressional:    1,
	LayerStateUpper:       2,
	LayerStateLower:       3,
	LayerCounty:           4,
	LayerPlace:            5,
	LayerCouncilDistrict:  6,
	LayerSchoolUnified:    7,
	LayerSchoolElementary: 8,
	LayerSchoolSecondary:  9,
	LayerSpecialFire:      10,
	LayerSpecialLibrary:   11,
	LayerSpecialHospital:  12,
	LayerSpecialWater:     13,
	LayerSpecialTransit:   14,
	LayerSpecialUtility:   15,
}

// Tag returns the 1-byte canonical encoding tag for the layer. Returns 0 for
// an unrecognized layer, which callers must treat as an encoding error.
func (l Layer) Tag() byte {
	return tag[l]
}

// Tessellates reports whether this layer's features are expected to
// pairwise-disjointly cover their parent jurisdiction with no gaps (§4.F
// stage 5). Split elementary/secondary school districts are allowed to
// overlap; council districts within a city must tessellate.
func (l Layer) Tessellates() bool {
	switch l {
	case LayerCouncilDistrict, LayerCongressional, LayerStateUpper, LayerStateLower, LayerCounty, LayerSchoolUnified:
		return true
	default:
		return false
	}
}
