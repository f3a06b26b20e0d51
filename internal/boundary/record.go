package boundary

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Provenance records where a record came from and how to re-verify it (§3).
type Provenance struct {
	SourceURL        string
	ResponseChecksum string // SHA-256 hex of the raw upstream response
	RetrievedAt      time.Time
	AuthorityTier    AuthorityTier
}

// BoundaryRecord is the immutable, committed unit of the system (§3).
// Invariants enforced by Validate: boundary_id is non-empty, vintage_year >=
// 2020, and the geometry is a Polygon or MultiPolygon. boundary_id uniqueness
// per layer is enforced by the caller across a FeatureCollection, and ring
// closure and geometric validity are not checked by Validate (see its doc).
// WGS84 is assumed of all orb.Geometry values in this package; no
// reprojection is performed.
type BoundaryRecord struct {
	BoundaryID       string
	Layer            Layer
	JurisdictionFIPS string
	DisplayName      string
	VintageYear      int
	Geometry         orb.Geometry // orb.Polygon or orb.MultiPolygon
	LandAreaM2       float64
	WaterAreaM2      float64
	Provenance       Provenance
	Attributes       FeatureProperties
}

// MinVintageYear is the earliest vintage_year the spec allows (§3).
const MinVintageYear = 2020

// Validate checks the per-record invariants from §3. Geometry closure and
// self-intersection tolerance are delegated to internal/geo, which callers
// must invoke separately (this keeps internal/boundary free of a dependency
// on the validation pipeline's tolerance configuration).
func (r BoundaryRecord) Validate() error {
	if r.BoundaryID == "" {
		return fmt.Errorf("boundary_id must not be empty")
	}
	if r.VintageYear < MinVintageYear {
		return fmt.Errorf("boundary %s: vintage_year %d is before minimum %d", r.BoundaryID, r.VintageYear, MinVintageYear)
	}
	switch r.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return fmt.Errorf("boundary %s: geometry must be Polygon or MultiPolygon, got %T", r.BoundaryID, r.Geometry)
	}
	return nil
}

// CollectionProvenance records which provider, query, and cache state
// produced a FeatureCollection (§3).
type CollectionProvenance struct {
	ProviderID string
	Query      string
	CacheHit   bool
}

// FeatureCollection is a transient container produced by extractors: an
// ordered sequence of BoundaryRecords sharing a layer and scope (§3).
type FeatureCollection struct {
	Layer      Layer
	Scope      Scope
	Records    []BoundaryRecord
	Provenance CollectionProvenance
}

// DeduplicateMissingGeometry drops features lacking geometry, keeping the
// first occurrence of each boundary_id seen with geometry (§4.C: "must
// deduplicate features lacking geometry").
func (fc *FeatureCollection) DeduplicateMissingGeometry() {
	out := make([]BoundaryRecord, 0, len(fc.Records))
	seen := make(map[string]bool, len(fc.Records))
	for _, rec := range fc.Records {
		if rec.Geometry == nil {
			continue
		}
		if seen[rec.BoundaryID] {
			continue
		}
		seen[rec.BoundaryID] = true
		out = append(out, rec)
	}
	fc.Records = out
}

// GEOIDs returns the set of boundary IDs present, in encounter order.
func (fc FeatureCollection) GEOIDs() []string {
	ids := make([]string, len(fc.Records))
	for i, r := range fc.Records {
		ids[i] = r.BoundaryID
	}
	return ids
}
