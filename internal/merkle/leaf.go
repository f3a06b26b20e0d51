// Package merkle implements the canonical leaf encoding, Poseidon-based node
// hash, tree construction, and proof generation/verification of the Merkle
// Commit Engine (§4.G).
package merkle

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/paulmach/orb"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/geo"
	"shadowatlas/internal/merkle/poseidon"
)

// WKBPrecision is the coordinate rounding precision (decimal places, ~1cm)
// the geometry digest uses (§4.G step 5).
const WKBPrecision = 7

// LeafScalar computes the field element a BoundaryRecord reduces to, over
// the canonical byte encoding: layer tag, boundary_id, jurisdiction_fips,
// vintage_year, geometry_digest, attribute_digest, provenance_digest.
func LeafScalar(rec boundary.BoundaryRecord) (*big.Int, error) {
	digest, err := LeafDigest(rec)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(digest[:])
	n.Mod(n, poseidon.Prime)
	return n, nil
}

// LeafDigest computes the SHA-256 digest over the canonical byte encoding
// before field reduction; exposed separately so the Snapshot Store and
// proof verification can compare leaf bytes without re-deriving geometry
// digests.
func LeafDigest(rec boundary.BoundaryRecord) ([32]byte, error) {
	geomDigest, err := GeometryDigest(rec.Geometry)
	if err != nil {
		return [32]byte{}, err
	}
	attrDigest := AttributeDigest(rec.Attributes)
	provDigest := ProvenanceDigest(rec.Provenance)

	h := sha256.New()
	h.Write([]byte{rec.Layer.Tag()})
	writeLengthPrefixed(h, []byte(rec.BoundaryID))
	writeLengthPrefixed(h, []byte(rec.JurisdictionFIPS))
	var vintage [2]byte
	binary.BigEndian.PutUint16(vintage[:], uint16(rec.VintageYear))
	h.Write(vintage[:])
	h.Write(geomDigest[:])
	h.Write(attrDigest[:])
	h.Write(provDigest[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func writeLengthPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	h.Write(length[:])
	h.Write(b)
}

// GeometryDigest is SHA-256 over the geometry's canonical WKB: coordinates
// rounded to WKBPrecision decimal places, outer ring CCW / inner rings CW,
// and (for multipolygons) member polygons sorted lexicographically by first
// coordinate (§4.G step 5).
func GeometryDigest(g orb.Geometry) ([32]byte, error) {
	normalized := normalize(g)
	wkb, err := geo.CanonicalWKB(normalized, WKBPrecision)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(wkb), nil
}

func normalize(g orb.Geometry) orb.Geometry {
	switch v := g.(type) {
	case orb.Polygon:
		return geo.NormalizeRingOrientation(v)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, poly := range v {
			out[i] = geo.NormalizeRingOrientation(poly)
		}
		return geo.SortRingsLexicographically(out)
	default:
		return g
	}
}

// AttributeDigest is SHA-256 over the record's attributes, encoded as
// length-prefixed key/value pairs in key-sorted order (§4.G step 6).
func AttributeDigest(props boundary.FeatureProperties) [32]byte {
	h := sha256.New()
	for _, key := range props.SortedKeys() {
		val, _ := props.Get(key)
		writeLengthPrefixed(h, []byte(key))
		writeLengthPrefixed(h, []byte(val.String()))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ProvenanceDigest is SHA-256 over (source_url || response_checksum ||
// authority_tier) (§4.G step 7).
func ProvenanceDigest(p boundary.Provenance) [32]byte {
	h := sha256.New()
	writeLengthPrefixed(h, []byte(p.SourceURL))
	writeLengthPrefixed(h, []byte(p.ResponseChecksum))
	h.Write([]byte{byte(p.AuthorityTier)})
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
