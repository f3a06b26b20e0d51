package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"shadowatlas/internal/boundary"
)

// ParseFunc turns a raw upstream response body into a FeatureCollection.
// Concrete parsing (ArcGIS JSON, Socrata SoQL rows, Shapefile/Webmap
// payloads) is an adapter concern named but not implemented here — the
// extractor contract this registry enforces is the scope/provider/caching
// boundary, not the upstream wire formats (§1: "ArcGIS/Socrata/Webmap HTTP
// adapters are described only by their extractor contracts").
type ParseFunc func(body []byte, scope boundary.Scope) (boundary.FeatureCollection, error)

// HTTPProvider is a generic Provider built from a Fetcher, a URL template,
// and a ParseFunc, shared by every illustrative adapter below so each one
// only needs to supply its metadata and URL shape.
type HTTPProvider struct {
	id       string
	metadata Metadata
	fetcher  Fetcher
	urlFor   func(scope boundary.Scope) string
	parse    ParseFunc
}

// NewHTTPProvider builds a provider that fetches urlFor(scope) and parses
// the response with parse.
func NewHTTPProvider(id string, metadata Metadata, fetcher Fetcher, urlFor func(boundary.Scope) string, parse ParseFunc) *HTTPProvider {
	return &HTTPProvider{id: id, metadata: metadata, fetcher: fetcher, urlFor: urlFor, parse: parse}
}

func (p *HTTPProvider) ID() string          { return p.id }
func (p *HTTPProvider) Metadata() Metadata  { return p.metadata }

// Extract fetches and parses the scope's feature collection, then
// deduplicates features lacking geometry (§4.C).
func (p *HTTPProvider) Extract(ctx context.Context, scope boundary.Scope) (boundary.FeatureCollection, error) {
	url := p.urlFor(scope)
	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return boundary.FeatureCollection{}, fmt.Errorf("%s: fetch %s: %w", p.id, url, err)
	}
	fc, err := p.parse(body, scope)
	if err != nil {
		return boundary.FeatureCollection{}, fmt.Errorf("%s: parse %s: %w", p.id, url, err)
	}
	fc.Provenance.ProviderID = p.id
	fc.Provenance.Query = url
	fc.DeduplicateMissingGeometry()
	return fc, nil
}

// HealthCheck issues a lightweight fetch against the provider's base
// endpoint and reports latency; adapters with a cheaper health endpoint can
// embed HTTPProvider and override this.
func (p *HTTPProvider) HealthCheck(ctx context.Context) (HealthStatus, error) {
	start := time.Now()
	_, err := p.fetcher.Fetch(ctx, p.urlFor(boundary.NewGlobalScope()))
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return HealthStatus{Available: false, LatencyMS: latency, Issues: []string{err.Error()}}, nil
	}
	return HealthStatus{Available: true, LatencyMS: latency}, nil
}

// HasChangedSince conservatively reports true: without a provider-specific
// change signal (ETag, total_count endpoint), the safest default is to
// re-extract rather than silently serve stale data (§4.C).
func (p *HTTPProvider) HasChangedSince(ctx context.Context, t time.Time) (bool, error) {
	return true, nil
}

// NewTigerProvider builds the federal TIGER/Census adapter: the highest
// authority tier, used as the default source for congressional, state
// legislative, and county layers.
func NewTigerProvider(fetcher Fetcher, baseURL string, parse ParseFunc) *HTTPProvider {
	return NewHTTPProvider("tiger", Metadata{
		CountryCode:   "US",
		AuthorityTier: boundary.AuthorityFederal,
		SupportedLayers: []boundary.Layer{
			boundary.LayerCongressional, boundary.LayerStateUpper, boundary.LayerStateLower, boundary.LayerCounty,
		},
		License:       "public domain (US Census Bureau)",
		UpdateCadence: 365 * 24 * time.Hour,
	}, fetcher, func(scope boundary.Scope) string {
		return fmt.Sprintf("%s/tigerweb/%s", baseURL, scope.Fingerprint())
	}, parse)
}

// NewArcGISProvider builds a state/regional ArcGIS REST FeatureServer
// adapter, typically used for council districts and special districts a
// state GIS office publishes directly.
func NewArcGISProvider(id, baseURL string, tier boundary.AuthorityTier, layers []boundary.Layer, fetcher Fetcher, parse ParseFunc) *HTTPProvider {
	return NewHTTPProvider(id, Metadata{
		CountryCode:     "US",
		AuthorityTier:   tier,
		SupportedLayers: layers,
		License:         "varies by publisher",
		UpdateCadence:   90 * 24 * time.Hour,
	}, fetcher, func(scope boundary.Scope) string {
		return fmt.Sprintf("%s/FeatureServer/query?scope=%s", baseURL, scope.Fingerprint())
	}, parse)
}

// NewSocrataProvider builds a municipal open-data portal adapter (Socrata
// SoQL API), typically used for council districts and municipal special
// districts.
func NewSocrataProvider(id, baseURL, datasetID string, fetcher Fetcher, parse ParseFunc) *HTTPProvider {
	return NewHTTPProvider(id, Metadata{
		CountryCode:     "US",
		AuthorityTier:   boundary.AuthorityMunicipal,
		SupportedLayers: []boundary.Layer{boundary.LayerCouncilDistrict, boundary.LayerSpecialFire, boundary.LayerSpecialLibrary},
		License:         "varies by municipality",
		UpdateCadence:   30 * 24 * time.Hour,
	}, fetcher, func(scope boundary.Scope) string {
		return fmt.Sprintf("%s/resource/%s.geojson?scope=%s", baseURL, datasetID, scope.Fingerprint())
	}, parse)
}

// NewWebmapProvider builds an adapter for a bespoke municipal web map's
// feature-collection export endpoint, the lowest-authority, most
// heterogeneous source tier the registry supports.
func NewWebmapProvider(id, baseURL string, fetcher Fetcher, parse ParseFunc) *HTTPProvider {
	return NewHTTPProvider(id, Metadata{
		CountryCode:     "US",
		AuthorityTier:   boundary.AuthorityDerived,
		SupportedLayers: []boundary.Layer{boundary.LayerSpecialTransit, boundary.LayerSpecialUtility, boundary.LayerSpecialWater},
		License:         "unknown",
		UpdateCadence:   180 * 24 * time.Hour,
	}, fetcher, func(scope boundary.Scope) string {
		return fmt.Sprintf("%s/export?scope=%s", baseURL, scope.Fingerprint())
	}, parse)
}

// NewRepresentProvider builds an adapter for Represent-style civic APIs
// (used internationally, e.g. Open North's Represent in Canada), the only
// non-US source the registry is expected to reference.
func NewRepresentProvider(id, baseURL, countryCode string, fetcher Fetcher, parse ParseFunc) *HTTPProvider {
	return NewHTTPProvider(id, Metadata{
		CountryCode:     countryCode,
		AuthorityTier:   boundary.AuthorityRegional,
		SupportedLayers: []boundary.Layer{boundary.LayerCouncilDistrict},
		License:         "Open Database License",
		UpdateCadence:   180 * 24 * time.Hour,
	}, fetcher, func(scope boundary.Scope) string {
		return fmt.Sprintf("%s/boundaries/?scope=%s", baseURL, scope.Fingerprint())
	}, parse)
}

// ChecksumHex is a small helper adapters use to compute the SHA-256 of a
// fetched archive before handing it to the Integrity Manifest (§4.E step 3).
func ChecksumHex(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
