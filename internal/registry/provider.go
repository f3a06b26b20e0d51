// Package registry implements the Extractor Registry: the catalog of
// boundary providers and the selection algorithm that picks one for a given
// scope (§4.C).
package registry

import (
	"context"
	"time"

	"shadowatlas/internal/boundary"
)

// HealthStatus is the result of a provider health check.
type HealthStatus struct {
	Available bool
	LatencyMS int64
	Issues    []string
}

// Metadata describes a provider's capabilities, used by selection and by
// the cardinality/geographic-bounds validators for sanity checks.
type Metadata struct {
	CountryCode     string
	AuthorityTier   boundary.AuthorityTier
	SupportedLayers []boundary.Layer
	ExpectedCounts  map[boundary.Layer]int
	License         string
	UpdateCadence   time.Duration
}

// Fetcher is the minimal HTTP boundary a provider adapter needs. It is
// satisfied by net/http's default client for production use and by a fake
// in tests; providers never hold a concrete *http.Client directly so the
// registry's capability contract stays testable without a network.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Provider is the uniform capability set every boundary source exposes
// (§4.C).
type Provider interface {
	ID() string
	Metadata() Metadata
	Extract(ctx context.Context, scope boundary.Scope) (boundary.FeatureCollection, error)
	HealthCheck(ctx context.Context) (HealthStatus, error)
	HasChangedSince(ctx context.Context, t time.Time) (bool, error)
}

// FailureStats tracks a provider's historical reliability, used as the
// final tie-break in selection.
type FailureStats struct {
	Attempts int
	Failures int
}

// FailureRate returns Failures/Attempts, or 0 if there have been no
// attempts yet (an untested provider is not penalized).
func (f FailureStats) FailureRate() float64 {
	if f.Attempts == 0 {
		return 0
	}
	return float64(f.Failures) / float64(f.Attempts)
}

// Registry is the catalog of registered providers plus their observed
// reliability.
type Registry struct {
	providers map[string]Provider
	stats     map[string]FailureStats
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		stats:     make(map[string]FailureStats),
	}
}

// Register adds a provider to the catalog.
func (r *Registry) Register(p Provider) {
	r.providers[p.ID()] = p
	if _, ok := r.stats[p.ID()]; !ok {
		r.stats[p.ID()] = FailureStats{}
	}
}

// RecordOutcome updates a provider's failure statistics after a task
// completes, feeding the selection tie-break.
func (r *Registry) RecordOutcome(providerID string, succeeded bool) {
	s := r.stats[providerID]
	s.Attempts++
	if !succeeded {
		s.Failures++
	}
	r.stats[providerID] = s
}

// candidate pairs a provider with the fields selection ranks on.
type candidate struct {
	provider Provider
	tier     boundary.AuthorityTier
	cadence  time.Duration
	failRate float64
}

// Select picks the best-fit provider for (layer, jurisdictionFIPS) by
// layer fit, jurisdiction fit, authority tier (prefer higher), freshness
// (shorter update cadence wins), with historical failure rate as the final
// tie-break (§4.C).
func (r *Registry) Select(layer boundary.Layer, jurisdictionFIPS string) (Provider, bool) {
	var candidates []candidate
	for _, p := range r.providers {
		md := p.Metadata()
		if !supportsLayer(md.SupportedLayers, layer) {
			continue
		}
		if !jurisdictionFits(md.CountryCode, jurisdictionFIPS) {
			continue
		}
		candidates = append(candidates, candidate{
			provider: p,
			tier:     md.AuthorityTier,
			cadence:  md.UpdateCadence,
			failRate: r.stats[p.ID()].FailureRate(),
		})
	}
	if len(candidates) == 0 {
		return nil, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best.provider, true
}

func better(a, b candidate) bool {
	if a.tier != b.tier {
		return a.tier > b.tier
	}
	if a.cadence != b.cadence {
		// Shorter update cadence means fresher data.
		return a.cadence < b.cadence
	}
	return a.failRate < b.failRate
}

func supportsLayer(layers []boundary.Layer, target boundary.Layer) bool {
	for _, l := range layers {
		if l == target {
			return true
		}
	}
	return false
}

// jurisdictionFits is a coarse jurisdiction-matching rule: a provider with no
// country code or with country code "US" fits every jurisdiction, and a
// provider with any other country code fits none. jurisdictionFIPS is not
// consulted; no state/county/place containment matching is done.
func jurisdictionFits(countryCode, jurisdictionFIPS string) bool {
	if countryCode == "" {
		return true
	}
	return countryCode == "US"
}

// Candidates returns every registered provider that supports layer, sorted
// best-first by the same ranking Select uses, for callers that want the
// full ranked list (e.g. the cross-source comparator, §4.F stage 7).
func (r *Registry) Candidates(layer boundary.Layer) []Provider {
	var cands []candidate
	for _, p := range r.providers {
		if supportsLayer(p.Metadata().SupportedLayers, layer) {
			cands = append(cands, candidate{
				provider: p,
				tier:     p.Metadata().AuthorityTier,
				cadence:  p.Metadata().UpdateCadence,
				failRate: r.stats[p.ID()].FailureRate(),
			})
		}
	}
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && better(cands[j], cands[j-1]); j-- {
			cands[j-1], cands[j] = cands[j], cands[j-1]
		}
	}
	out := make([]Provider, len(cands))
	for i, c := range cands {
		out[i] = c.provider
	}
	return out
}
