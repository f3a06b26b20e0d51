package registry

import (
	"context"
	"time"

	"shadowatlas/internal/boundary"
)

// fakeProvider is a minimal in-memory Provider for registry selection tests.
type fakeProvider struct {
	id       string
	metadata Metadata
}

func (f fakeProvider) ID() string            { return f.id }
func (f fakeProvider) Metadata() Metadata     { return f.metadata }
func (f fakeProvider) Extract(ctx context.Context, scope boundary.Scope) (boundary.FeatureCollection, error) {
	return boundary.FeatureCollection{Layer: scope.Layer, Scope: scope}, nil
}
func (f fakeProvider) HealthCheck(ctx context.Context) (HealthStatus, error) {
	return HealthStatus{Available: true}, nil
}
func (f fakeProvider) HasChangedSince(ctx context.Context, t time.Time) (bool, error) {
	return true, nil
}

func withTier(id string, tier boundary.AuthorityTier, layer boundary.Layer) fakeProvider {
	return fakeProvider{id: id, metadata: Metadata{
		CountryCode:     "US",
		AuthorityTier:   tier,
		SupportedLayers: []boundary.Layer{layer},
		UpdateCadence:   24 * time.Hour,
	}}
}
