// Package extraction implements the Extraction Engine: decomposing a scope
// into per-(layer, jurisdiction) tasks, dispatching them across a bounded
// worker pool with caching, integrity verification, and retry, and
// reporting progress back to the Job Registry (§4.E).
package extraction

import (
	"shadowatlas/internal/boundary"
	"shadowatlas/internal/registry"
)

// Task is a single (provider, sub-scope) fetch + parse unit (§5:
// "A task is a single (provider, sub-scope) fetch + parse unit").
type Task struct {
	ID       string
	Layer    boundary.Layer
	Scope    boundary.Scope
	Provider registry.Provider
}

// Plan decomposes scope into per-(layer, jurisdiction) tasks using the
// registry to pick a provider for each layer the scope touches (§4.E
// step 1).
func Plan(reg *registry.Registry, scope boundary.Scope, layers []boundary.Layer) ([]Task, error) {
	var tasks []Task
	for _, layer := range layers {
		subScopes := subScopesFor(scope, layer)
		for _, sub := range subScopes {
			jurisdiction := jurisdictionFIPS(sub)
			provider, ok := reg.Select(layer, jurisdiction)
			if !ok {
				continue // no provider covers this (layer, jurisdiction); surfaced as a failed task by the caller if required
			}
			tasks = append(tasks, Task{
				ID:       taskID(layer, sub),
				Layer:    layer,
				Scope:    sub,
				Provider: provider,
			})
		}
	}
	return tasks, nil
}

// subScopesFor expands a scope into the per-jurisdiction sub-scopes a given
// layer must be fetched at. A Region scope fans out into one Layer sub-scope
// per member state; a State scope becomes one Layer sub-scope for that
// state; a Global scope becomes a single Layer sub-scope with no state.
// Layer and Single scopes pass through unchanged.
func subScopesFor(scope boundary.Scope, layer boundary.Layer) []boundary.Scope {
	switch scope.Kind {
	case boundary.ScopeRegion:
		out := make([]boundary.Scope, len(scope.RegionIDs))
		for i, fips := range scope.RegionIDs {
			out[i] = boundary.NewLayerScope(layer, fips)
		}
		return out
	case boundary.ScopeGlobal:
		return []boundary.Scope{boundary.NewLayerScope(layer, "")}
	case boundary.ScopeState:
		return []boundary.Scope{boundary.NewLayerScope(layer, scope.StateFIPS)}
	default:
		return []boundary.Scope{scope}
	}
}

func jurisdictionFIPS(scope boundary.Scope) string {
	switch scope.Kind {
	case boundary.ScopeState, boundary.ScopeLayer:
		return scope.StateFIPS
	default:
		return ""
	}
}

func taskID(layer boundary.Layer, scope boundary.Scope) string {
	return string(layer) + ":" + scope.Fingerprint()
}
