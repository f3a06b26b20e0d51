package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/registry"
)

func registryWithTiger() *registry.Registry {
	r := registry.New()
	r.Register(registry.NewTigerProvider(nil, "https://tiger.example", nil))
	return r
}

func TestPlan_RegionScopeFansOutPerMember(t *testing.T) {
	r := registryWithTiger()
	scope := boundary.NewRegionScope([]string{"50", "06"})

	tasks, err := Plan(r, scope, []boundary.Layer{boundary.LayerCounty})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestPlan_StateScopeBecomesLayerScope(t *testing.T) {
	r := registryWithTiger()
	scope := boundary.NewStateScope("50")

	tasks, err := Plan(r, scope, []boundary.Layer{boundary.LayerCongressional})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, boundary.ScopeLayer, tasks[0].Scope.Kind)
	assert.Equal(t, "50", tasks[0].Scope.StateFIPS)
}

func TestPlan_SkipsLayersWithNoProvider(t *testing.T) {
	r := registry.New() // empty: no provider supports any layer
	scope := boundary.NewStateScope("50")

	tasks, err := Plan(r, scope, []boundary.Layer{boundary.LayerCongressional})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestPlan_MultipleLayersEachGetOwnTask(t *testing.T) {
	r := registryWithTiger()
	scope := boundary.NewStateScope("50")

	tasks, err := Plan(r, scope, []boundary.Layer{boundary.LayerCongressional, boundary.LayerCounty})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}
