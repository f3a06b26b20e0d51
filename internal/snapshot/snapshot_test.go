package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/merkle"
)

func buildTree(t *testing.T, id string) *merkle.Tree {
	t.Helper()
	tree, err := merkle.Build([]boundary.BoundaryRecord{{
		BoundaryID: id, Layer: boundary.LayerCongressional, VintageYear: 2024,
	}})
	require.NoError(t, err)
	return tree
}

func TestPut_RootSnapshotSucceeds(t *testing.T) {
	store := New()
	id, err := store.Put(Snapshot{Tree: buildTree(t, "a")})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestPut_IsDeterministicForIdenticalContent(t *testing.T) {
	store := New()
	id1, err := store.Put(Snapshot{Tree: buildTree(t, "a")})
	require.NoError(t, err)

	store2 := New()
	id2, err := store2.Put(Snapshot{Tree: buildTree(t, "a")})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestPut_RejectsMissingTree(t *testing.T) {
	store := New()
	_, err := store.Put(Snapshot{})
	assert.Error(t, err)
}

func TestPut_RejectsUnknownParent(t *testing.T) {
	store := New()
	_, err := store.Put(Snapshot{Tree: buildTree(t, "a"), ParentID: "does-not-exist"})
	assert.Error(t, err)
}

func TestGet_ReturnsStoredSnapshot(t *testing.T) {
	store := New()
	id, err := store.Put(Snapshot{Tree: buildTree(t, "a")})
	require.NoError(t, err)

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
}

func TestParentChain_ReturnsFullLineage(t *testing.T) {
	store := New()
	root, err := store.Put(Snapshot{Tree: buildTree(t, "a")})
	require.NoError(t, err)
	child, err := store.Put(Snapshot{Tree: buildTree(t, "b"), ParentID: root})
	require.NoError(t, err)

	chain, err := store.ParentChain(child)
	require.NoError(t, err)
	assert.Equal(t, []string{child, root}, chain)
}

func TestDelete_CascadesToDescendants(t *testing.T) {
	store := New()
	root, err := store.Put(Snapshot{Tree: buildTree(t, "a")})
	require.NoError(t, err)
	child, err := store.Put(Snapshot{Tree: buildTree(t, "b"), ParentID: root})
	require.NoError(t, err)

	require.NoError(t, store.Delete(root))

	_, ok := store.Get(root)
	assert.False(t, ok)
	_, ok = store.Get(child)
	assert.False(t, ok)
}

func TestDelete_UnknownIDErrors(t *testing.T) {
	store := New()
	assert.Error(t, store.Delete("does-not-exist"))
}

func TestList_OrderedOldestFirst(t *testing.T) {
	store := New()
	a, err := store.Put(Snapshot{Tree: buildTree(t, "a")})
	require.NoError(t, err)
	b, err := store.Put(Snapshot{Tree: buildTree(t, "b"), ParentID: a})
	require.NoError(t, err)

	metas := store.List()
	require.Len(t, metas, 2)
	assert.Equal(t, a, metas[0].ID)
	assert.Equal(t, b, metas[1].ID)
}
