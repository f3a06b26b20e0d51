package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowatlas/internal/boundary"
)

func recordWithID(id string, layer boundary.Layer) boundary.BoundaryRecord {
	rec := sampleRecord()
	rec.BoundaryID = id
	rec.Layer = layer
	return rec
}

func TestBuild_SingleLeafTree(t *testing.T) {
	tree, err := Build([]boundary.BoundaryRecord{sampleRecord()})
	require.NoError(t, err)
	assert.Len(t, tree.Leaves, 1)
	assert.Equal(t, 0, tree.Depth())
	assert.Equal(t, tree.Leaves[0], tree.Root)
}

func TestBuild_OrderIndependent(t *testing.T) {
	records := []boundary.BoundaryRecord{
		recordWithID("5000100", boundary.LayerCongressional),
		recordWithID("5000200", boundary.LayerCongressional),
		recordWithID("5000300", boundary.LayerCongressional),
	}
	reversed := []boundary.BoundaryRecord{records[2], records[0], records[1]}

	t1, err := Build(records)
	require.NoError(t, err)
	t2, err := Build(reversed)
	require.NoError(t, err)
	assert.Equal(t, t1.Root, t2.Root)
}

func TestBuild_RejectsDuplicateBoundaryID(t *testing.T) {
	records := []boundary.BoundaryRecord{
		recordWithID("5000100", boundary.LayerCongressional),
		recordWithID("5000100", boundary.LayerCongressional),
	}
	_, err := Build(records)
	assert.Error(t, err)
}

func TestBuild_OddArityDuplicatesLastNode(t *testing.T) {
	records := []boundary.BoundaryRecord{
		recordWithID("a", boundary.LayerCongressional),
		recordWithID("b", boundary.LayerCongressional),
		recordWithID("c", boundary.LayerCongressional),
	}
	tree, err := Build(records)
	require.NoError(t, err)
	assert.NotEqual(t, [32]byte{}, tree.Root)
	assert.Equal(t, 2, tree.Depth())
}

func TestBuild_LayerOrderingThenBoundaryID(t *testing.T) {
	records := []boundary.BoundaryRecord{
		recordWithID("z", boundary.LayerCounty),
		recordWithID("a", boundary.LayerCongressional),
	}
	tree, err := Build(records)
	require.NoError(t, err)
	// Congressional sorts before County (layer ordinal), so "a" occupies
	// leaf index 0 despite lexicographically following "z".
	assert.Equal(t, 0, tree.LeafIndex["a"])
	assert.Equal(t, 1, tree.LeafIndex["z"])
}
