package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowatlas/internal/boundary"
)

func TestProve_VerifiesAgainstRoot(t *testing.T) {
	records := []boundary.BoundaryRecord{
		recordWithID("a", boundary.LayerCongressional),
		recordWithID("b", boundary.LayerCongressional),
		recordWithID("c", boundary.LayerCongressional),
		recordWithID("d", boundary.LayerCongressional),
	}
	tree, err := Build(records)
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c", "d"} {
		proof, err := tree.Prove(id)
		require.NoError(t, err)
		assert.True(t, proof.Verify(), "proof for %s should verify", id)
	}
}

func TestProve_UnknownBoundaryIDErrors(t *testing.T) {
	tree, err := Build([]boundary.BoundaryRecord{sampleRecord()})
	require.NoError(t, err)
	_, err = tree.Prove("does-not-exist")
	assert.Error(t, err)
}

func TestVerify_RejectsTamperedSibling(t *testing.T) {
	records := []boundary.BoundaryRecord{
		recordWithID("a", boundary.LayerCongressional),
		recordWithID("b", boundary.LayerCongressional),
		recordWithID("c", boundary.LayerCongressional),
	}
	tree, err := Build(records)
	require.NoError(t, err)

	proof, err := tree.Prove("a")
	require.NoError(t, err)
	proof.Siblings[0][0] ^= 0xFF
	assert.False(t, proof.Verify())
}

func TestCompactProof_ExpandRoundTrips(t *testing.T) {
	records := []boundary.BoundaryRecord{
		recordWithID("a", boundary.LayerCongressional),
		recordWithID("b", boundary.LayerCongressional),
	}
	tree, err := Build(records)
	require.NoError(t, err)

	proof, err := tree.Prove("a")
	require.NoError(t, err)

	compact := proof.Compact()
	expanded, err := compact.Expand()
	require.NoError(t, err)
	assert.Equal(t, proof, expanded)
	assert.True(t, expanded.Verify())
}

func TestCompactProof_ExpandRejectsMalformedHex(t *testing.T) {
	c := CompactProof{Root: "not-hex", Leaf: "also-not-hex"}
	_, err := c.Expand()
	assert.Error(t, err)
}
