package merkle

import (
	"fmt"
	"math/big"
	"sort"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/merkle/poseidon"
)

// Tree is a built Merkle tree over a fixed, ordered set of leaves. Leaves
// are placed at indices assigned first by layer (enum order), then by
// boundary_id lexicographic order (§4.G), so the committed root is
// independent of extraction or task completion order.
type Tree struct {
	Root        [32]byte
	Leaves      [][32]byte // leaf digests, in index order
	LeafIndex   map[string]int
	levels      [][][32]byte // levels[0] = leaves, levels[len-1] = [root]
}

// Depth returns ceil(log2(leaf_count)), the number of sibling levels a
// proof must traverse.
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

// Build constructs a Tree from validated records, assigning each a
// deterministic leaf index and hashing bottom-up with the Poseidon node
// hash. Identical input yields an identical root (§4.G: idempotent commit).
func Build(records []boundary.BoundaryRecord) (*Tree, error) {
	ordered := make([]boundary.BoundaryRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Layer.Ordinal() != ordered[j].Layer.Ordinal() {
			return ordered[i].Layer.Ordinal() < ordered[j].Layer.Ordinal()
		}
		return ordered[i].BoundaryID < ordered[j].BoundaryID
	})

	leaves := make([][32]byte, len(ordered))
	index := make(map[string]int, len(ordered))
	for i, rec := range ordered {
		digest, err := LeafDigest(rec)
		if err != nil {
			return nil, fmt.Errorf("leaf digest for %s: %w", rec.BoundaryID, err)
		}
		leaves[i] = digest
		if _, exists := index[rec.BoundaryID]; exists {
			return nil, fmt.Errorf("duplicate boundary_id %s within layer set", rec.BoundaryID)
		}
		index[rec.BoundaryID] = i
	}

	levels := [][][32]byte{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := current[i]
			if i+1 < len(current) {
				right = current[i+1] // odd-arity levels duplicate the last node
			}
			next = append(next, poseidon.HashBytes32(left, right))
		}
		levels = append(levels, next)
		current = next
	}
	if len(current) == 0 {
		current = [][32]byte{{}}
		levels = append(levels, current)
	}

	return &Tree{
		Root:      current[0],
		Leaves:    leaves,
		LeafIndex: index,
		levels:    levels,
	}, nil
}

// LeafScalarAt reduces the leaf digest at idx into its field element, for
// callers that need the scalar the circuit verifier operates on rather than
// the raw SHA-256 digest.
func (t *Tree) LeafScalarAt(idx int) *big.Int {
	n := new(big.Int).SetBytes(t.Leaves[idx][:])
	n.Mod(n, poseidon.Prime)
	return n
}
