package merkle

import (
	"encoding/hex"
	"fmt"

	"shadowatlas/internal/merkle/poseidon"
)

// Proof is the inclusion proof for a single boundary_id: the leaf digest,
// one sibling per level, and a path-index bit per level (0 = current node
// is the left child at that level, 1 = right) (§4.G).
type Proof struct {
	Root         [32]byte
	Leaf         [32]byte
	Siblings     [][32]byte
	PathIndices  []int
}

// Prove returns the inclusion proof for boundaryID, or an error if it is
// not present in the tree.
func (t *Tree) Prove(boundaryID string) (*Proof, error) {
	idx, ok := t.LeafIndex[boundaryID]
	if !ok {
		return nil, fmt.Errorf("boundary_id %q not present in tree", boundaryID)
	}

	depth := t.Depth()
	siblings := make([][32]byte, 0, depth)
	pathIndices := make([]int, 0, depth)

	current := idx
	for level := 0; level < depth; level++ {
		nodes := t.levels[level]
		isRight := current%2 == 1
		var siblingIdx int
		if isRight {
			siblingIdx = current - 1
			pathIndices = append(pathIndices, 1)
		} else {
			siblingIdx = current + 1
			if siblingIdx >= len(nodes) {
				siblingIdx = current // odd-arity: sibling duplicates self
			}
			pathIndices = append(pathIndices, 0)
		}
		siblings = append(siblings, nodes[siblingIdx])
		current /= 2
	}

	return &Proof{
		Root:        t.Root,
		Leaf:        t.Leaves[idx],
		Siblings:    siblings,
		PathIndices: pathIndices,
	}, nil
}

// Verify recomputes the root from leaf, siblings, and path indices and
// reports whether it matches root (§4.G: "starting from leaf, for each
// level compute H(left, right)... final value must equal root").
func Verify(root, leaf [32]byte, siblings [][32]byte, pathIndices []int) bool {
	if len(siblings) != len(pathIndices) {
		return false
	}
	current := leaf
	for i, sibling := range siblings {
		if pathIndices[i] == 0 {
			current = poseidon.HashBytes32(current, sibling)
		} else {
			current = poseidon.HashBytes32(sibling, current)
		}
	}
	return current == root
}

// Verify checks that the proof is valid against its own recorded root.
func (p *Proof) Verify() bool {
	return Verify(p.Root, p.Leaf, p.Siblings, p.PathIndices)
}

// CompactProof is the hex-serialized, loss-free wire form of a Proof
// (§4.G: "A compact proof form serializes siblings and path_indices as hex
// without loss").
type CompactProof struct {
	Root        string `json:"root"`
	Leaf        string `json:"leaf"`
	Siblings    []string `json:"siblings"`
	PathIndices []int  `json:"path_indices"`
}

// Compact renders p in its wire form.
func (p *Proof) Compact() CompactProof {
	siblings := make([]string, len(p.Siblings))
	for i, s := range p.Siblings {
		siblings[i] = hex.EncodeToString(s[:])
	}
	return CompactProof{
		Root:        hex.EncodeToString(p.Root[:]),
		Leaf:        hex.EncodeToString(p.Leaf[:]),
		Siblings:    siblings,
		PathIndices: append([]int(nil), p.PathIndices...),
	}
}

// Expand parses a CompactProof back into a Proof, validating hex lengths.
func (c CompactProof) Expand() (*Proof, error) {
	root, err := decode32(c.Root)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	leaf, err := decode32(c.Leaf)
	if err != nil {
		return nil, fmt.Errorf("leaf: %w", err)
	}
	siblings := make([][32]byte, len(c.Siblings))
	for i, s := range c.Siblings {
		sib, err := decode32(s)
		if err != nil {
			return nil, fmt.Errorf("sibling %d: %w", i, err)
		}
		siblings[i] = sib
	}
	return &Proof{
		Root:        root,
		Leaf:        leaf,
		Siblings:    siblings,
		PathIndices: append([]int(nil), c.PathIndices...),
	}, nil
}

func decode32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
