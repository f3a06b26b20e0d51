package merkle

import "shadowatlas/internal/boundary"

// CommitResult is what the Merkle Commit Engine hands back to a caller
// (typically the Snapshot Store) after committing a record set (§4.G).
type CommitResult struct {
	Root      [32]byte
	LeafCount int
	Tree      *Tree
}

// Commit builds a tree over records and reports the root and leaf count.
// It is idempotent: identical records (regardless of input order) commit to
// an identical root, since Build re-sorts deterministically by layer then
// boundary_id before hashing.
func Commit(records []boundary.BoundaryRecord) (CommitResult, error) {
	tree, err := Build(records)
	if err != nil {
		return CommitResult{}, err
	}
	return CommitResult{
		Root:      tree.Root,
		LeafCount: len(tree.Leaves),
		Tree:      tree,
	}, nil
}
