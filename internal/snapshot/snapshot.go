// Package snapshot implements the append-only Snapshot Store: committed
// Merkle roots and their record sets, addressable by snapshot_id, with
// parent-chain lineage and cascading delete (§4.H), backed by a pure-Go
// sqlite database the same way internal/cache and internal/job are.
package snapshot

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/merkle"
	"shadowatlas/internal/validation"
)

func init() {
	gob.Register(orb.Polygon{})
	gob.Register(orb.MultiPolygon{})
}

// Snapshot is a committed record set plus its Merkle tree and validation
// report.
type Snapshot struct {
	ID               string
	ParentID         string // empty for a root snapshot
	CreatedAt        time.Time
	Records          []boundary.BoundaryRecord
	Tree             *merkle.Tree
	ValidationReport validation.AggregatedValidationResult
}

// Meta is the lightweight listing shape returned by List.
type Meta struct {
	ID        string
	ParentID  string
	CreatedAt time.Time
	Root      [32]byte
	LeafCount int
}

// payload is what's actually marshaled to the payload BLOB column.
// merkle.Tree carries an unexported levels field derived entirely from its
// leaves, so it isn't gob-encoded directly; Get rebuilds it from Records via
// merkle.Build, which is deterministic for a given record set (§4.G).
type payload struct {
	Records          []boundary.BoundaryRecord
	ValidationReport validation.AggregatedValidationResult
}

// Store is a sqlite-backed, append-only snapshot store (§4.H). Parent-child
// lineage is tracked in a small in-memory index rebuilt from the database at
// Open, since descendant-walk and cycle-detection queries are cheap on the
// handful-of-thousands of snapshots this table ever holds.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	children map[string][]string // parent id -> child ids, index over the same table
}

// New opens an in-memory sqlite-backed store, for callers (tests, one-shot
// CLI runs) that don't need snapshots to outlive the process.
func New() *Store {
	store, err := Open(":memory:")
	if err != nil {
		// :memory: never fails to open; a failure here means sqlite itself
		// is unusable, which every other component would also fail on.
		panic(fmt.Sprintf("snapshot: open in-memory store: %v", err))
	}
	return store
}

// Open opens (creating if necessary) the snapshot database at path. Use
// ":memory:" for a process-local, non-persistent store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("snapshot: create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("snapshot: set WAL mode: %w", err)
	}

	store := &Store{db: db, children: make(map[string][]string)}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := store.loadChildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (store *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		root BLOB NOT NULL,
		leaf_count INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS snapshots_parent_id ON snapshots(parent_id);
	`
	_, err := store.db.Exec(schema)
	return err
}

func (store *Store) loadChildIndex() error {
	rows, err := store.db.Query(`SELECT id, parent_id FROM snapshots WHERE parent_id != ''`)
	if err != nil {
		return fmt.Errorf("snapshot: load child index: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, parentID string
		if err := rows.Scan(&id, &parentID); err != nil {
			return fmt.Errorf("snapshot: scan child index: %w", err)
		}
		store.children[parentID] = append(store.children[parentID], id)
	}
	return rows.Err()
}

// Close releases the underlying database handle.
func (store *Store) Close() error {
	return store.db.Close()
}

// Put assigns a deterministic, content-derived snapshot_id (sha256 of the
// committed root plus the parent id, so two independent commits of
// identical records produce identical ids) and stores s, returning the id
// (§4.H: put(snapshot) -> snapshot_id).
func (store *Store) Put(s Snapshot) (string, error) {
	if s.Tree == nil {
		return "", fmt.Errorf("snapshot: cannot store a snapshot with no committed tree")
	}
	id := deriveID(s.Tree.Root, s.ParentID)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if s.ParentID != "" {
		var exists int
		if err := store.db.QueryRow(`SELECT 1 FROM snapshots WHERE id = ?`, s.ParentID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return "", fmt.Errorf("snapshot: parent %q does not exist", s.ParentID)
			}
			return "", fmt.Errorf("snapshot: check parent %q: %w", s.ParentID, err)
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload{Records: s.Records, ValidationReport: s.ValidationReport}); err != nil {
		return "", fmt.Errorf("snapshot: encode %s: %w", id, err)
	}

	_, err := store.db.Exec(
		`INSERT INTO snapshots (id, parent_id, created_at, root, leaf_count, payload)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   parent_id = excluded.parent_id, created_at = excluded.created_at,
		   root = excluded.root, leaf_count = excluded.leaf_count, payload = excluded.payload`,
		id, s.ParentID, s.CreatedAt, s.Tree.Root[:], len(s.Tree.Leaves), buf.Bytes(),
	)
	if err != nil {
		return "", fmt.Errorf("snapshot: put %s: %w", id, err)
	}
	if s.ParentID != "" {
		store.children[s.ParentID] = append(store.children[s.ParentID], id)
	}
	return id, nil
}

func deriveID(root [32]byte, parentID string) string {
	h := sha256.New()
	h.Write(root[:])
	h.Write([]byte(parentID))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Get returns the snapshot for id, rebuilding its Merkle tree from the
// stored record set.
func (store *Store) Get(id string) (Snapshot, bool) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.getLocked(id)
}

func (store *Store) getLocked(id string) (Snapshot, bool) {
	var (
		parentID  string
		createdAt time.Time
		payloadBytes []byte
	)
	row := store.db.QueryRow(`SELECT parent_id, created_at, payload FROM snapshots WHERE id = ?`, id)
	if err := row.Scan(&parentID, &createdAt, &payloadBytes); err != nil {
		return Snapshot{}, false
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(payloadBytes)).Decode(&p); err != nil {
		return Snapshot{}, false
	}
	tree, err := merkle.Build(p.Records)
	if err != nil {
		return Snapshot{}, false
	}

	return Snapshot{
		ID:               id,
		ParentID:         parentID,
		CreatedAt:        createdAt,
		Records:          p.Records,
		Tree:             tree,
		ValidationReport: p.ValidationReport,
	}, true
}

// List returns metadata for every stored snapshot, oldest first.
func (store *Store) List() []Meta {
	store.mu.RLock()
	defer store.mu.RUnlock()

	rows, err := store.db.Query(`SELECT id, parent_id, created_at, root, leaf_count FROM snapshots ORDER BY created_at ASC`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []Meta
	for rows.Next() {
		var (
			id, parentID string
			createdAt    time.Time
			root         []byte
			leafCount    int
		)
		if err := rows.Scan(&id, &parentID, &createdAt, &root, &leafCount); err != nil {
			continue
		}
		var m Meta
		m.ID, m.ParentID, m.CreatedAt, m.LeafCount = id, parentID, createdAt, leafCount
		copy(m.Root[:], root)
		out = append(out, m)
	}
	return out
}

// ParentChain returns the chain of snapshot ids from id back to its root
// ancestor, inclusive of id.
func (store *Store) ParentChain(id string) ([]string, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var chain []string
	current := id
	seen := make(map[string]bool)
	for current != "" {
		if seen[current] {
			return nil, fmt.Errorf("snapshot: cycle detected in parent chain at %q", current)
		}
		seen[current] = true
		s, ok := store.getLocked(current)
		if !ok {
			return nil, fmt.Errorf("snapshot: %q does not exist", current)
		}
		chain = append(chain, current)
		current = s.ParentID
	}
	return chain, nil
}

// Delete removes id and every downstream-dependent (child) snapshot
// atomically, or refuses entirely if any descendant cannot be resolved
// (§4.H: "Deleting a snapshot also deletes downstream-dependent snapshots
// atomically, or the operation is refused").
func (store *Store) Delete(id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	toDelete, err := store.descendantsLocked(id)
	if err != nil {
		return err
	}
	parentOf := make(map[string]string, len(toDelete))
	for _, victim := range toDelete {
		parentOf[victim] = store.parentOfLocked(victim)
	}

	tx, err := store.db.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin delete %s: %w", id, err)
	}
	for _, victim := range toDelete {
		if _, err := tx.Exec(`DELETE FROM snapshots WHERE id = ?`, victim); err != nil {
			tx.Rollback()
			return fmt.Errorf("snapshot: delete %s: %w", victim, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: commit delete %s: %w", id, err)
	}

	for _, victim := range toDelete {
		delete(store.children, victim)
		if parentID := parentOf[victim]; parentID != "" {
			store.children[parentID] = removeString(store.children[parentID], victim)
		}
	}
	return nil
}

func (store *Store) parentOfLocked(id string) string {
	var parentID string
	store.db.QueryRow(`SELECT parent_id FROM snapshots WHERE id = ?`, id).Scan(&parentID)
	return parentID
}

func (store *Store) descendantsLocked(id string) ([]string, error) {
	var exists int
	if err := store.db.QueryRow(`SELECT 1 FROM snapshots WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("snapshot: %q does not exist", id)
	}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		var stillExists int
		if err := store.db.QueryRow(`SELECT 1 FROM snapshots WHERE id = ?`, current).Scan(&stillExists); err != nil {
			return nil, fmt.Errorf("snapshot: descendant %q could not be resolved; delete refused", current)
		}
		out = append(out, current)
		queue = append(queue, store.children[current]...)
	}
	return out, nil
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
