// Package cache implements the content-addressed, TTL-aware local cache
// for upstream extraction responses, backed by a pure-Go sqlite database
// (§4.D).
package cache

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"shadowatlas/internal/boundary"
)

func init() {
	gob.Register(orb.Polygon{})
	gob.Register(orb.MultiPolygon{})
}

// Key identifies a cache entry: (provider_id, scope_fingerprint, vintage)
// (§4.D).
type Key struct {
	ProviderID      string
	ScopeFingerprint string
	Vintage         string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProviderID, k.ScopeFingerprint, k.Vintage)
}

// Entry is what the cache stores per key: the normalized collection plus
// upstream validators and freshness metadata.
type Entry struct {
	Collection  boundary.FeatureCollection
	ETag        string
	LastModified string
	TotalCount  int
	FetchedAt   time.Time
	SizeBytes   int64
}

// Cache is the sqlite-backed content-addressed store.
type Cache struct {
	db            *sql.DB
	gracePeriod   time.Duration
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string, gracePeriod time.Duration) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("cache: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		return nil, fmt.Errorf("cache: set synchronous mode: %w", err)
	}

	c := &Cache{db: db, gracePeriod: gracePeriod}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS cache_entries (
		provider_id TEXT NOT NULL,
		scope_fingerprint TEXT NOT NULL,
		vintage TEXT NOT NULL,
		etag TEXT,
		last_modified TEXT,
		total_count INTEGER,
		fetched_at DATETIME NOT NULL,
		size_bytes INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (provider_id, scope_fingerprint, vintage)
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the entry for key, and whether one exists.
func (c *Cache) Get(key Key) (Entry, bool, error) {
	row := c.db.QueryRow(
		`SELECT etag, last_modified, total_count, fetched_at, size_bytes, payload
		 FROM cache_entries WHERE provider_id = ? AND scope_fingerprint = ? AND vintage = ?`,
		key.ProviderID, key.ScopeFingerprint, key.Vintage,
	)

	var (
		etag, lastModified string
		totalCount         int
		fetchedAt           time.Time
		sizeBytes           int64
		payload             []byte
	)
	if err := row.Scan(&etag, &lastModified, &totalCount, &fetchedAt, &sizeBytes, &payload); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	var fc boundary.FeatureCollection
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&fc); err != nil {
		return Entry{}, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}

	return Entry{
		Collection:   fc,
		ETag:         etag,
		LastModified: lastModified,
		TotalCount:   totalCount,
		FetchedAt:    fetchedAt,
		SizeBytes:    sizeBytes,
	}, true, nil
}

// Put writes an entry, overwriting any prior entry for key, and performs an
// opportunistic, non-blocking eviction pass of expired entries for the same
// provider afterward (§4.D: "Eviction is opportunistic on put, never
// blocking").
func (c *Cache) Put(key Key, entry Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry.Collection); err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	_, err := c.db.Exec(
		`INSERT INTO cache_entries (provider_id, scope_fingerprint, vintage, etag, last_modified, total_count, fetched_at, size_bytes, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider_id, scope_fingerprint, vintage) DO UPDATE SET
		   etag = excluded.etag, last_modified = excluded.last_modified,
		   total_count = excluded.total_count, fetched_at = excluded.fetched_at,
		   size_bytes = excluded.size_bytes, payload = excluded.payload`,
		key.ProviderID, key.ScopeFingerprint, key.Vintage,
		entry.ETag, entry.LastModified, entry.TotalCount, entry.FetchedAt, entry.SizeBytes, buf.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}

	go c.evictExpired(key.ProviderID)
	return nil
}

// evictExpired removes entries for providerID whose fetched_at predates the
// cache's grace period. Run as a best-effort background pass; errors are
// swallowed since eviction failure must never block a Put.
func (c *Cache) evictExpired(providerID string) {
	cutoff := time.Now().Add(-c.gracePeriod)
	c.db.Exec(`DELETE FROM cache_entries WHERE provider_id = ? AND fetched_at < ?`, providerID, cutoff)
}

// IsStale reports whether entry is stale relative to releaseDate plus the
// cache's grace period. Missing entries are handled by the caller (Get
// returning ok=false); a present entry with a zero fetched_at is never
// considered stale by this function (§4.D: "Missing files are not
// considered stale").
func (c *Cache) IsStale(entry Entry, releaseDate time.Time) bool {
	if entry.FetchedAt.IsZero() {
		return false
	}
	pastGracePeriod := time.Now().After(releaseDate.Add(c.gracePeriod))
	fetchedBeforeRelease := entry.FetchedAt.Before(releaseDate)
	return pastGracePeriod && fetchedBeforeRelease
}
