// Package cache implements the content-addressed analyzer-output cache:
// schema-on-open, a single workspace-local database file, writes upserted
// by content-addressed key. It uses modernc.org/sqlite (pure Go) so the core carries no cgo
// dependency.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/logging"
)

// Key identifies one cached analyzer output: (Snapshot identity, analyzer
// name, policy hash), plus the analyzer version tag every stored entry is
// validated against on read.
type Key struct {
	SnapshotID string
	Analyzer   string
	PolicyHash string
	Version    string
}

func (k Key) id() string {
	h := sha256.Sum256([]byte(k.SnapshotID + "|" + k.Analyzer + "|" + k.PolicyHash + "|" + k.Version))
	return hex.EncodeToString(h[:])
}

// Cache is the content-addressed analyzer-output store. The
// cache is optional throughout the pipeline: a nil *Cache (or one backed by a
// closed handle) simply means every lookup misses and every analyzer
// recomputes.
type Cache struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates or opens a SQLite-backed Cache rooted at dir (typically
// "<workspace>/.aperture/cache").
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}
	dbPath := filepath.Join(dir, "analysis_cache.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	c := &Cache{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return c, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		snapshot_id TEXT NOT NULL,
		analyzer TEXT NOT NULL,
		policy_hash TEXT NOT NULL,
		version TEXT NOT NULL,
		value BLOB NOT NULL,
		created_at_unix INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_snapshot ON entries(snapshot_id);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached value for key, or ok=false on a miss or a stale
// entry (one whose stored version no longer matches key.Version — treated as
// a miss rather than surfaced as data).
func (c *Cache) Get(key Key) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var value []byte
	var storedVersion string
	err := c.db.QueryRow(`SELECT value, version FROM entries WHERE id = ?`, key.id()).Scan(&value, &storedVersion)
	if err != nil {
		return nil, false
	}
	if storedVersion != key.Version {
		logging.Get(logging.CategoryCache).Debug("stale cache entry for %s/%s: version %q != %q", key.SnapshotID, key.Analyzer, storedVersion, key.Version)
		return nil, false
	}
	return value, true
}

// Put records value under key. Re-putting the same key overwrites the prior
// value (staleness is enforced on read via the version check in Get, not by
// refusing overwrites here).
func (c *Cache) Put(key Key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`
		INSERT INTO entries (id, snapshot_id, analyzer, policy_hash, version, value, created_at_unix)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, version = excluded.version
	`, key.id(), key.SnapshotID, key.Analyzer, key.PolicyHash, key.Version, value)
	return err
}

// InvalidateSnapshot drops every entry for a given snapshot identity: once a
// caller knows a snapshot's content no longer matches what produced these
// entries, it evicts them directly by identity rather than waiting for
// individual Get misses.
func (c *Cache) InvalidateSnapshot(snapshotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`DELETE FROM entries WHERE snapshot_id = ?`, snapshotID)
	return err
}

// HashPolicy computes the stable policy-hash component of a Key, so that
// changing any policy field invalidates every dependent cache entry.
func HashPolicy(p *config.Policy) string {
	data, err := json.Marshal(p)
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", *p))
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
