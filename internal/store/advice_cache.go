// Package store persists tutor advice keyed by game-state fingerprint.
// The cache is optional: nothing in the advisory flow requires it, and the
// CLI only opens it when asked to.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"multipoly/internal/logging"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const adviceSchema = `
CREATE TABLE IF NOT EXISTS advice (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	advice      TEXT NOT NULL,
	source      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	hits        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_advice_updated ON advice(updated_at);
`

// Advice is one cached answer.
type Advice struct {
	ID          string
	Fingerprint string
	Text        string
	Source      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Hits        int
}

// AdviceCache is a SQLite-backed advice cache. Entries older than the TTL
// are treated as missing; a zero TTL keeps entries forever.
type AdviceCache struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	ttl    time.Duration
	now    func() time.Time
}

// OpenAdviceCache opens (creating if needed) the cache database at path.
func OpenAdviceCache(path string, ttl time.Duration) (*AdviceCache, error) {
	timer := logging.StartTimer(logging.CategoryCache, "OpenAdviceCache")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.CacheDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.CacheDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	if _, err := db.Exec(adviceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create advice schema: %w", err)
	}

	logging.Cache("advice cache ready at %s (ttl=%v)", path, ttl)
	return &AdviceCache{db: db, dbPath: path, ttl: ttl, now: time.Now}, nil
}

// Upsert stores advice for fingerprint, replacing any previous entry. The
// entry keeps its ID and creation time across replacements.
func (c *AdviceCache) Upsert(ctx context.Context, fingerprint, advice, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UnixNano()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO advice (id, fingerprint, advice, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			advice = excluded.advice,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		uuid.NewString(), fingerprint, advice, source, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert advice: %w", err)
	}
	logging.CacheDebug("stored advice %s (source=%s)", shortFP(fingerprint), source)
	return nil
}

// Get returns the advice for fingerprint. ok is false when there is no entry
// or the entry has expired.
func (c *AdviceCache) Get(ctx context.Context, fingerprint string) (Advice, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		a                Advice
		created, updated int64
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, advice, source, created_at, updated_at, hits
		FROM advice WHERE fingerprint = ?`, fingerprint).
		Scan(&a.ID, &a.Fingerprint, &a.Text, &a.Source, &created, &updated, &a.Hits)
	if errors.Is(err, sql.ErrNoRows) {
		logging.CacheDebug("miss %s", shortFP(fingerprint))
		return Advice{}, false, nil
	}
	if err != nil {
		return Advice{}, false, fmt.Errorf("failed to read advice: %w", err)
	}
	a.CreatedAt = time.Unix(0, created)
	a.UpdatedAt = time.Unix(0, updated)

	if c.expired(a.UpdatedAt) {
		logging.CacheDebug("expired %s", shortFP(fingerprint))
		return Advice{}, false, nil
	}

	if _, err := c.db.ExecContext(ctx, `UPDATE advice SET hits = hits + 1 WHERE id = ?`, a.ID); err != nil {
		logging.Get(logging.CategoryCache).Warn("failed to count hit: %v", err)
	} else {
		a.Hits++
	}
	logging.CacheDebug("hit %s", shortFP(fingerprint))
	return a, true, nil
}

// Purge deletes expired entries and returns how many were removed.
func (c *AdviceCache) Purge(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl).UnixNano()
	res, err := c.db.ExecContext(ctx, `DELETE FROM advice WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge advice: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Cache("purged %d expired advice entries", n)
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *AdviceCache) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM advice`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count advice: %w", err)
	}
	return n, nil
}

// Path returns the database path.
func (c *AdviceCache) Path() string { return c.dbPath }

// Close closes the database.
func (c *AdviceCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

func (c *AdviceCache) expired(updated time.Time) bool {
	return c.ttl > 0 && c.now().Sub(updated) > c.ttl
}

func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
