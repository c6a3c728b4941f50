// Package cache persists per-file analysis results in SQLite, keyed by
// analyzer, path and content hash, and invalidates them on file changes.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"pmat/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	analyzer TEXT NOT NULL,
	path TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (analyzer, path)
);
CREATE INDEX IF NOT EXISTS idx_cache_path ON analysis_cache(path);
CREATE INDEX IF NOT EXISTS idx_cache_created ON analysis_cache(created_at);
`

// Store is a SQLite-backed result cache. Entries older than the TTL are
// treated as misses and removed by Prune.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
	ttl  time.Duration
	now  func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// Open creates or opens the cache database at path.
func Open(path string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	logging.CacheDebug("opened cache %s (ttl %s)", path, ttl)
	return &Store{db: db, path: path, ttl: ttl, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

// ContentHash is the hex sha256 of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Get decodes the cached result for (analyzer, path) into out when the
// stored hash matches content and the entry has not expired.
func (s *Store) Get(ctx context.Context, analyzer, path string, content []byte, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hash, payload string
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash, payload, created_at FROM analysis_cache WHERE analyzer = ? AND path = ?`,
		analyzer, path).Scan(&hash, &payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query cache: %w", err)
	}
	if hash != ContentHash(content) || s.expired(created) {
		s.misses.Add(1)
		return false, nil
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("failed to decode cached %s result for %s: %w", analyzer, path, err)
	}
	s.hits.Add(1)
	return true, nil
}

// Put stores v for (analyzer, path), replacing any older entry.
func (s *Store) Put(ctx context.Context, analyzer, path string, content []byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s result: %w", analyzer, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (analyzer, path, content_hash, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(analyzer, path) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   payload = excluded.payload,
		   created_at = excluded.created_at`,
		analyzer, path, ContentHash(content), string(payload), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Invalidate drops every analyzer's entry for path.
func (s *Store) Invalidate(ctx context.Context, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE path = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.CacheDebug("invalidated %d entries for %s", n, path)
	}
	return n, nil
}

// Prune removes expired entries.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	n, _ := res.RowsAffected()
	logging.Cache("pruned %d expired entries", n)
	return n, nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func (s *Store) expired(created int64) bool {
	return s.ttl > 0 && s.now().Sub(time.Unix(0, created)) > s.ttl
}

// Stats describes cache contents and this process's hit rate.
type Stats struct {
	Entries    int            `json:"entries"`
	ByAnalyzer map[string]int `json:"by_analyzer"`
	Hits       int64          `json:"hits"`
	Misses     int64          `json:"misses"`
	SizeBytes  int64          `json:"size_bytes"`
}

// HitRate is hits over lookups, 0 when nothing was looked up.
func (st Stats) HitRate() float64 {
	total := st.Hits + st.Misses
	if total == 0 {
		return 0
	}
	return float64(st.Hits) / float64(total)
}

// Stats counts entries per analyzer.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{ByAnalyzer: map[string]int{}, Hits: s.hits.Load(), Misses: s.misses.Load()}
	rows, err := s.db.QueryContext(ctx, `SELECT analyzer, COUNT(*) FROM analysis_cache GROUP BY analyzer`)
	if err != nil {
		return st, fmt.Errorf("failed to read cache stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return st, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		st.ByAnalyzer[name] = n
		st.Entries += n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}
	if fi, err := os.Stat(s.path); err == nil {
		st.SizeBytes = fi.Size()
	}
	return st, nil
}

// Load implements complexity.Memo. Errors count as misses.
func (s *Store) Load(ctx context.Context, analyzer, path string, content []byte, out any) bool {
	ok, err := s.Get(ctx, analyzer, path, content, out)
	if err != nil {
		logging.Get(logging.CategoryCache).Warn("cache read failed for %s: %v", path, err)
		return false
	}
	return ok
}

// Save implements complexity.Memo. Errors are logged.
func (s *Store) Save(ctx context.Context, analyzer, path string, content []byte, v any) {
	if err := s.Put(ctx, analyzer, path, content, v); err != nil {
		logging.Get(logging.CategoryCache).Warn("cache write failed for %s: %v", path, err)
	}
}
