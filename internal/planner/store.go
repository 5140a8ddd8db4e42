package planner

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is SQLite-backed write-through persistence for the plan cache, so a
// restarted process keeps its warm plans. Entries are still subject to TTL
// and fingerprint checks when loaded back.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewStore opens (creating if needed) the plan store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: conn, dbPath: dbPath}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS plan_cache (
			cache_key   TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			plan        TEXT NOT NULL,
			confidence  REAL NOT NULL,
			reasoning   TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create plan_cache table: %w", err)
	}
	return nil
}

// Save upserts a cached plan.
func (s *Store) Save(key, fingerprint string, plan []string, confidence float64, reasoning string) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO plan_cache (cache_key, fingerprint, plan, confidence, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			plan        = excluded.plan,
			confidence  = excluded.confidence,
			reasoning   = excluded.reasoning,
			created_at  = excluded.created_at
	`, key, fingerprint, string(data), confidence, reasoning, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

// Warm loads persisted plans for the given registry fingerprint into the
// cache, skipping entries older than the cache TTL, and prunes everything
// that no longer matches. Returns the number of entries loaded.
func (s *Store) Warm(cache *Cache, fingerprint string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-cache.TTL())
	rows, err := s.db.Query(`
		SELECT cache_key, plan, confidence, reasoning
		FROM plan_cache
		WHERE fingerprint = ? AND created_at > ?
	`, fingerprint, cutoff)
	if err != nil {
		return 0, fmt.Errorf("load plans: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var key, planJSON, reasoning string
		var confidence float64
		if err := rows.Scan(&key, &planJSON, &confidence, &reasoning); err != nil {
			return loaded, fmt.Errorf("scan plan row: %w", err)
		}
		var plan []string
		if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
			continue // stale row with an unreadable plan, pruned below
		}
		cache.Put(key, plan, confidence, reasoning)
		loaded++
	}
	if err := rows.Err(); err != nil {
		return loaded, err
	}

	if _, err := s.db.Exec(`DELETE FROM plan_cache WHERE fingerprint != ? OR created_at <= ?`, fingerprint, cutoff); err != nil {
		return loaded, fmt.Errorf("prune plans: %w", err)
	}
	return loaded, nil
}
