// Package localcache is the on-device durable mirror of the shared aggregate.
// It is best-effort only: the coordinator swallows its failures, since
// remote-first operation can still succeed without a local copy.
package localcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"campushub/statesync/internal/state"
)

// documentKey is the single fixed key identifying the aggregate document.
const documentKey = "appstate"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	key        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

type Cache struct {
	db *sql.DB
}

// Open creates or opens the SQLite cache at the given path. SQLite only
// supports one writer at a time, so the pool is capped at a single
// connection.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached aggregate, or (nil, nil) when no copy has been
// persisted yet. A stored payload that no longer decodes is reported as an
// error so the caller falls through to the built-in default.
func (c *Cache) Get(ctx context.Context) (*state.AppState, error) {
	var body []byte
	row := c.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE key = ?", documentKey)
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	st, err := state.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return st, nil
}

// Put replaces the cached aggregate.
func (c *Cache) Put(ctx context.Context, st *state.AppState) error {
	body, err := st.Encode()
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO documents (key, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		documentKey, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}
