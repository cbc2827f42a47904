package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campushub/statesync/internal/state"
)

// documentKey identifies the single shared row. The table holds one document
// per key; the campus aggregate always lives under "appstate".
const documentKey = "appstate"

const pgSchema = `
CREATE TABLE IF NOT EXISTS shared_documents (
	key        TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore keeps the shared document in a Postgres row for self-hosted
// deployments where no hosted bin service is wanted. Semantics match the
// hosted variant: read and whole-document replace only.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect remote store: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init remote store: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (p *PGStore) Close() {
	p.pool.Close()
}

func (p *PGStore) Fetch(ctx context.Context) (*state.AppState, error) {
	var body []byte
	err := p.pool.QueryRow(ctx,
		"SELECT body FROM shared_documents WHERE key = $1", documentKey).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document not found", ErrUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	st, err := state.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return st, nil
}

func (p *PGStore) Replace(ctx context.Context, st *state.AppState) error {
	body, err := st.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO shared_documents (key, body, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET body = excluded.body, updated_at = now()`,
		documentKey, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
