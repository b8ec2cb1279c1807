package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RemoteStore syncs the save to a shared document collection keyed by
// player id, so a player can pick the game up on another machine.
type RemoteStore struct {
	pool     *pgxpool.Pool
	playerID string
}

func NewRemote(pool *pgxpool.Pool, playerID string) (*RemoteStore, error) {
	if pool == nil {
		return nil, errors.New("remote store needs a pool")
	}
	if strings.TrimSpace(playerID) == "" {
		return nil, errors.New("player id is required")
	}
	return &RemoteStore{pool: pool, playerID: playerID}, nil
}

// EnsureSchema creates the players collection if it is missing.
func (r *RemoteStore) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure players table: %w", err)
	}
	return nil
}

func (r *RemoteStore) Persist(ctx context.Context, snapshot []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO players (id, doc, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, r.playerID, string(snapshot))
	if err != nil {
		return fmt.Errorf("sync save: %w", err)
	}
	return nil
}

func (r *RemoteStore) Retrieve(ctx context.Context) ([]byte, bool, error) {
	var doc string
	err := r.pool.QueryRow(ctx, `SELECT doc::text FROM players WHERE id = $1`, r.playerID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch save: %w", err)
	}
	return []byte(doc), true, nil
}
