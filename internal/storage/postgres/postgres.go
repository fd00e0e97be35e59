// Package postgres implements storage.Adapter on top of Postgres via
// pgx. Grounded on the teacher's test-workspace/main.go pgxpool tuning
// (MaxConns/MinConns/MaxConnLifetime/MaxConnIdleTime/HealthCheckPeriod),
// demonstrating that the persistence contract (§6) is adapter-pluggable.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"synckit/internal/crdt"
)

// Store is a storage.Adapter backed by a Postgres connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn with the teacher's pool tuning and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse dsn: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open pool: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS synckit_deltas (
			doc_id TEXT NOT NULL,
			delta_id TEXT NOT NULL,
			wall_ts BIGINT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (doc_id, delta_id)
		);
		CREATE INDEX IF NOT EXISTS synckit_deltas_doc_ts_idx ON synckit_deltas (doc_id, wall_ts);
		CREATE TABLE IF NOT EXISTS synckit_snapshots (
			doc_id TEXT PRIMARY KEY,
			payload BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("postgres: failed to run migrations: %w", err)
	}
	return nil
}

// SaveDelta persists d for docID, idempotent on (doc_id, delta_id).
func (s *Store) SaveDelta(docID string, d *crdt.Delta) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal delta: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO synckit_deltas (doc_id, delta_id, wall_ts, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doc_id, delta_id) DO NOTHING
	`, docID, d.ID, d.WallTS, payload)
	if err != nil {
		return fmt.Errorf("postgres: failed to save delta: %w", err)
	}
	return nil
}

// LoadDeltas returns every persisted delta for docID, ordered by
// wall_ts.
func (s *Store) LoadDeltas(docID string) ([]*crdt.Delta, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM synckit_deltas WHERE doc_id = $1 ORDER BY wall_ts ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load deltas for %s: %w", docID, err)
	}
	defer rows.Close()

	var out []*crdt.Delta
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan delta row: %w", err)
		}
		var d crdt.Delta
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("postgres: failed to unmarshal delta: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// SaveSnapshot upserts the latest snapshot for docID.
func (s *Store) SaveSnapshot(docID string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO synckit_snapshots (doc_id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (doc_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`, docID, payload)
	if err != nil {
		return fmt.Errorf("postgres: failed to save snapshot: %w", err)
	}
	return nil
}

// LoadLatestSnapshot returns the most recently saved snapshot for docID.
func (s *Store) LoadLatestSnapshot(docID string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM synckit_snapshots WHERE doc_id = $1`, docID).Scan(&payload)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("postgres: failed to load snapshot for %s: %w", docID, err)
	}
	return payload, true, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
