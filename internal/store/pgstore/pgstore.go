// Package pgstore implements the diagram store on PostgreSQL via pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/store"
)

var migrations = []string{
	createDiagramsTable,
	createConfigTable,
	createUpdatedIndex,
}

const createDiagramsTable = `
CREATE TABLE IF NOT EXISTS diagrams (
  id            TEXT PRIMARY KEY,
  name          TEXT NOT NULL,
  database_type TEXT NOT NULL,
  table_count   INTEGER NOT NULL DEFAULT 0,
  payload       JSONB NOT NULL,
  checksum      TEXT NOT NULL,
  created_at    TIMESTAMP WITH TIME ZONE NOT NULL,
  updated_at    TIMESTAMP WITH TIME ZONE NOT NULL
);
`

const createConfigTable = `
CREATE TABLE IF NOT EXISTS config (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

const createUpdatedIndex = `
CREATE INDEX IF NOT EXISTS idx_diagrams_updated_at ON diagrams(updated_at DESC);
`

// Store is a store.DiagramStore backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.DiagramStore = (*Store)(nil)

// Open connects to dsn, pings, and runs migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = 8
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for i, m := range migrations {
		slog.Debug("running migration", "step", i+1, "total", len(migrations))
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// GetDiagram implements store.DiagramStore.
func (s *Store) GetDiagram(ctx context.Context, id string) (diagram.Diagram, error) {
	var (
		payload          []byte
		created, updated time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT payload, created_at, updated_at FROM diagrams WHERE id = $1
	`, id).Scan(&payload, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return diagram.Diagram{}, fmt.Errorf("get diagram %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return diagram.Diagram{}, fmt.Errorf("get diagram %s: %w", id, err)
	}
	return store.Decode(string(payload), created, updated)
}

// ListDiagrams implements store.DiagramStore.
func (s *Store) ListDiagrams(ctx context.Context) ([]store.Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, database_type, table_count, checksum, created_at, updated_at
		FROM diagrams
		ORDER BY updated_at DESC, id COLLATE "C"
	`)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	var out []store.Summary
	for rows.Next() {
		var sum store.Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.DatabaseType, &sum.Tables, &sum.Checksum, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list diagrams: %w", err)
		}
		sum.CreatedAt = sum.CreatedAt.UTC()
		sum.UpdatedAt = sum.UpdatedAt.UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	return out, nil
}

// SaveDiagram implements store.DiagramStore.
func (s *Store) SaveDiagram(ctx context.Context, d diagram.Diagram) error {
	sum, payload, err := store.Encode(d, s.now())
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO diagrams
		(id, name, database_type, table_count, payload, checksum, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			database_type = EXCLUDED.database_type,
			table_count = EXCLUDED.table_count,
			payload = EXCLUDED.payload,
			checksum = EXCLUDED.checksum,
			updated_at = EXCLUDED.updated_at
	`, sum.ID, sum.Name, sum.DatabaseType, sum.Tables, payload, sum.Checksum, sum.CreatedAt, sum.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save diagram %s: %w", d.ID, err)
	}
	return nil
}

// DeleteDiagram implements store.DiagramStore.
func (s *Store) DeleteDiagram(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM diagrams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete diagram %s: %w", id, store.ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM config WHERE key = $1 AND value = $2
	`, store.ConfigKeyDefaultDiagram, id); err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	return nil
}

// GetConfig implements store.DiagramStore.
func (s *Store) GetConfig(ctx context.Context) (store.Config, error) {
	var cfg store.Config
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM config WHERE key = $1
	`, store.ConfigKeyDefaultDiagram).Scan(&cfg.DefaultDiagramID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return store.Config{}, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

// UpdateConfig implements store.DiagramStore.
func (s *Store) UpdateConfig(ctx context.Context, cfg store.Config) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, store.ConfigKeyDefaultDiagram, cfg.DefaultDiagramID)
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	return nil
}

// Pool returns the underlying pool for direct queries.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
