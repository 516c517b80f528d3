package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/erdsync/internal/diagram"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on diagrams.updated_at for listing
const currentSchemaVersion = 1

// timeLayout is fixed-width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore stores diagrams in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ DiagramStore = (*SQLiteStore)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return newSQLiteStore(db), nil
}

func newSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using SQLiteStore methods when available.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_diagrams_updated_at
			ON diagrams(updated_at)
		`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// GetDiagram loads a diagram by id.
func (s *SQLiteStore) GetDiagram(ctx context.Context, id string) (diagram.Diagram, error) {
	var payload, created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, created_at, updated_at
		FROM diagrams
		WHERE id = ?
	`, id).Scan(&payload, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return diagram.Diagram{}, fmt.Errorf("get diagram %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return diagram.Diagram{}, fmt.Errorf("get diagram %s: %w", id, err)
	}

	c, err := parseTime(created)
	if err != nil {
		return diagram.Diagram{}, fmt.Errorf("get diagram %s: %w", id, err)
	}
	u, err := parseTime(updated)
	if err != nil {
		return diagram.Diagram{}, fmt.Errorf("get diagram %s: %w", id, err)
	}
	return Decode(payload, c, u)
}

// ListDiagrams returns summaries, most recently updated first.
func (s *SQLiteStore) ListDiagrams(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, database_type, table_count, checksum, created_at, updated_at
		FROM diagrams
		ORDER BY updated_at DESC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum              Summary
			created, updated string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.DatabaseType, &sum.Tables, &sum.Checksum, &created, &updated); err != nil {
			return nil, fmt.Errorf("list diagrams: %w", err)
		}
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("list diagrams: %w", err)
		}
		if sum.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("list diagrams: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	return out, nil
}

// SaveDiagram inserts or replaces a diagram. The original created_at is
// kept on replace.
func (s *SQLiteStore) SaveDiagram(ctx context.Context, d diagram.Diagram) error {
	rec, err := encode(d, s.now())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagrams
		(id, name, database_type, table_count, payload, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			database_type = excluded.database_type,
			table_count = excluded.table_count,
			payload = excluded.payload,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at
	`,
		rec.summary.ID,
		rec.summary.Name,
		rec.summary.DatabaseType,
		rec.summary.Tables,
		rec.payload,
		rec.summary.Checksum,
		rec.summary.CreatedAt.Format(timeLayout),
		rec.summary.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save diagram %s: %w", d.ID, err)
	}
	return nil
}

// DeleteDiagram removes a diagram. Deleting the default diagram also
// clears the default.
func (s *SQLiteStore) DeleteDiagram(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM diagrams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete diagram %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM config WHERE key = ? AND value = ?
	`, ConfigKeyDefaultDiagram, id); err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete diagram %s: %w", id, err)
	}
	return nil
}

// GetConfig returns the global config. Missing rows yield zero values.
func (s *SQLiteStore) GetConfig(ctx context.Context) (Config, error) {
	var cfg Config
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM config WHERE key = ?
	`, ConfigKeyDefaultDiagram).Scan(&cfg.DefaultDiagramID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Config{}, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

// UpdateConfig replaces the global config.
func (s *SQLiteStore) UpdateConfig(ctx context.Context, cfg Config) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, ConfigKeyDefaultDiagram, cfg.DefaultDiagramID)
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
