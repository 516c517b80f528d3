package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := newSQLiteStore(db)
	s.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		mock.ExpectClose()
		s.Close()
	})
	return s, mock
}

func TestSQLiteStore_SaveError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO diagrams").
		WithArgs("d1", "shop d1", "postgresql", 2, sqlmock.AnyArg(), sqlmock.AnyArg(),
			"2026-04-01T00:00:00.000000000Z", "2026-04-01T00:00:00.000000000Z").
		WillReturnError(errors.New("disk I/O error"))

	err := s.SaveDiagram(context.Background(), sampleDiagram("d1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save diagram d1")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_GetQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT payload, created_at, updated_at").
		WithArgs("d1").
		WillReturnError(sql.ErrConnDone)

	_, err := s.GetDiagram(context.Background(), "d1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_GetCorruptTimestamp(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"payload", "created_at", "updated_at"}).
		AddRow(`{"id":"d1"}`, "yesterday", "2026-04-01T00:00:00.000000000Z")
	mock.ExpectQuery("SELECT payload").WithArgs("d1").WillReturnRows(rows)

	_, err := s.GetDiagram(context.Background(), "d1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse time")
}

func TestSQLiteStore_GetCorruptPayload(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"payload", "created_at", "updated_at"}).
		AddRow(`{not json`, "2026-04-01T00:00:00.000000000Z", "2026-04-01T00:00:00.000000000Z")
	mock.ExpectQuery("SELECT payload").WithArgs("d1").WillReturnRows(rows)

	_, err := s.GetDiagram(context.Background(), "d1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode diagram")
}

func TestSQLiteStore_ListRowError(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "name", "database_type", "table_count", "checksum", "created_at", "updated_at"}).
		AddRow("d1", "one", "sqlite", 1, "abc", "2026-04-01T00:00:00.000000000Z", "2026-04-01T00:00:00.000000000Z").
		RowError(0, errors.New("row broke"))
	mock.ExpectQuery("SELECT id, name").WillReturnRows(rows)

	_, err := s.ListDiagrams(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row broke")
}

func TestSQLiteStore_DeleteRollsBackOnConfigError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM diagrams").WithArgs("d1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM config").
		WithArgs(ConfigKeyDefaultDiagram, "d1").
		WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := s.DeleteDiagram(context.Background(), "d1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_DeleteMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM diagrams").WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.DeleteDiagram(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ConfigError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT value FROM config").
		WithArgs(ConfigKeyDefaultDiagram).
		WillReturnError(errors.New("no such table: config"))

	_, err := s.GetConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get config")
}
