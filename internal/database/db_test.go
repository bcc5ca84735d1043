package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "nested", name+".db"), Name: name})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	std := buildConnectionString("/tmp/a.db")
	assert.Contains(t, std, "/tmp/a.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, std, "synchronous(NORMAL)")
	assert.Contains(t, std, "auto_vacuum(INCREMENTAL)")
	assert.Contains(t, std, "foreign_keys(1)")

	mem := buildConnectionString("file:mem?mode=memory")
	assert.Contains(t, mem, "file:mem?mode=memory&_pragma=journal_mode(WAL)")
}

func TestNew_CreatesDirectoryAndMigrates(t *testing.T) {
	db := newTestDB(t, "history")
	assert.Equal(t, ProfileStandard, db.profile)
	assert.True(t, filepath.IsAbs(db.Path()))

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate(), "migration is idempotent")

	var count int
	err := db.Conn().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, db.QuickCheck(context.Background()))
	require.NoError(t, db.WALCheckpoint(""))
	require.NoError(t, db.IncrementalVacuum())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Positive(t, stats.PageSize)
}

func TestMigrate_UnknownSchema(t *testing.T) {
	db := newTestDB(t, "nope")
	assert.Error(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "history")
	require.NoError(t, db.Migrate())

	insert := func(tx *sql.Tx, id string) error {
		_, err := tx.Exec(`INSERT INTO runs (id, started_at, config_path, input_hash, status) VALUES (?, 0, 'c', 'h', 'success')`, id)
		return err
	}

	require.NoError(t, WithTransaction(db.Conn(), func(tx *sql.Tx) error { return insert(tx, "a") }))

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx, "b"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx, "c"))
		panic("oops")
	})
	assert.ErrorContains(t, err, "panic in transaction: oops")

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count))
	assert.Equal(t, 1, count, "failed transactions are rolled back")

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}
