package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderer-industries/topologyd/errors"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("successfully opens database and runs migrations", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		var exists int
		err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='license_state'").Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "license_state table should exist after migrations")

		err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='map_state'").Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "map_state table should exist after migrations")
	})

	t.Run("migration errors include stack traces", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		firstDB, err := Open(dbPath, nil)
		require.NoError(t, err)
		firstDB.Close()

		require.NoError(t, os.Chmod(tmpDir, 0555))
		defer os.Chmod(tmpDir, 0755)

		db, err := OpenWithMigrations(dbPath, nil)
		require.Error(t, err)
		assert.Nil(t, db)

		stackTrace := errors.GetReportableStackTrace(err)
		assert.NotNil(t, stackTrace, "migration errors should have stack traces")

		detailed := fmt.Sprintf("%+v", err)
		assert.Contains(t, detailed, "connection.go")
	})
}

func TestMigrate(t *testing.T) {
	t.Run("creates schema_migrations table", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db, nil))

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 3, "three migrations should have been recorded")
	})

	t.Run("is idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db, nil))
		require.NoError(t, Migrate(db, nil), "running migrations multiple times should be safe")
	})

	t.Run("migration errors have context", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		db.Close()

		err = Migrate(db, nil)
		require.Error(t, err)
	})
}
