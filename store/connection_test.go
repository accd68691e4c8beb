package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wanderer-industries/topologyd/errors"
)

func TestOpen(t *testing.T) {
	t.Run("opens database successfully", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		var journalMode string
		require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", journalMode)

		var foreignKeys int
		require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
		assert.Equal(t, 1, foreignKeys)

		var busyTimeout int
		require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
	})

	t.Run("returns error for invalid path", func(t *testing.T) {
		db, err := Open("/invalid/nonexistent/path/db.sqlite", nil)
		assert.Error(t, err)
		assert.Nil(t, db)
		assert.NotNil(t, errors.GetStack(err))
	})

	t.Run("creates database file if it doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "new.db")

		_, err := os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
	})

	t.Run("errors include stack traces from errors package", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		firstDB, err := Open(dbPath, nil)
		require.NoError(t, err)
		firstDB.Close()

		require.NoError(t, os.Chmod(tmpDir, 0555))
		defer os.Chmod(tmpDir, 0755)

		db, err := Open(dbPath, nil)
		require.Error(t, err)
		require.Nil(t, db)

		detailed := fmt.Sprintf("%+v", err)
		assert.Contains(t, detailed, "connection.go")
		assert.Contains(t, detailed, "failed to enable WAL journal mode")
	})
}

func TestOpen_WithLogger(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	log := zaptest.NewLogger(t).Sugar()
	db, err := Open(dbPath, log)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()
}
