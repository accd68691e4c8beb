// Package store provides the SQLite-backed persistence layer: the license
// validator's last-known state survives a restart through this package,
// and a map_state table holds per-map bookkeeping (server_map_id,
// last_api_refresh_at) for callers that save it.
package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/logger"
)

const (
	// SQLiteJournalMode enables concurrent reads during writes.
	SQLiteJournalMode = "WAL"

	// SQLiteBusyTimeoutMS bounds how long a write waits on a lock before SQLITE_BUSY.
	SQLiteBusyTimeoutMS = 5000
)

// Open opens a SQLite database at path with WAL mode, foreign keys, and a
// busy timeout, creating the parent directory if needed. log may be nil.
func Open(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	if log != nil {
		log.With(logger.FieldSymbol, logger.SymbolDB).Debugw("opening database", "path", path)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory: %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}

	if _, err := db.Exec("PRAGMA journal_mode = " + SQLiteJournalMode); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to enable %s journal mode for %s", SQLiteJournalMode, path)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to enable foreign keys for %s", path)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to set busy timeout to %dms for %s", SQLiteBusyTimeoutMS, path)
	}

	if log != nil {
		log.With(logger.FieldSymbol, logger.SymbolDB).Infow("database opened", "path", path, "wal_mode", true, "foreign_keys", true)
	}

	return db, nil
}

// OpenWithMigrations opens path and runs every pending migration.
func OpenWithMigrations(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(path, log)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, log); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to run migrations for %s", path)
	}

	return db, nil
}
