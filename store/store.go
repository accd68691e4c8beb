package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/model"
)

// Store is the SQLite-backed implementation of license.Store plus per-map
// bookkeeping. The zero value is not usable; construct with New.
type Store struct {
	db *sql.DB
}

// New wraps an already-open, already-migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveLicenseState upserts the single license_state row. It implements
// license.Store.
func (s *Store) SaveLicenseState(state model.LicenseState) error {
	details, err := json.Marshal(state.Details)
	if err != nil {
		return errors.Wrap(err, "marshal license details")
	}
	counts, err := json.Marshal(state.NotificationCounts)
	if err != nil {
		return errors.Wrap(err, "marshal notification counts")
	}

	_, err = s.db.Exec(`
		INSERT INTO license_state (id, valid, bot_assigned, details, error, error_message, last_validated, notification_counts, backoff_multiplier, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			valid = excluded.valid,
			bot_assigned = excluded.bot_assigned,
			details = excluded.details,
			error = excluded.error,
			error_message = excluded.error_message,
			last_validated = excluded.last_validated,
			notification_counts = excluded.notification_counts,
			backoff_multiplier = excluded.backoff_multiplier,
			updated_at = CURRENT_TIMESTAMP
	`, state.Valid, state.BotAssigned, string(details), state.Error, state.ErrorMessage,
		state.LastValidated, string(counts), state.BackoffMultiplier)
	if err != nil {
		return errors.Wrap(err, "save license state")
	}
	return nil
}

// LoadLicenseState reads the persisted license state. The bool is false if
// no state has ever been saved. It implements license.Store.
func (s *Store) LoadLicenseState() (model.LicenseState, bool, error) {
	var (
		state           model.LicenseState
		details, counts sql.NullString
		lastValidated   sql.NullTime
	)

	row := s.db.QueryRow(`
		SELECT valid, bot_assigned, details, error, error_message, last_validated, notification_counts, backoff_multiplier
		FROM license_state WHERE id = 1
	`)
	err := row.Scan(&state.Valid, &state.BotAssigned, &details, &state.Error, &state.ErrorMessage,
		&lastValidated, &counts, &state.BackoffMultiplier)
	if err == sql.ErrNoRows {
		return model.LicenseState{}, false, nil
	}
	if err != nil {
		return model.LicenseState{}, false, errors.Wrap(err, "load license state")
	}

	if lastValidated.Valid {
		state.LastValidated = lastValidated.Time
	}
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &state.Details); err != nil {
			return model.LicenseState{}, false, errors.Wrap(err, "unmarshal license details")
		}
	}
	if counts.Valid && counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &state.NotificationCounts); err != nil {
			return model.LicenseState{}, false, errors.Wrap(err, "unmarshal notification counts")
		}
	}

	return state, true, nil
}

// MapBookkeeping is the per-map state held in the map_state table. No
// component of the service saves or loads it; map actors resolve their
// identity through the remote API on every boot.
type MapBookkeeping struct {
	ServerMapID      string
	LastAPIRefreshAt time.Time
}

// SaveMapState upserts a map's bookkeeping row.
func (s *Store) SaveMapState(mapID string, bk MapBookkeeping) error {
	_, err := s.db.Exec(`
		INSERT INTO map_state (map_id, server_map_id, last_api_refresh_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(map_id) DO UPDATE SET
			server_map_id = excluded.server_map_id,
			last_api_refresh_at = excluded.last_api_refresh_at,
			updated_at = CURRENT_TIMESTAMP
	`, mapID, bk.ServerMapID, bk.LastAPIRefreshAt)
	if err != nil {
		return errors.Wrapf(err, "save map state for %s", mapID)
	}
	return nil
}

// LoadMapState reads a map's bookkeeping row. The bool is false if the map
// has never been persisted.
func (s *Store) LoadMapState(mapID string) (MapBookkeeping, bool, error) {
	var (
		bk            MapBookkeeping
		serverMapID   sql.NullString
		lastRefreshAt sql.NullTime
	)
	row := s.db.QueryRow(`SELECT server_map_id, last_api_refresh_at FROM map_state WHERE map_id = ?`, mapID)
	err := row.Scan(&serverMapID, &lastRefreshAt)
	if err == sql.ErrNoRows {
		return MapBookkeeping{}, false, nil
	}
	if err != nil {
		return MapBookkeeping{}, false, errors.Wrapf(err, "load map state for %s", mapID)
	}
	bk.ServerMapID = serverMapID.String
	if lastRefreshAt.Valid {
		bk.LastAPIRefreshAt = lastRefreshAt.Time
	}
	return bk, true, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
