package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderer-industries/topologyd/model"
)

// These exercise error paths that are impractical to trigger against a
// real SQLite file (a mid-transaction driver failure), so they mock the
// driver instead of the filesystem.

func TestStore_SaveLicenseState_DriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO license_state").WillReturnError(assert.AnError)

	s := New(db)
	err = s.SaveLicenseState(model.LicenseState{Valid: true})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadLicenseState_DriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT valid, bot_assigned").WillReturnError(assert.AnError)

	s := New(db)
	_, _, err = s.LoadLicenseState()
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
