package store

import (
	"strings"

	"github.com/wanderer-industries/topologyd/errors"
)

// ErrClosed is returned when operations are attempted on a closed database,
// which happens during shutdown races between callers and Close.
var ErrClosed = errors.New("database is closed")

// IsClosed reports whether err indicates the database connection is closed,
// either wrapped ErrClosed or a raw driver error carrying the same message.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "sql: database is closed")
}
