package server

import "github.com/wanderer-industries/topologyd/errors"

// ErrNotFound is returned by handlers when a requested map id isn't
// registered.
var ErrNotFound = errors.New("not found")
