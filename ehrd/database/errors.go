package database

import (
	"database/sql"
	"errors"
)

// ErrNoRows is the canonical "not found" for every Store implementation,
// including the in-memory fake, so callers can test it without knowing the
// backing store.
var ErrNoRows = sql.ErrNoRows

// IsNotFound reports whether err is a "not found" lookup result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoRows)
}
