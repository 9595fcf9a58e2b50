package database

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// For messages this means the external message was already seen — callers
// treat it as "already processed", not as a failure.
var ErrDuplicate = errors.New("duplicate")

// isConstraintErr detects SQLite uniqueness violations from the driver
func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
