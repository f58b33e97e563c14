package store

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors returned by the repositories.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("already exists")
	// ErrStale is returned when a write is based on a snapshot another
	// writer has since replaced.
	ErrStale = errors.New("row changed since read")
)

// pq error code for unique_violation.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
