package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a graph, record or report does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConstraint is returned when a write violates a schema constraint.
	// Retrying the same write cannot succeed.
	ErrConstraint = errors.New("constraint violation")
)

// classify maps driver errors onto the store's sentinel errors. Errors that
// are not constraint violations (busy, closed, I/O) pass through wrapped
// only by the caller's context.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConstraint reports whether err is (or wraps) ErrConstraint.
func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraint)
}
