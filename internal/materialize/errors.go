package materialize

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/store"
)

// FailureKind classifies a materialization failure.
type FailureKind string

const (
	// Rejected: the record itself is invalid (bad template, store
	// constraint). Retrying the same run cannot succeed.
	Rejected FailureKind = "REJECTED"

	// Unavailable: the record store could not be reached or did not answer.
	// A later run (or replay) may succeed.
	Unavailable FailureKind = "UNAVAILABLE"
)

// MaterializationError is returned when a node's record cannot be created
// or updated. The engine turns it into a Failed outcome for that node.
type MaterializationError struct {
	Kind       FailureKind
	NodeID     string
	EntityKind ir.EntityKind
	Reason     string
	Err        error
}

func (e *MaterializationError) Error() string {
	msg := fmt.Sprintf("materialize %s for node %q: %s", e.EntityKind, e.NodeID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}

// IsRejected checks if err is a Rejected MaterializationError.
func IsRejected(err error) bool {
	var me *MaterializationError
	return errors.As(err, &me) && me.Kind == Rejected
}

// IsUnavailable checks if err is an Unavailable MaterializationError.
func IsUnavailable(err error) bool {
	var me *MaterializationError
	return errors.As(err, &me) && me.Kind == Unavailable
}

// rejection is returned by builders for invalid input.
type rejection struct {
	reason string
}

func (r *rejection) Error() string { return r.reason }

func reject(format string, args ...any) error {
	return &rejection{reason: fmt.Sprintf(format, args...)}
}

// storeFailure classifies a record store error: constraint violations are
// Rejected, everything else (busy, closed, cancelled) is Unavailable.
func storeFailure(node ir.ProcessNode, op string, err error) *MaterializationError {
	kind := Unavailable
	if store.IsConstraint(err) {
		kind = Rejected
	}
	reason := op + " failed"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = op + " interrupted"
	}
	return &MaterializationError{
		Kind:       kind,
		NodeID:     node.ID,
		EntityKind: node.ProducedKind,
		Reason:     reason,
		Err:        err,
	}
}
