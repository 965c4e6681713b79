package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/procflow/internal/compiler"
	"github.com/roach88/procflow/internal/ir"
)

// ErrUnresolvedRoot is returned when a changed entity cannot be tied to a
// process graph: unknown or non-root kind, missing project type, or no
// graph stored for it.
var ErrUnresolvedRoot = errors.New("cannot resolve process graph")

// LimitKind names the bound a run exceeded.
type LimitKind string

const (
	LimitNodes LimitKind = "nodes"
	LimitDepth LimitKind = "depth"
)

// GraphTooLargeError is returned when a graph, or a run over it, exceeds
// the configured Limits. It aborts the run with GRAPH_TOO_LARGE.
type GraphTooLargeError struct {
	Limit  LimitKind
	Value  int    // Observed node count or depth
	Max    int    // Configured bound
	NodeID string // Node being processed, empty for the upfront size check
}

// Error implements the error interface.
func (e *GraphTooLargeError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("graph too large: %s %d exceeds limit %d (node %q)", e.Limit, e.Value, e.Max, e.NodeID)
	}
	return fmt.Sprintf("graph too large: %s %d exceeds limit %d", e.Limit, e.Value, e.Max)
}

// Details returns key=value pairs for the report.
func (e *GraphTooLargeError) Details() []string {
	details := []string{
		fmt.Sprintf("limit=%s", e.Limit),
		fmt.Sprintf("value=%d", e.Value),
		fmt.Sprintf("max=%d", e.Max),
	}
	if e.NodeID != "" {
		details = append(details, fmt.Sprintf("node=%s", e.NodeID))
	}
	return details
}

// IsGraphTooLarge returns true if the error is a GraphTooLargeError.
// Uses errors.As to handle wrapped errors.
func IsGraphTooLarge(err error) bool {
	var ge *GraphTooLargeError
	return errors.As(err, &ge)
}

// IsConfigurationError returns true if the error aborts a run with
// CONFIGURATION_INVALID: an invalid graph or an unresolvable root.
func IsConfigurationError(err error) bool {
	return compiler.IsConfigurationError(err) || errors.Is(err, ErrUnresolvedRoot)
}

// abortFor converts a run-stopping error into the report's abort entry.
func abortFor(err error) *ir.RunAbort {
	var ge *GraphTooLargeError
	if errors.As(err, &ge) {
		return &ir.RunAbort{Code: ir.AbortGraphTooLarge, Message: ge.Error(), Details: ge.Details()}
	}
	var ce *compiler.ConfigurationError
	if errors.As(err, &ce) {
		return &ir.RunAbort{Code: ir.AbortConfigurationInvalid, Message: ce.Error(), Details: ce.Details()}
	}
	return &ir.RunAbort{Code: ir.AbortConfigurationInvalid, Message: err.Error()}
}
