package engine

import "github.com/roach88/procflow/internal/ir"

// Default run bounds.
const (
	DefaultMaxNodes = 500
	DefaultMaxDepth = 20
)

// Limits bounds the work of a single run.
type Limits struct {
	MaxNodes int // Nodes in the graph, and nodes processed per run
	MaxDepth int // Levels below the root entity; root nodes are depth 1
}

// DefaultLimits returns MaxNodes 500, MaxDepth 20.
func DefaultLimits() Limits {
	return Limits{MaxNodes: DefaultMaxNodes, MaxDepth: DefaultMaxDepth}
}

// withDefaults replaces non-positive bounds by the defaults.
func (l Limits) withDefaults() Limits {
	if l.MaxNodes <= 0 {
		l.MaxNodes = DefaultMaxNodes
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	return l
}

// QuotaEnforcer counts the nodes a run processes and enforces Limits.
//
// Each run has its own QuotaEnforcer. Validation already rejects cycles,
// so on a valid graph the node count is bounded by the graph size; the
// enforcer is what keeps that true for any graph the engine is handed.
type QuotaEnforcer struct {
	limits  Limits
	current int // Nodes processed so far
}

// NewQuotaEnforcer creates an enforcer for one run.
func NewQuotaEnforcer(limits Limits) *QuotaEnforcer {
	return &QuotaEnforcer{limits: limits.withDefaults()}
}

// CheckGraph rejects a graph with more nodes than a run may process.
func (q *QuotaEnforcer) CheckGraph(g *ir.ProcessGraph) error {
	if n := len(g.Nodes); n > q.limits.MaxNodes {
		return &GraphTooLargeError{Limit: LimitNodes, Value: n, Max: q.limits.MaxNodes}
	}
	return nil
}

// Check counts one processed node at the given depth.
//
// Returns GraphTooLargeError if the depth or the node count is past its
// bound. Call it for every node popped from the queue, before processing.
func (q *QuotaEnforcer) Check(nodeID string, depth int) error {
	if depth > q.limits.MaxDepth {
		return &GraphTooLargeError{Limit: LimitDepth, Value: depth, Max: q.limits.MaxDepth, NodeID: nodeID}
	}
	q.current++
	if q.current > q.limits.MaxNodes {
		return &GraphTooLargeError{Limit: LimitNodes, Value: q.current, Max: q.limits.MaxNodes, NodeID: nodeID}
	}
	return nil
}

// Current returns the number of nodes counted so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// Limits returns the enforced bounds.
func (q *QuotaEnforcer) Limits() Limits {
	return q.limits
}
