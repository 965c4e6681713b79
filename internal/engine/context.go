package engine

import "github.com/roach88/procflow/internal/ir"

// ExecutionContext is the state of one run: the root it serves and, per
// processed node, the id of the record it materialized.
//
// The processed set guarantees at most one materialization per node per
// run, whatever shape the graph has.
type ExecutionContext struct {
	RunID string
	Root  ir.EntitySnapshot

	processed map[string]string // node id -> record id ("" when skipped or failed)
}

// NewExecutionContext creates the context of a run.
func NewExecutionContext(runID string, root ir.EntitySnapshot) *ExecutionContext {
	return &ExecutionContext{
		RunID:     runID,
		Root:      root,
		processed: make(map[string]string),
	}
}

// Seen reports whether nodeID was already processed in this run.
func (c *ExecutionContext) Seen(nodeID string) bool {
	_, ok := c.processed[nodeID]
	return ok
}

// Record marks nodeID as processed. recordID is empty when the node did not
// materialize anything.
func (c *ExecutionContext) Record(nodeID, recordID string) {
	c.processed[nodeID] = recordID
}

// RecordID returns the record nodeID materialized in this run.
func (c *ExecutionContext) RecordID(nodeID string) (string, bool) {
	id := c.processed[nodeID]
	return id, id != ""
}

// Processed returns how many nodes the run processed.
func (c *ExecutionContext) Processed() int {
	return len(c.processed)
}
