package harness

import "github.com/roach88/procflow/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Reports holds one execution report per scenario step, in step order.
	Reports []*ir.ExecutionReport `json:"reports"`

	// Records is the final content of the record store, per root in the
	// order roots first appear in the steps, each in creation order.
	Records []ir.GeneratedRecord `json:"records"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Reports: []*ir.ExecutionReport{},
		Records: []ir.GeneratedRecord{},
		Errors:  []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// RecordFor returns the record generated by nodeID for rootID.
func (r *Result) RecordFor(nodeID, rootID string) (ir.GeneratedRecord, bool) {
	for _, rec := range r.Records {
		if rec.OriginNodeID == nodeID && rec.RootEntityID == rootID {
			return rec, true
		}
	}
	return ir.GeneratedRecord{}, false
}
