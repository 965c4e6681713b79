package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/procflow/internal/ir"
)

// Snapshot renders a result for golden comparison as canonical JSON.
//
// Content hashes are left out so golden files stay readable: a generated
// record id is written as its origin key "<node>@<root>", and graph and
// payload hashes are omitted (payloads are included in full).
func Snapshot(name string, result *Result) ([]byte, error) {
	runs := make(ir.IRArray, len(result.Reports))
	for i, r := range result.Reports {
		runs[i] = reportSnapshot(r)
	}

	records := make(ir.IRArray, len(result.Records))
	for i, rec := range result.Records {
		records[i] = ir.IRObject{
			"origin":   ir.IRString(originLabel(rec.OriginNodeID, rec.RootEntityID)),
			"kind":     ir.IRString(rec.Kind),
			"revision": ir.NewIRInt(rec.Revision),
			"payload":  rec.Payload,
		}
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario": ir.IRString(name),
		"runs":     runs,
		"records":  records,
	})
}

func reportSnapshot(r *ir.ExecutionReport) ir.IRObject {
	nodes := make(ir.IRArray, len(r.Nodes))
	for i, n := range r.Nodes {
		entry := ir.IRObject{
			"node_id": ir.IRString(n.NodeID),
			"kind":    ir.IRString(n.Kind),
			"outcome": ir.IRString(n.Outcome),
		}
		if n.Reason != "" {
			entry["reason"] = ir.IRString(n.Reason)
		}
		if n.RecordID != "" {
			label := n.RecordID
			if n.RecordID == ir.RecordID(n.NodeID, r.RootEntityID) {
				label = originLabel(n.NodeID, r.RootEntityID)
			}
			entry["record"] = ir.IRString(label)
		}
		nodes[i] = entry
	}

	run := ir.IRObject{
		"run_id":    ir.IRString(r.RunID),
		"root_kind": ir.IRString(r.RootKind),
		"root_id":   ir.IRString(r.RootEntityID),
		"nodes":     nodes,
	}
	if r.ProjectTypeID != "" {
		run["project_type"] = ir.IRString(r.ProjectTypeID)
	}
	if r.Abort != nil {
		abort := ir.IRObject{
			"code":    ir.IRString(r.Abort.Code),
			"message": ir.IRString(r.Abort.Message),
		}
		if len(r.Abort.Details) > 0 {
			details := make(ir.IRArray, len(r.Abort.Details))
			for i, d := range r.Abort.Details {
				details[i] = ir.IRString(d)
			}
			abort["details"] = details
		}
		run["abort"] = abort
	}
	return run
}

func originLabel(nodeID, rootID string) string {
	return nodeID + "@" + rootID
}

// RunWithGolden executes a scenario, fails the test on assertion errors, and
// compares the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)

	return nil
}
