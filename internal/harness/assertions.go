package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/procflow/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the report of the step involved to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Nodes    []ir.NodeOutcome // Report entries of the step, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Nodes) > 0 {
		fmt.Fprintf(&buf, "\nReport:\n")
		for i, n := range e.Nodes {
			fmt.Fprintf(&buf, "  [%d] %s %s", i+1, n.NodeID, n.Outcome)
			if n.Reason != "" {
				fmt.Fprintf(&buf, " (%s)", n.Reason)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// assertOutcome checks that a node ended the step's run with the expected
// outcome, and that its reason contains the expected text.
func assertOutcome(report *ir.ExecutionReport, a Assertion) error {
	got, ok := report.Outcome(a.Node)
	if !ok {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("node %s %s in step %d", a.Node, a.Outcome, a.Step),
			Actual:   "node not in report",
			Nodes:    report.Nodes,
		}
	}
	if string(got.Outcome) != a.Outcome {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("node %s %s", a.Node, a.Outcome),
			Actual:   fmt.Sprintf("node %s %s", a.Node, got.Outcome),
			Nodes:    report.Nodes,
		}
	}
	if a.Reason != "" && !strings.Contains(got.Reason, a.Reason) {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("node %s reason containing %q", a.Node, a.Reason),
			Actual:   fmt.Sprintf("reason %q", got.Reason),
			Nodes:    report.Nodes,
		}
	}
	return nil
}

// assertOrder checks the exact processing order of the step's run.
func assertOrder(report *ir.ExecutionReport, a Assertion) error {
	got := report.NodeIDs()
	if !slices.Equal(got, a.Nodes) {
		return &AssertionError{
			Type:     AssertOrder,
			Expected: fmt.Sprintf("nodes in order: %v", a.Nodes),
			Actual:   fmt.Sprintf("nodes in order: %v", got),
			Nodes:    report.Nodes,
		}
	}
	return nil
}

// assertAbort checks that the step's run aborted with the expected code.
func assertAbort(report *ir.ExecutionReport, a Assertion) error {
	if report.Abort == nil {
		return &AssertionError{
			Type:     AssertAbort,
			Expected: fmt.Sprintf("run aborted with %s", a.Code),
			Actual:   "run completed",
			Nodes:    report.Nodes,
		}
	}
	if report.Abort.Code != a.Code {
		return &AssertionError{
			Type:     AssertAbort,
			Expected: fmt.Sprintf("run aborted with %s", a.Code),
			Actual:   fmt.Sprintf("run aborted with %s: %s", report.Abort.Code, report.Abort.Message),
			Nodes:    report.Nodes,
		}
	}
	return nil
}

// assertRecordCount checks the number of stored records, optionally of one kind.
func assertRecordCount(records []ir.GeneratedRecord, a Assertion) error {
	count := 0
	for _, rec := range records {
		if a.Kind == "" || string(rec.Kind) == a.Kind {
			count++
		}
	}
	if count != a.Count {
		what := "records"
		if a.Kind != "" {
			what = a.Kind + " records"
		}
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
		}
	}
	return nil
}

// assertRecord checks a stored record's payload (subset match) and revision.
func assertRecord(result *Result, root string, a Assertion) error {
	rec, ok := result.RecordFor(a.Node, root)
	if !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record of node %s for root %s", a.Node, root),
			Actual:   "record not found",
		}
	}

	if a.Revision != 0 && rec.Revision != a.Revision {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %s@%s revision %d", a.Node, root, a.Revision),
			Actual:   fmt.Sprintf("revision %d", rec.Revision),
		}
	}

	want, err := ir.ObjectFromNative(a.Fields)
	if err != nil {
		return fmt.Errorf("record assertion fields: %w", err)
	}
	// Sorted for a deterministic first mismatch.
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, exists := rec.Payload[k]
		if !exists {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("field %q to exist", k),
				Actual:   fmt.Sprintf("payload keys: %v", rec.Payload.SortedKeys()),
			}
		}
		if !matchValue(want[k], got) {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("field %q = %s", k, describe(want[k])),
				Actual:   fmt.Sprintf("field %q = %s", k, describe(got)),
			}
		}
	}
	return nil
}

// matchValue reports whether got matches want. Objects match as subsets,
// arrays element-wise, numbers by value.
func matchValue(want, got ir.IRValue) bool {
	switch w := want.(type) {
	case ir.IRNumber:
		g, ok := got.(ir.IRNumber)
		return ok && w.Cmp(g) == 0
	case ir.IRString:
		g, ok := got.(ir.IRString)
		return ok && w == g
	case ir.IRBool:
		g, ok := got.(ir.IRBool)
		return ok && w == g
	case ir.IRNull:
		_, ok := got.(ir.IRNull)
		return ok || got == nil
	case ir.IRArray:
		g, ok := got.(ir.IRArray)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !matchValue(w[i], g[i]) {
				return false
			}
		}
		return true
	case ir.IRObject:
		g, ok := got.(ir.IRObject)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, exists := g[k]
			if !exists || !matchValue(wv, gv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func describe(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// EvaluateAssertions evaluates all of the scenario's assertions against
// the result. Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, scenario *Scenario) []string {
	var errs []string

	defaultRoot := ""
	if len(scenario.Steps) > 0 {
		defaultRoot = scenario.Steps[0].ID
	}

	for i, a := range scenario.Assertions {
		var err error

		switch a.Type {
		case AssertOutcome, AssertOrder, AssertAbort:
			report := result.stepReport(a.Step)
			if report == nil {
				err = fmt.Errorf("assertion[%d]: no report for step %d", i, a.Step)
				break
			}
			switch a.Type {
			case AssertOutcome:
				err = assertOutcome(report, a)
			case AssertOrder:
				err = assertOrder(report, a)
			default:
				err = assertAbort(report, a)
			}
		case AssertRecordCount:
			err = assertRecordCount(result.Records, a)
		case AssertRecord:
			root := a.Root
			if root == "" {
				root = defaultRoot
			}
			err = assertRecord(result, root, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
