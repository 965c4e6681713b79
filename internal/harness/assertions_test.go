package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procflow/internal/ir"
)

func testReport() *ir.ExecutionReport {
	return &ir.ExecutionReport{
		RunID:        "run-0001",
		RootKind:     ir.KindProject,
		RootEntityID: "P-1",
		Nodes: []ir.NodeOutcome{
			{NodeID: "rev", Kind: ir.KindRevenue, Outcome: ir.OutcomeFailed, Reason: "materialize Revenue for node \"rev\": root Project \"P-1\" has no numeric valorVenda"},
			{NodeID: "comm", Kind: ir.KindCommission, Outcome: ir.OutcomeSkipped, Reason: `ancestor "rev" failed`},
		},
	}
}

func TestAssertOutcome(t *testing.T) {
	r := testReport()

	assert.NoError(t, assertOutcome(r, Assertion{Node: "rev", Outcome: "Failed", Reason: "no numeric valorVenda"}))
	assert.NoError(t, assertOutcome(r, Assertion{Node: "comm", Outcome: "Skipped"}))

	err := assertOutcome(r, Assertion{Node: "comm", Outcome: "Skipped", Reason: "was skipped"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `reason "ancestor \"rev\" failed"`)

	err = assertOutcome(r, Assertion{Node: "agenda", Outcome: "Satisfied"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node not in report")
}

func TestAssertOrder(t *testing.T) {
	r := testReport()

	assert.NoError(t, assertOrder(r, Assertion{Nodes: []string{"rev", "comm"}}))

	err := assertOrder(r, Assertion{Nodes: []string{"comm", "rev"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[rev comm]")
}

func TestAssertAbort(t *testing.T) {
	r := testReport()

	err := assertAbort(r, Assertion{Code: ir.AbortGraphTooLarge})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run completed")

	r.Abort = &ir.RunAbort{Code: ir.AbortConfigurationInvalid, Message: "bad graph"}
	assert.NoError(t, assertAbort(r, Assertion{Code: ir.AbortConfigurationInvalid}))

	err = assertAbort(r, Assertion{Code: ir.AbortGraphTooLarge})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIGURATION_INVALID: bad graph")
}

func TestAssertionError_IncludesReport(t *testing.T) {
	err := &AssertionError{
		Type:     AssertOutcome,
		Expected: "node rev Satisfied",
		Actual:   "node rev Failed",
		Nodes:    testReport().Nodes,
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: outcome")
	assert.Contains(t, msg, "Expected: node rev Satisfied")
	assert.Contains(t, msg, "[2] comm Skipped (ancestor \"rev\" failed)")
}

func TestAssertRecordCount(t *testing.T) {
	records := []ir.GeneratedRecord{
		{Kind: ir.KindRevenue},
		{Kind: ir.KindActivity},
		{Kind: ir.KindActivity},
	}

	assert.NoError(t, assertRecordCount(records, Assertion{Count: 3}))
	assert.NoError(t, assertRecordCount(records, Assertion{Kind: "Activity", Count: 2}))

	err := assertRecordCount(records, Assertion{Kind: "Revenue", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 Revenue records")
}

func TestAssertRecord(t *testing.T) {
	result := NewResult()
	result.Records = []ir.GeneratedRecord{{
		Kind:         ir.KindCommission,
		OriginNodeID: "comm",
		RootEntityID: "P-1",
		Revision:     2,
		Payload: ir.IRObject{
			"valor":        ir.MustNumber("500.00"),
			"beneficiario": ir.IRString("vendedor"),
			"origem":       ir.IRObject{"noId": ir.IRString("comm"), "raizId": ir.IRString("P-1")},
		},
	}}

	assert.NoError(t, assertRecord(result, "P-1", Assertion{
		Node:     "comm",
		Revision: 2,
		Fields:   map[string]any{"valor": 500, "origem": map[string]any{"noId": "comm"}},
	}))

	tests := []struct {
		name string
		a    Assertion
		root string
		want string
	}{
		{"other root", Assertion{Node: "comm", Revision: 1}, "P-2", "record not found"},
		{"revision", Assertion{Node: "comm", Revision: 1}, "P-1", "revision 2"},
		{"missing field", Assertion{Node: "comm", Fields: map[string]any{"base": 1}}, "P-1", `field "base" to exist`},
		{"value", Assertion{Node: "comm", Fields: map[string]any{"valor": 499.99}}, "P-1", `field "valor" = 499.99`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertRecord(result, tt.root, tt.a)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMatchValue(t *testing.T) {
	tests := []struct {
		name string
		want ir.IRValue
		got  ir.IRValue
		ok   bool
	}{
		{"number scale", ir.NewIRInt(10000), ir.MustNumber("10000.00"), true},
		{"number differs", ir.NewIRInt(1), ir.MustNumber("1.01"), false},
		{"number vs text", ir.NewIRInt(1), ir.IRString("1"), false},
		{"text", ir.IRString("GANHO"), ir.IRString("GANHO"), true},
		{"bool", ir.IRBool(true), ir.IRBool(false), false},
		{"null", ir.IRNull{}, nil, true},
		{"array", ir.NewIRArray(ir.IRString("a")), ir.NewIRArray(ir.IRString("a")), true},
		{"array length", ir.NewIRArray(ir.IRString("a")), ir.NewIRArray(ir.IRString("a"), ir.IRString("b")), false},
		{"object subset", ir.IRObject{"a": ir.NewIRInt(1)}, ir.IRObject{"a": ir.NewIRInt(1), "b": ir.NewIRInt(2)}, true},
		{"object missing key", ir.IRObject{"c": ir.NewIRInt(1)}, ir.IRObject{"a": ir.NewIRInt(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, matchValue(tt.want, tt.got))
		})
	}
}
