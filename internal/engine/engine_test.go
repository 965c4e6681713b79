package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/testutil"
)

func TestRun_RevenueSatisfied(t *testing.T) {
	e, mem := newTestEngine()
	root := testutil.Project("P-1", ir.IRObject{
		"status":     ir.IRString(statusWon),
		"valorVenda": ir.NewIRInt(10000),
	})

	report := e.Run(context.Background(), root, revenueGraph())

	require.False(t, report.Aborted())
	require.Len(t, report.Nodes, 1)
	assert.Equal(t, ir.NodeOutcome{
		NodeID:   "rev",
		Kind:     ir.KindRevenue,
		Outcome:  ir.OutcomeSatisfied,
		RecordID: ir.RecordID("rev", "P-1"),
	}, report.Nodes[0])

	records := mem.All()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, ir.KindRevenue, rec.Kind)
	assert.Equal(t, "rev", rec.OriginNodeID)
	assert.Equal(t, "P-1", rec.RootEntityID)

	total, ok := rec.Payload.Field("total").(ir.IRNumber)
	require.True(t, ok)
	assert.Zero(t, total.Cmp(ir.MustNumber("10000")), "total = %s", total)
}

func TestRun_TriggerNotSatisfied(t *testing.T) {
	e, mem := newTestEngine()
	root := testutil.Project("P-1", ir.IRObject{
		"status":     ir.IRString(statusLost),
		"valorVenda": ir.NewIRInt(10000),
	})

	report := e.Run(context.Background(), root, revenueGraph())

	require.False(t, report.Aborted())
	require.Len(t, report.Nodes, 1)
	assert.Equal(t, "rev", report.Nodes[0].NodeID)
	assert.Equal(t, ir.OutcomeSkipped, report.Nodes[0].Outcome)
	assert.Contains(t, report.Nodes[0].Reason, "trigger not satisfied")
	assert.Empty(t, report.Nodes[0].RecordID)
	assert.Empty(t, mem.All())
}

func TestRun_TwoLevelChain(t *testing.T) {
	e, mem := newTestEngine()

	report := e.Run(context.Background(), wonProject("P-1"), installGraph())

	require.False(t, report.Aborted())
	assert.Equal(t, []string{"os", "agenda"}, report.NodeIDs())
	assert.Equal(t, 2, report.Count(ir.OutcomeSatisfied))

	records := mem.All()
	require.Len(t, records, 2)
	assert.Equal(t, ir.KindServiceOrder, records[0].Kind)
	assert.Equal(t, "os", records[0].OriginNodeID)
	assert.Equal(t, ir.KindActivity, records[1].Kind)
	assert.Equal(t, "agenda", records[1].OriginNodeID)
	for _, rec := range records {
		assert.Equal(t, "P-1", rec.RootEntityID)
		assert.Equal(t, ir.KindProject, rec.RootEntityKind)
	}
}

func TestRun_ProducesKindOutsideGeneratableKinds(t *testing.T) {
	e, mem := newTestEngine()
	graph := testutil.Graph("residencial",
		onStatus("os", statusWon).
			Produces(ir.KindServiceOrder).
			With(ir.IRObject{"categoria": ir.IRString(categoryInstall)}),
		testutil.Node("rev").Under("os").
			On(ir.KindServiceOrder, "categoria", ir.OpEqualsText, ir.IRString(categoryInstall)).
			Produces(ir.KindRevenue),
	)

	report := e.Run(context.Background(), wonProject("P-1"), graph)

	require.False(t, report.Aborted(), "abort: %+v", report.Abort)
	assert.Equal(t, []string{"os", "rev"}, report.NodeIDs())
	assert.Equal(t, 2, report.Count(ir.OutcomeSatisfied))
	require.Len(t, mem.All(), 2)
	assert.Equal(t, ir.KindRevenue, mem.All()[1].Kind)
}

func TestRun_ChildEvaluatesAgainstParentRecord(t *testing.T) {
	e, mem := newTestEngine()
	graph := installGraph()
	// The service order is created with another category, so the child's
	// trigger reads that record and does not hold.
	graph.Nodes[0].Template = ir.IRObject{"categoria": ir.IRString("VISTORIA")}

	report := e.Run(context.Background(), wonProject("P-1"), graph)

	os, _ := report.Outcome("os")
	agenda, _ := report.Outcome("agenda")
	assert.Equal(t, ir.OutcomeSatisfied, os.Outcome)
	assert.Equal(t, ir.OutcomeSkipped, agenda.Outcome)
	assert.Len(t, mem.All(), 1)
}

func TestRun_Idempotent(t *testing.T) {
	e, mem := newTestEngine()
	root := wonProject("P-1")
	graph := installGraph()

	first := e.Run(context.Background(), root, graph)
	upserts := mem.Upserts()
	recordsAfterFirst := mem.All()

	second := e.Run(context.Background(), root, graph)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, recordsAfterFirst, mem.All())
	assert.Equal(t, upserts, mem.Upserts(), "unchanged payloads are not written again")
}

func TestRun_ChangedRootUpdatesInPlace(t *testing.T) {
	e, mem := newTestEngine()

	e.Run(context.Background(), wonProject("P-1"), revenueGraph())
	changed := wonProject("P-1")
	changed.Fields["valorVenda"] = ir.NewIRInt(12000)
	e.Run(context.Background(), changed, revenueGraph())

	records := mem.All()
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].Revision)
	total := records[0].Payload.Field("total").(ir.IRNumber)
	assert.Zero(t, total.Cmp(ir.MustNumber("12000")))
}

func TestRun_SkipDoesNotDelete(t *testing.T) {
	e, mem := newTestEngine()

	e.Run(context.Background(), wonProject("P-1"), revenueGraph())
	require.Len(t, mem.All(), 1)

	lost := wonProject("P-1")
	lost.Fields["status"] = ir.IRString(statusLost)
	report := e.Run(context.Background(), lost, revenueGraph())

	assert.Equal(t, ir.OutcomeSkipped, report.Nodes[0].Outcome)
	assert.Len(t, mem.All(), 1)
}

func TestRun_SiblingIndependence(t *testing.T) {
	e, mem := newTestEngine()
	graph := testutil.Graph("residencial",
		onStatus("rev", statusWon).
			Produces(ir.KindRevenue).
			With(ir.IRObject{"composicao": ir.IRArray{
				ir.IRObject{"metodo": ir.IRString("PIX"), "percentual": ir.NewIRInt(90)},
			}}),
		onStatus("kick", statusWon).Produces(ir.KindActivity).With(activity("Kickoff")),
		testutil.Node("comm").Under("rev").
			On(ir.KindRevenue, "status", ir.OpEqualsText, ir.IRString("PREVISTA")).
			Produces(ir.KindCommission).
			With(ir.IRObject{"beneficiario": ir.IRString("vendedor"), "percentual": ir.NewIRInt(5)}),
		testutil.Node("aviso").Under("comm").
			On(ir.KindCommission, "beneficiario", ir.OpEqualsText, ir.IRString("vendedor")).
			Produces(ir.KindNotification).
			With(ir.IRObject{"mensagem": ir.IRString("Comissao gerada")}),
	)

	report := e.Run(context.Background(), wonProject("P-1"), graph)

	require.False(t, report.Aborted())
	assert.Equal(t, []string{"rev", "kick", "comm", "aviso"}, report.NodeIDs())

	rev, _ := report.Outcome("rev")
	assert.Equal(t, ir.OutcomeFailed, rev.Outcome)
	assert.Contains(t, rev.Reason, "payment percentages must sum to 100")

	kick, _ := report.Outcome("kick")
	assert.Equal(t, ir.OutcomeSatisfied, kick.Outcome)

	for _, id := range []string{"comm", "aviso"} {
		o, _ := report.Outcome(id)
		assert.Equal(t, ir.OutcomeSkipped, o.Outcome, id)
		assert.Equal(t, `ancestor "rev" failed`, o.Reason, id)
	}

	records := mem.All()
	require.Len(t, records, 1)
	assert.Equal(t, "kick", records[0].OriginNodeID)
}

func TestRun_SkippedSubtreeNamesAncestor(t *testing.T) {
	e, _ := newTestEngine()
	graph := installGraph()
	graph.Nodes = append(graph.Nodes, testutil.Node("lembrete").Under("agenda").
		On(ir.KindActivity, "status", ir.OpEqualsText, ir.IRString("PENDENTE")).
		Produces(ir.KindNotification).
		With(ir.IRObject{"mensagem": ir.IRString("Lembrete")}).
		Build())

	root := wonProject("P-1")
	root.Fields["status"] = ir.IRString(statusLost)
	report := e.Run(context.Background(), root, graph)

	assert.Equal(t, []string{"os", "agenda", "lembrete"}, report.NodeIDs())
	assert.Equal(t, 3, report.Count(ir.OutcomeSkipped))
	agenda, _ := report.Outcome("agenda")
	lembrete, _ := report.Outcome("lembrete")
	assert.Equal(t, `ancestor "os" was skipped`, agenda.Reason)
	assert.Equal(t, `ancestor "os" was skipped`, lembrete.Reason)
}

func TestRun_BreadthFirstOrder(t *testing.T) {
	graph := testutil.Graph("residencial",
		onStatus("a", statusWon).Produces(ir.KindActivity).With(activity("A")),
		testutil.Node("a1").Under("a").
			On(ir.KindActivity, "status", ir.OpEqualsText, ir.IRString("PENDENTE")).
			Produces(ir.KindActivity).With(activity("A1")),
		onStatus("b", statusWon).Produces(ir.KindActivity).With(activity("B")),
		testutil.Node("a11").Under("a1").
			On(ir.KindActivity, "status", ir.OpEqualsText, ir.IRString("PENDENTE")).
			Produces(ir.KindNotification).With(ir.IRObject{"mensagem": ir.IRString("A11")}),
		testutil.Node("b1").Under("b").
			On(ir.KindActivity, "status", ir.OpEqualsText, ir.IRString("PENDENTE")).
			Produces(ir.KindNotification).With(ir.IRObject{"mensagem": ir.IRString("B1")}),
		testutil.Node("a2").Under("a").
			On(ir.KindActivity, "status", ir.OpEqualsText, ir.IRString("PENDENTE")).
			Produces(ir.KindNotification).With(ir.IRObject{"mensagem": ir.IRString("A2")}),
	)
	want := []string{"a", "b", "a1", "a2", "b1", "a11"}

	for i := 0; i < 3; i++ {
		e, _ := newTestEngine()
		report := e.Run(context.Background(), wonProject("P-1"), graph)
		require.False(t, report.Aborted())
		assert.Equal(t, want, report.NodeIDs(), "run %d", i)
		assert.Equal(t, 6, report.Count(ir.OutcomeSatisfied), "run %d", i)
	}
}

func TestRun_GraphTooLarge_NodeCount(t *testing.T) {
	e, mem := newTestEngine(WithLimits(Limits{MaxNodes: 1}))

	report := e.Run(context.Background(), wonProject("P-1"), installGraph())

	require.True(t, report.Aborted())
	assert.Equal(t, ir.AbortGraphTooLarge, report.Abort.Code)
	assert.Contains(t, report.Abort.Message, "nodes 2 exceeds limit 1")
	assert.Empty(t, report.Nodes)
	assert.NotNil(t, report.Nodes)
	assert.Empty(t, mem.All())
}

func TestRun_GraphTooLarge_DepthKeepsOutcomes(t *testing.T) {
	e, mem := newTestEngine(WithLimits(Limits{MaxDepth: 2}))
	graph := installGraph()
	graph.Nodes = append(graph.Nodes, testutil.Node("confirmar").Under("agenda").
		On(ir.KindActivity, "status", ir.OpEqualsText, ir.IRString("PENDENTE")).
		Produces(ir.KindActivity).
		With(activity("Confirmar")).
		Build())

	report := e.Run(context.Background(), wonProject("P-1"), graph)

	require.True(t, report.Aborted())
	assert.Equal(t, ir.AbortGraphTooLarge, report.Abort.Code)
	assert.Contains(t, report.Abort.Details, "limit=depth")
	assert.Contains(t, report.Abort.Details, "node=confirmar")
	assert.Equal(t, []string{"os", "agenda"}, report.NodeIDs())
	assert.Len(t, mem.All(), 2, "records written before the abort stay written")
}

func TestRun_InvalidGraphAborts(t *testing.T) {
	e, mem := newTestEngine()
	graph := testutil.Graph("residencial",
		onStatus("rev", statusWon).Produces(ir.KindRevenue),
		testutil.Node("bad").
			On(ir.KindProject, "corDoTelhado", ir.OpEqualsText, ir.IRString("azul")).
			Produces(ir.KindActivity).With(activity("X")),
	)

	report := e.Run(context.Background(), wonProject("P-1"), graph)

	require.True(t, report.Aborted())
	assert.Equal(t, ir.AbortConfigurationInvalid, report.Abort.Code)
	require.NotEmpty(t, report.Abort.Details)
	assert.Contains(t, report.Abort.Details[0], `node "bad"`)
	assert.Contains(t, report.Abort.Details[0], "E201")
	assert.Empty(t, report.Nodes)
	assert.Empty(t, mem.All(), "no node runs on an invalid graph")
}

func TestRun_NilGraphAborts(t *testing.T) {
	e, _ := newTestEngine()

	report := e.Run(context.Background(), wonProject("P-1"), nil)

	require.True(t, report.Aborted())
	assert.Equal(t, ir.AbortConfigurationInvalid, report.Abort.Code)
}

func TestRun_EmptyGraph(t *testing.T) {
	e, _ := newTestEngine()

	report := e.Run(context.Background(), wonProject("P-1"), &ir.ProcessGraph{ProjectTypeID: "residencial"})

	assert.False(t, report.Aborted())
	assert.Empty(t, report.Nodes)
	assert.NotEmpty(t, report.GraphHash)
}

func TestRun_UnavailableStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	e, mem := newTestEngine(WithMetrics(metrics))
	mem.FindErr[ir.KindServiceOrder] = errors.New("connection refused")
	graph := installGraph()
	graph.Nodes = append(graph.Nodes,
		onStatus("kick", statusWon).Produces(ir.KindActivity).With(activity("Kickoff")).Build())

	report := e.Run(context.Background(), wonProject("P-1"), graph)

	os, _ := report.Outcome("os")
	assert.Equal(t, ir.OutcomeFailed, os.Outcome)
	assert.Contains(t, os.Reason, "connection refused")
	agenda, _ := report.Outcome("agenda")
	assert.Equal(t, ir.OutcomeSkipped, agenda.Outcome)
	kick, _ := report.Outcome("kick")
	assert.Equal(t, ir.OutcomeSatisfied, kick.Outcome)

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Failures.WithLabelValues("ServiceOrder", "UNAVAILABLE")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.NodeOutcomes.WithLabelValues("Activity", "Satisfied")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Runs.WithLabelValues("residencial", "completed")))
}

func TestRun_OtherRootKindRunsNothing(t *testing.T) {
	e, mem := newTestEngine()
	root := ir.EntitySnapshot{Kind: ir.KindRevenue, ID: "R-1", Fields: ir.IRObject{"status": ir.IRString("PREVISTA")}}

	report := e.Run(context.Background(), root, revenueGraph())

	assert.False(t, report.Aborted())
	assert.Empty(t, report.Nodes)
	assert.Empty(t, mem.All())
}

func TestRun_PersistsReport(t *testing.T) {
	sink := newMemorySink()
	e, _ := newTestEngine(WithReportSink(sink))

	report := e.Run(context.Background(), wonProject("P-1"), revenueGraph())

	stored, err := sink.ReadReport(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Same(t, report, stored)
	assert.Equal(t, "run-0001", report.RunID)
	assert.Equal(t, "residencial", report.ProjectTypeID)
	assert.Equal(t, ir.KindProject, report.RootKind)
	assert.Equal(t, "P-1", report.RootEntityID)
}

func TestRun_ReportSinkFailureIsNotFatal(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	sink := newMemorySink()
	sink.err = errors.New("disk full")
	e, mem := newTestEngine(WithReportSink(sink), WithMetrics(metrics))

	report := e.Run(context.Background(), wonProject("P-1"), revenueGraph())

	assert.Equal(t, 1, report.Count(ir.OutcomeSatisfied))
	assert.Len(t, mem.All(), 1)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ReportErrors))
}

func TestRun_CancelledContextFailsNodes(t *testing.T) {
	sink := newMemorySink()
	e, mem := newTestEngine(WithReportSink(sink))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := e.Run(ctx, wonProject("P-1"), revenueGraph())

	assert.Equal(t, ir.OutcomeFailed, report.Nodes[0].Outcome)
	assert.Empty(t, mem.All())
	assert.Equal(t, []string{report.RunID}, sink.written(), "the report of a cancelled run is still persisted")
}

func TestNew_Defaults(t *testing.T) {
	e := New(nil)
	assert.Equal(t, DefaultLimits(), e.Limits())
	assert.Equal(t, DefaultLockTTL, e.lockTTL)
	assert.IsType(t, UUIDv7Generator{}, e.runIDs)

	e = New(nil, WithLimits(Limits{MaxNodes: 10}))
	assert.Equal(t, Limits{MaxNodes: 10, MaxDepth: DefaultMaxDepth}, e.Limits())
}
