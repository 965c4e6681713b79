package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/materialize"
	"github.com/roach88/procflow/internal/store"
	"github.com/roach88/procflow/internal/testutil"
)

const (
	statusWon       = "GANHO"
	statusLost      = "PERDIDO"
	categoryInstall = "INSTALA\u00c7\u00c3O"
)

func newTestEngine(opts ...EngineOption) (*Engine, *testutil.MemoryRecords) {
	mem := testutil.NewMemoryRecords()
	m := materialize.NewFromSource(func(kind ir.EntityKind) materialize.RecordStore {
		return mem.Kind(kind)
	})
	base := []EngineOption{WithRunIDGenerator(testutil.NewSequentialRunIDGenerator("run"))}
	return New(m, append(base, opts...)...), mem
}

func wonProject(id string) ir.EntitySnapshot {
	return testutil.Project(id, ir.IRObject{
		"status":      ir.IRString(statusWon),
		"valorVenda":  ir.NewIRInt(10000),
		"tipoProjeto": ir.IRString("residencial"),
	})
}

func onStatus(id, status string) *testutil.NodeBuilder {
	return testutil.Node(id).On(ir.KindProject, "status", ir.OpEqualsText, ir.IRString(status))
}

// revenueGraph is the single-node graph of the first two scenarios.
func revenueGraph() *ir.ProcessGraph {
	return testutil.Graph("residencial",
		onStatus("rev", statusWon).Produces(ir.KindRevenue),
	)
}

// installGraph is Project → ServiceOrder → Activity.
func installGraph() *ir.ProcessGraph {
	return testutil.Graph("residencial",
		onStatus("os", statusWon).
			Produces(ir.KindServiceOrder).
			With(ir.IRObject{"categoria": ir.IRString(categoryInstall)}),
		testutil.Node("agenda").Under("os").
			On(ir.KindServiceOrder, "categoria", ir.OpEqualsText, ir.IRString(categoryInstall)).
			Produces(ir.KindActivity).
			With(ir.IRObject{"titulo": ir.IRString("Agendar instalacao")}),
	)
}

func activity(title string) ir.IRObject {
	return ir.IRObject{"titulo": ir.IRString(title)}
}

// graphMap is a GraphSource over a fixed set of graphs.
type graphMap map[string]*ir.ProcessGraph

func (g graphMap) LoadGraph(ctx context.Context, projectTypeID string) (*ir.ProcessGraph, error) {
	graph, ok := g[projectTypeID]
	if !ok {
		return nil, fmt.Errorf("graph %q: %w", projectTypeID, store.ErrNotFound)
	}
	return graph, nil
}

// failingGraphs is a GraphSource whose backend is down.
type failingGraphs struct{ err error }

func (f failingGraphs) LoadGraph(context.Context, string) (*ir.ProcessGraph, error) {
	return nil, f.err
}

// memorySink keeps reports in memory; it is both a ReportSink and a ReportSource.
type memorySink struct {
	mu      sync.Mutex
	reports map[string]*ir.ExecutionReport
	order   []string
	err     error
}

func newMemorySink() *memorySink {
	return &memorySink{reports: make(map[string]*ir.ExecutionReport)}
}

func (s *memorySink) WriteReport(ctx context.Context, r *ir.ExecutionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports[r.RunID] = r
	s.order = append(s.order, r.RunID)
	return nil
}

func (s *memorySink) ReadReport(ctx context.Context, runID string) (*ir.ExecutionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[runID]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", runID, store.ErrNotFound)
	}
	return r, nil
}

func (s *memorySink) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
