package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/procflow/internal/compiler"
	"github.com/roach88/procflow/internal/engine"
	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/store"
	"github.com/roach88/procflow/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database. The graph file is
// compiled and imported as-is, so an invalid graph is reported by the run
// (CONFIGURATION_INVALID) rather than by Run. Run ids are sequential, so
// reports are reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Compile the graph file and import it
// 3. Feed every step to the engine as a root state change
// 4. Collect the records of every root
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	graph, err := compiler.LoadGraphFile(scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph: %w", err)
	}
	if _, err := st.SaveGraph(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to import graph: %w", err)
	}

	opts := []engine.EngineOption{
		engine.WithRunIDGenerator(testutil.NewSequentialRunIDGenerator(scenario.RunID)),
	}
	if scenario.Limits != nil {
		opts = append(opts, engine.WithLimits(engine.Limits{
			MaxNodes: scenario.Limits.MaxNodes,
			MaxDepth: scenario.Limits.MaxDepth,
		}))
	}
	eng := engine.NewStoreBacked(st, opts...)

	result := NewResult()
	var roots []string
	seenRoot := make(map[string]bool)

	for i, step := range scenario.Steps {
		root, err := step.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		report, err := eng.OnEntityChanged(ctx, root.Kind, root.ID, root.Fields)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		result.Reports = append(result.Reports, report)
		if !seenRoot[root.ID] {
			seenRoot[root.ID] = true
			roots = append(roots, root.ID)
		}

		slog.Debug("scenario step completed",
			"scenario", scenario.Name,
			"step", i,
			"run_id", report.RunID,
			"nodes", len(report.Nodes),
			"aborted", report.Aborted(),
		)
	}

	for _, id := range roots {
		recs, err := st.ListRecordsByRoot(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read records of %q: %w", id, err)
		}
		result.Records = append(result.Records, recs...)
	}

	for _, msg := range EvaluateAssertions(result, scenario) {
		result.AddError(msg)
	}

	return result, nil
}

// stepReport returns the report of step i, or nil when out of range.
func (r *Result) stepReport(i int) *ir.ExecutionReport {
	if i < 0 || i >= len(r.Reports) {
		return nil
	}
	return r.Reports[i]
}
