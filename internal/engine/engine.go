package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/procflow/internal/compiler"
	"github.com/roach88/procflow/internal/condition"
	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/lock"
	"github.com/roach88/procflow/internal/materialize"
	"github.com/roach88/procflow/internal/registry"
	"github.com/roach88/procflow/internal/store"
)

// Materializer creates or updates the record a satisfied node generates.
// Implemented by *materialize.Materializer.
type Materializer interface {
	Materialize(ctx context.Context, node ir.ProcessNode, parent, root ir.EntitySnapshot) (ir.GeneratedRecord, error)
}

// GraphSource loads the process graph configured for a project type.
// A missing graph must be reported as store.ErrNotFound.
type GraphSource interface {
	LoadGraph(ctx context.Context, projectTypeID string) (*ir.ProcessGraph, error)
}

// ReportSink persists execution reports.
type ReportSink interface {
	WriteReport(ctx context.Context, r *ir.ExecutionReport) error
}

// DefaultLockTTL bounds how long a crashed run can hold a root's lock.
const DefaultLockTTL = 30 * time.Second

// Engine runs process graphs against root entities.
//
// Thread-safety model:
//   - Run() and OnEntityChanged(): safe from any goroutine; each call is an
//     independent run with its own queue and ExecutionContext
//   - Runs for the same root are serialized only when a Locker is configured
//
// INVARIANTS:
//   - A run materializes each node at most once
//   - Report entries follow processing order (BFS, siblings in declaration order)
type Engine struct {
	materializer Materializer
	limits       Limits
	runIDs       RunIDGenerator
	graphs       GraphSource
	reports      ReportSink
	locker       lock.Locker
	lockTTL      time.Duration
	metrics      *Metrics
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLimits sets the run bounds. Non-positive fields keep their defaults.
//
// Default: MaxNodes 500, MaxDepth 20 (DefaultLimits)
func WithLimits(limits Limits) EngineOption {
	return func(e *Engine) {
		e.limits = limits.withDefaults()
	}
}

// WithLocker serializes OnEntityChanged runs per root entity.
// A non-positive ttl means DefaultLockTTL.
func WithLocker(l lock.Locker, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.locker = l
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithMetrics reports runs and node outcomes to m.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithReportSink persists every report, aborted ones included.
func WithReportSink(s ReportSink) EngineOption {
	return func(e *Engine) {
		e.reports = s
	}
}

// WithRunIDGenerator sets the run id generator.
//
// Default: UUIDv7Generator. Tests use a fixed generator for golden reports.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithGraphSource sets where OnEntityChanged loads graphs from.
func WithGraphSource(s GraphSource) EngineOption {
	return func(e *Engine) {
		e.graphs = s
	}
}

// New creates an Engine that materializes records through m.
func New(m Materializer, opts ...EngineOption) *Engine {
	e := &Engine{
		materializer: m,
		limits:       DefaultLimits(),
		runIDs:       UUIDv7Generator{},
		lockTTL:      DefaultLockTTL,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NewStoreBacked creates an Engine wired to st for records, graphs and
// reports. opts are applied after the store wiring.
func NewStoreBacked(st *store.Store, opts ...EngineOption) *Engine {
	m := materialize.NewFromSource(func(kind ir.EntityKind) materialize.RecordStore {
		return st.Records(kind)
	})
	base := []EngineOption{WithGraphSource(st), WithReportSink(st)}
	return New(m, append(base, opts...)...)
}

// Limits returns the run bounds in effect.
func (e *Engine) Limits() Limits {
	return e.limits
}

// Run executes graph against root and returns the report.
//
// Run never returns an error: an invalid or oversized graph aborts the run
// (report.Abort is set) and node-level failures are report entries. When a
// ReportSink is configured the report is persisted before Run returns.
func (e *Engine) Run(ctx context.Context, root ir.EntitySnapshot, graph *ir.ProcessGraph) *ir.ExecutionReport {
	start := time.Now()
	projectType := ""
	if graph != nil {
		projectType = graph.ProjectTypeID
	}
	report := e.newReport(root, projectType)
	if graph != nil {
		if hash, err := ir.GraphHash(graph); err == nil {
			report.GraphHash = hash
		}
	}

	slog.Info("run started",
		"run_id", report.RunID,
		"project_type", report.ProjectTypeID,
		"root_kind", root.Kind,
		"root_id", root.ID,
	)

	if err := e.execute(ctx, report, root, graph); err != nil {
		e.abort(report, err)
	}

	e.finish(ctx, report, start)
	return report
}

// OnEntityChanged runs the graph of the changed root entity.
//
// The project type is read from the kind's project type field and its graph
// is loaded from the GraphSource. An unknown or non-root kind, a missing
// project type and a missing graph abort the run with CONFIGURATION_INVALID.
// Infrastructure failures (loading the graph, taking the lock) are returned
// as errors and no run happens.
func (e *Engine) OnEntityChanged(ctx context.Context, kind ir.EntityKind, id string, fields ir.IRObject) (*ir.ExecutionReport, error) {
	if fields == nil {
		fields = ir.IRObject{}
	}
	root := ir.EntitySnapshot{Kind: kind, ID: id, Fields: fields}

	projectType, err := projectTypeOf(root)
	if err != nil {
		return e.abortedRun(ctx, root, "", err), nil
	}

	graph, err := e.loadGraph(ctx, projectType)
	if err != nil {
		if errors.Is(err, ErrUnresolvedRoot) {
			return e.abortedRun(ctx, root, projectType, err), nil
		}
		return nil, err
	}

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, lockKey(root), e.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock %s %q: %w", kind, id, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release root lock", "root_kind", kind, "root_id", id, "error", err)
			}
		}()
	}

	return e.Run(ctx, root, graph), nil
}

// projectTypeOf reads the project type of a root snapshot.
func projectTypeOf(root ir.EntitySnapshot) (string, error) {
	spec, err := registry.SpecFor(root.Kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvedRoot, err)
	}
	if !spec.IsRoot() {
		return "", fmt.Errorf("%w: %s is not a root kind", ErrUnresolvedRoot, root.Kind)
	}
	pt, ok := root.Fields.Field(spec.ProjectTypeField).(ir.IRString)
	if !ok || strings.TrimSpace(string(pt)) == "" {
		return "", fmt.Errorf("%w: %s %q has no %s", ErrUnresolvedRoot, root.Kind, root.ID, spec.ProjectTypeField)
	}
	return string(pt), nil
}

func (e *Engine) loadGraph(ctx context.Context, projectType string) (*ir.ProcessGraph, error) {
	if e.graphs == nil {
		return nil, errors.New("engine: no graph source configured")
	}
	graph, err := e.graphs.LoadGraph(ctx, projectType)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: no process graph for project type %q", ErrUnresolvedRoot, projectType)
		}
		return nil, fmt.Errorf("load graph %q: %w", projectType, err)
	}
	return graph, nil
}

func lockKey(root ir.EntitySnapshot) string {
	return string(root.Kind) + ":" + root.ID
}

func (e *Engine) newReport(root ir.EntitySnapshot, projectType string) *ir.ExecutionReport {
	return &ir.ExecutionReport{
		RunID:         e.runIDs.Generate(),
		ProjectTypeID: projectType,
		RootKind:      root.Kind,
		RootEntityID:  root.ID,
		RootFields:    root.Fields,
		Nodes:         []ir.NodeOutcome{},
	}
}

// abortedRun reports a run that stopped before touching the graph.
func (e *Engine) abortedRun(ctx context.Context, root ir.EntitySnapshot, projectType string, err error) *ir.ExecutionReport {
	start := time.Now()
	report := e.newReport(root, projectType)
	e.abort(report, err)
	e.finish(ctx, report, start)
	return report
}

func (e *Engine) abort(report *ir.ExecutionReport, err error) {
	report.Abort = abortFor(err)
	slog.Error("run aborted",
		"run_id", report.RunID,
		"project_type", report.ProjectTypeID,
		"root_id", report.RootEntityID,
		"code", report.Abort.Code,
		"error", err,
	)
}

// execute processes the graph breadth-first. A returned error aborts the
// run; outcomes already appended to the report are kept.
func (e *Engine) execute(ctx context.Context, report *ir.ExecutionReport, root ir.EntitySnapshot, graph *ir.ProcessGraph) error {
	if graph == nil {
		return fmt.Errorf("%w: no process graph", ErrUnresolvedRoot)
	}
	if err := compiler.Check(graph); err != nil {
		return err
	}

	quota := NewQuotaEnforcer(e.limits)
	if err := quota.CheckGraph(graph); err != nil {
		return err
	}

	ec := NewExecutionContext(report.RunID, root)
	children := graph.Children()
	queue := newWorkQueue()
	for _, n := range graph.Roots(root.Kind) {
		queue.Enqueue(workItem{node: n, parent: root, depth: 1})
	}

	for {
		item, ok := queue.TryDequeue()
		if !ok {
			return nil
		}
		if err := quota.Check(item.node.ID, item.depth); err != nil {
			return err
		}
		if ec.Seen(item.node.ID) {
			continue
		}

		outcome, next, blocked := e.processNode(ctx, ec, item)
		ec.Record(item.node.ID, outcome.RecordID)
		report.Nodes = append(report.Nodes, outcome)
		e.metrics.observeOutcome(outcome)

		for _, child := range children[item.node.ID] {
			queue.Enqueue(workItem{
				node:    child,
				parent:  next,
				depth:   item.depth + 1,
				blocked: blocked,
			})
		}
	}
}

// processNode decides one node. It returns the report entry, the snapshot
// the node's children evaluate against, and the blockage their subtree
// inherits (nil when the node was satisfied).
func (e *Engine) processNode(ctx context.Context, ec *ExecutionContext, item workItem) (ir.NodeOutcome, ir.EntitySnapshot, *blockage) {
	n := item.node
	out := ir.NodeOutcome{NodeID: n.ID, Kind: n.ProducedKind}

	if item.blocked != nil {
		out.Outcome = ir.OutcomeSkipped
		out.Reason = blockedReason(item.blocked)
		slog.Debug("node skipped",
			"run_id", ec.RunID,
			"node_id", n.ID,
			"blocked_by", item.blocked.nodeID,
		)
		return out, ir.EntitySnapshot{}, item.blocked
	}

	ref := item.parent.Fields.Field(n.Trigger.Variable)
	if !condition.Evaluate(n.Trigger.Operator, ref, n.Trigger.Operand) {
		out.Outcome = ir.OutcomeSkipped
		out.Reason = fmt.Sprintf("trigger not satisfied: %s %s", n.Trigger.Variable, n.Trigger.Operator)
		slog.Debug("node skipped",
			"run_id", ec.RunID,
			"node_id", n.ID,
			"variable", n.Trigger.Variable,
			"operator", n.Trigger.Operator,
		)
		return out, ir.EntitySnapshot{}, &blockage{nodeID: n.ID, outcome: ir.OutcomeSkipped}
	}

	rec, err := e.materializer.Materialize(ctx, n, item.parent, ec.Root)
	if err != nil {
		out.Outcome = ir.OutcomeFailed
		out.Reason = err.Error()
		failure := failureKind(err)
		e.metrics.observeFailure(n.ProducedKind, failure)
		slog.Warn("node failed",
			"run_id", ec.RunID,
			"node_id", n.ID,
			"kind", n.ProducedKind,
			"failure", failure,
			"error", err,
		)
		return out, ir.EntitySnapshot{}, &blockage{nodeID: n.ID, outcome: ir.OutcomeFailed}
	}

	out.Outcome = ir.OutcomeSatisfied
	out.RecordID = rec.ID
	slog.Debug("node satisfied",
		"run_id", ec.RunID,
		"node_id", n.ID,
		"kind", n.ProducedKind,
		"record_id", rec.ID,
		"revision", rec.Revision,
	)
	return out, rec.Snapshot(), nil
}

func blockedReason(b *blockage) string {
	if b.outcome == ir.OutcomeFailed {
		return fmt.Sprintf("ancestor %q failed", b.nodeID)
	}
	return fmt.Sprintf("ancestor %q was skipped", b.nodeID)
}

func failureKind(err error) string {
	var me *materialize.MaterializationError
	if errors.As(err, &me) {
		return string(me.Kind)
	}
	return "UNKNOWN"
}

// finish persists the report and records the run.
func (e *Engine) finish(ctx context.Context, report *ir.ExecutionReport, start time.Time) {
	if e.reports != nil {
		// A cancelled request still leaves its report behind.
		if err := e.reports.WriteReport(context.WithoutCancel(ctx), report); err != nil {
			e.metrics.observeReportError()
			slog.Error("failed to persist report", "run_id", report.RunID, "error", err)
		}
	}

	e.metrics.observeRun(report, time.Since(start).Seconds())
	slog.Info("run finished",
		"run_id", report.RunID,
		"satisfied", report.Count(ir.OutcomeSatisfied),
		"skipped", report.Count(ir.OutcomeSkipped),
		"failed", report.Count(ir.OutcomeFailed),
		"aborted", report.Aborted(),
	)
}
