package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/procflow/internal/engine"
	"github.com/roach88/procflow/internal/harness"
	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Snapshot string

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run --snapshot <file>",
		Short: "Run the process graph for one root entity change",
		Long: `Feed one root entity state change to the engine.

The snapshot file (YAML or JSON) names the root entity and its fields:

  kind: Project
  id: P-1
  fields:
    tipoProjeto: residencial
    status: GANHO
    valorVenda: 12000

The graph of the entity's project type is loaded from the database, every
satisfied node materializes its record, and the execution report is printed
and stored.

Exit codes:
  0 - Run completed with no failed node
  1 - Run aborted or a node failed
  2 - Command error (bad snapshot, database unavailable)

Examples:
  procflow run --db ./procflow.db --snapshot ./p-1.yaml
  procflow run --snapshot ./p-1.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "root entity snapshot file (required)")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}

func runOnce(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	root, err := readSnapshotFile(opts.Snapshot)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid snapshot", err)
	}

	st, err := openStore(opts.database(opts.Database))
	if err != nil {
		return err
	}
	defer closeStore(st)

	var extra []engine.EngineOption
	if opts.RunIDs != nil {
		extra = append(extra, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng := newEngine(opts.RootOptions, st, extra...)

	formatter.VerboseLog("Running %s %q", root.Kind, root.ID)
	report, err := eng.OnEntityChanged(commandContext(cmd), root.Kind, root.ID, root.Fields)
	if err != nil {
		return WrapExitError(ExitCommandError, "run failed", err)
	}
	return outputReport(formatter, report)
}

// readSnapshotFile decodes a root entity snapshot from YAML or JSON.
func readSnapshotFile(path string) (ir.EntitySnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.EntitySnapshot{}, err
	}
	return decodeSnapshot(data)
}

func decodeSnapshot(data []byte) (ir.EntitySnapshot, error) {
	var step harness.Step
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&step); err != nil {
		if err == io.EOF {
			return ir.EntitySnapshot{}, fmt.Errorf("empty snapshot")
		}
		return ir.EntitySnapshot{}, err
	}
	if step.Kind == "" || step.ID == "" {
		return ir.EntitySnapshot{}, fmt.Errorf("snapshot needs kind and id")
	}
	return step.Snapshot()
}

// openStore opens the SQLite database at path.
func openStore(path string) (*store.Store, error) {
	slog.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// newEngine wires an engine to st with the configured limits.
func newEngine(opts *RootOptions, st *store.Store, extra ...engine.EngineOption) *engine.Engine {
	base := []engine.EngineOption{engine.WithLimits(opts.Limits())}
	return engine.NewStoreBacked(st, append(base, extra...)...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// outputReport prints a report. Aborted runs and runs with failed nodes
// return ExitFailure.
func outputReport(formatter *OutputFormatter, report *ir.ExecutionReport) error {
	var failure error
	switch {
	case report.Aborted():
		failure = NewExitError(ExitFailure, fmt.Sprintf("run %s aborted: %s", report.RunID, report.Abort.Code))
	case report.Count(ir.OutcomeFailed) > 0:
		failure = NewExitError(ExitFailure, fmt.Sprintf("run %s: %d node(s) failed", report.RunID, report.Count(ir.OutcomeFailed)))
	}

	if formatter.IsJSON() {
		resp := CLIResponse{Status: "ok", Data: report}
		if report.Aborted() {
			resp.Status = "error"
			resp.Error = &CLIError{Code: report.Abort.Code, Message: report.Abort.Message, Details: report.Abort.Details}
		}
		if err := formatter.Response(resp); err != nil {
			return err
		}
		return failure
	}

	writeReportText(formatter.Writer, report)
	return failure
}

func writeReportText(w io.Writer, report *ir.ExecutionReport) {
	fmt.Fprintf(w, "Run %s: %s %q", report.RunID, report.RootKind, report.RootEntityID)
	if report.ProjectTypeID != "" {
		fmt.Fprintf(w, " (project type %s)", report.ProjectTypeID)
	}
	fmt.Fprintln(w)

	for _, n := range report.Nodes {
		switch n.Outcome {
		case ir.OutcomeSatisfied:
			fmt.Fprintf(w, "  ✓ %s %s record %s\n", n.NodeID, n.Kind, shortID(n.RecordID))
		case ir.OutcomeSkipped:
			fmt.Fprintf(w, "  - %s %s skipped: %s\n", n.NodeID, n.Kind, n.Reason)
		default:
			fmt.Fprintf(w, "  ✗ %s %s failed: %s\n", n.NodeID, n.Kind, n.Reason)
		}
	}

	if report.Aborted() {
		fmt.Fprintf(w, "Aborted [%s]: %s\n", report.Abort.Code, report.Abort.Message)
		return
	}
	fmt.Fprintf(w, "%d satisfied, %d skipped, %d failed\n",
		report.Count(ir.OutcomeSatisfied), report.Count(ir.OutcomeSkipped), report.Count(ir.OutcomeFailed))
}

// shortID abbreviates content-addressed ids for text output.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
