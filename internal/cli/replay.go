package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/procflow/internal/engine"
	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string

	// RunIDs overrides the run id generator (for testing).
	RunIDs engine.RunIDGenerator
}

// ReplayResult pairs the stored run with its replay.
type ReplayResult struct {
	PriorRunID string              `json:"prior_run_id"`
	Report     *ir.ExecutionReport `json:"report"`
	Changes    []OutcomeChange     `json:"changes"`
}

// OutcomeChange is a node whose outcome differs between the stored run and
// the replay.
type OutcomeChange struct {
	NodeID string     `json:"node_id"`
	Before ir.Outcome `json:"before,omitempty"`
	After  ir.Outcome `json:"after,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return newReplayCommand(&ReplayOptions{RootOptions: rootOpts})
}

func newReplayCommand(opts *ReplayOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Run a stored run's root snapshot again",
		Long: `Replay the root snapshot of a stored run against the graph currently
stored for its project type.

Records are found by origin and updated in place, so replaying a run that
failed with an unavailable store completes the missing records without
duplicating the others. The nodes whose outcome changed are listed.

Exit codes:
  0 - Replay completed with no failed node
  1 - Replay aborted or a node failed
  2 - Command error (unknown run id, database unavailable)

Examples:
  procflow replay --db ./procflow.db 01933b6e-7f1c-7d2a-9f00-000000000001
  procflow replay <run-id> --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runReplay(opts *ReplayOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts.database(opts.Database))
	if err != nil {
		return err
	}
	defer closeStore(st)
	ctx := commandContext(cmd)

	prior, err := st.ReadReport(ctx, runID)
	if store.IsNotFound(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run %q not found", runID), nil)
		return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read report", err)
	}

	var extra []engine.EngineOption
	if opts.RunIDs != nil {
		extra = append(extra, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng := newEngine(opts.RootOptions, st, extra...)

	report, err := eng.Replay(ctx, st, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := ReplayResult{
		PriorRunID: runID,
		Report:     report,
		Changes:    diffOutcomes(prior, report),
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
		return replayFailure(report)
	}

	fmt.Fprintf(formatter.Writer, "Replay of %s\n", runID)
	writeReportText(formatter.Writer, report)
	if len(result.Changes) == 0 {
		fmt.Fprintln(formatter.Writer, "No outcome changed.")
	}
	for _, c := range result.Changes {
		fmt.Fprintf(formatter.Writer, "  changed %s: %s -> %s\n", c.NodeID, orNone(c.Before), orNone(c.After))
	}
	return replayFailure(report)
}

func replayFailure(report *ir.ExecutionReport) error {
	if report.Aborted() {
		return NewExitError(ExitFailure, fmt.Sprintf("replay %s aborted: %s", report.RunID, report.Abort.Code))
	}
	if n := report.Count(ir.OutcomeFailed); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("replay %s: %d node(s) failed", report.RunID, n))
	}
	return nil
}

// diffOutcomes lists nodes whose outcome differs, in the replay's order
// followed by nodes only the prior run reached.
func diffOutcomes(prior, replay *ir.ExecutionReport) []OutcomeChange {
	changes := []OutcomeChange{}
	seen := make(map[string]bool, len(replay.Nodes))
	for _, n := range replay.Nodes {
		seen[n.NodeID] = true
		before, ok := prior.Outcome(n.NodeID)
		if !ok {
			changes = append(changes, OutcomeChange{NodeID: n.NodeID, After: n.Outcome})
			continue
		}
		if before.Outcome != n.Outcome {
			changes = append(changes, OutcomeChange{NodeID: n.NodeID, Before: before.Outcome, After: n.Outcome})
		}
	}
	for _, n := range prior.Nodes {
		if !seen[n.NodeID] {
			changes = append(changes, OutcomeChange{NodeID: n.NodeID, Before: n.Outcome})
		}
	}
	return changes
}

func orNone(o ir.Outcome) string {
	if o == "" {
		return "(none)"
	}
	return string(o)
}
