package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	Root     string // list every report of this root instead
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Show stored execution reports",
		Long: `Show the stored execution report of a run, or with --root every report
of a root entity, oldest first.

Examples:
  procflow report --db ./procflow.db 01933b6e-7f1c-7d2a-9f00-000000000001
  procflow report --root P-1 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Root, "root", "", "list the reports of a root entity")

	return cmd
}

func runReport(opts *ReportOptions, args []string, cmd *cobra.Command) error {
	if (len(args) == 1) == (opts.Root != "") {
		return NewExitError(ExitCommandError, "give either a run id or --root")
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts.database(opts.Database))
	if err != nil {
		return err
	}
	defer closeStore(st)
	ctx := commandContext(cmd)

	if opts.Root != "" {
		reports, err := st.ListReports(ctx, opts.Root)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list reports", err)
		}
		if formatter.IsJSON() {
			return formatter.Success(reports)
		}
		if len(reports) == 0 {
			fmt.Fprintf(formatter.Writer, "No reports for %q.\n", opts.Root)
		}
		for _, r := range reports {
			writeReportText(formatter.Writer, r)
		}
		return nil
	}

	report, err := st.ReadReport(ctx, args[0])
	if store.IsNotFound(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run %q not found", args[0]), nil)
		return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read report", err)
	}
	return showReport(formatter, report)
}

// showReport prints a stored report; unlike run, a stored failure is not a
// command failure.
func showReport(formatter *OutputFormatter, report *ir.ExecutionReport) error {
	if formatter.IsJSON() {
		return formatter.Success(report)
	}
	writeReportText(formatter.Writer, report)
	return nil
}
