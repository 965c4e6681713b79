package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/procflow/internal/ir"
)

// RecordsOptions holds flags for the records command.
type RecordsOptions struct {
	*RootOptions
	Database string
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "records <root-id>",
		Short: "List the records generated for a root entity",
		Long: `List every record the engine generated for a root entity, in creation
order, with its origin node, revision and payload.

Example:
  procflow records --db ./procflow.db P-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runRecords(opts *RecordsOptions, rootID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts.database(opts.Database))
	if err != nil {
		return err
	}
	defer closeStore(st)

	records, err := st.ListRecordsByRoot(commandContext(cmd), rootID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list records", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(records)
	}

	if len(records) == 0 {
		fmt.Fprintf(formatter.Writer, "No records for %q.\n", rootID)
		return nil
	}
	for _, rec := range records {
		payload, err := ir.MarshalCanonical(rec.Payload)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode payload", err)
		}
		fmt.Fprintf(formatter.Writer, "%s %s node=%s rev=%d\n  %s\n",
			shortID(rec.ID), rec.Kind, rec.OriginNodeID, rec.Revision, payload)
	}
	return nil
}
