package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/procflow/internal/compiler"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
	Force    bool // store graphs that fail validation
}

// ImportedGraph is one stored graph version.
type ImportedGraph struct {
	File        string `json:"file"`
	ProjectType string `json:"project_type"`
	Nodes       int    `json:"nodes"`
	Hash        string `json:"hash"`
	Valid       bool   `json:"valid"`
}

// ImportResult holds the import result.
type ImportResult struct {
	Graphs []ImportedGraph `json:"graphs"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <graph-path>",
		Short: "Store process graphs in the database",
		Long: `Compile, validate and store CUE process graphs. Each graph replaces
the stored graph of its project type.

Graphs that fail validation are refused unless --force is given; a forced
invalid graph is stored, and every run against it aborts with
CONFIGURATION_INVALID until it is fixed.

Examples:
  procflow import --db ./procflow.db ./graphs
  procflow import ./graphs/residencial.cue --force`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "store graphs that fail validation")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	graphs, loadErrs := LoadGraphs(path, LoadModeFailFast)
	if len(loadErrs) > 0 {
		return outputLoadError(formatter, loadErrs[0])
	}

	validation := ValidationResult{Graphs: []GraphSummary{}}
	valid := make(map[string]bool, len(graphs))
	for _, lg := range graphs {
		errs := compiler.Validate(lg.Graph)
		valid[lg.Graph.ProjectTypeID] = len(errs) == 0
		for _, ve := range errs {
			validation.Errors = append(validation.Errors, issueFromValidation(lg, ve))
		}
	}
	if len(validation.Errors) > 0 && !opts.Force {
		return outputValidationErrors(formatter, validation)
	}

	st, err := openStore(opts.database(opts.Database))
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := commandContext(cmd)
	result := ImportResult{Graphs: make([]ImportedGraph, 0, len(graphs))}
	for _, lg := range graphs {
		hash, err := st.SaveGraph(ctx, lg.Graph)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to store %s", lg.Graph.ProjectTypeID), err)
		}
		slog.Info("graph imported",
			"project_type", lg.Graph.ProjectTypeID,
			"nodes", len(lg.Graph.Nodes),
			"graph_hash", hash,
			"valid", valid[lg.Graph.ProjectTypeID],
		)
		result.Graphs = append(result.Graphs, ImportedGraph{
			File:        lg.File,
			ProjectType: lg.Graph.ProjectTypeID,
			Nodes:       len(lg.Graph.Nodes),
			Hash:        hash,
			Valid:       valid[lg.Graph.ProjectTypeID],
		})
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	for _, g := range result.Graphs {
		mark := "✓"
		if !g.Valid {
			mark = "!"
		}
		fmt.Fprintf(formatter.Writer, "%s %s (%d nodes) %s\n", mark, g.ProjectType, g.Nodes, shortID(g.Hash))
	}
	fmt.Fprintf(formatter.Writer, "Imported %d graph(s)\n", len(result.Graphs))
	return nil
}
