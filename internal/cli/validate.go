package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/procflow/internal/compiler"
)

// GraphSummary describes one graph that compiled.
type GraphSummary struct {
	File        string `json:"file"`
	ProjectType string `json:"project_type"`
	Nodes       int    `json:"nodes"`
}

// Issue is one load or validation problem.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
	ProjectType string `json:"project_type,omitempty"`
	NodeID      string `json:"node_id,omitempty"`
	Field       string `json:"field,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Graphs []GraphSummary `json:"graphs"`
	Errors []Issue        `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph-path>",
		Short: "Compile and check process graphs",
		Long: `Compile CUE process graphs and run every graph check against the
entity registry: trigger variables and operators, operand shapes, produced
kinds, parent links, cycles and root kinds.

<graph-path> is a .cue file or a directory searched recursively.

Exit codes:
  0 - All graphs valid
  1 - One or more graphs failed to compile or validate
  2 - Command error (path not found, no files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, err := validatePath(path, formatter)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

// validatePath loads every graph under path and validates the ones that
// compiled. The error is non-nil only when no file could be examined.
func validatePath(path string, formatter *OutputFormatter) (ValidationResult, error) {
	result := ValidationResult{Graphs: []GraphSummary{}}

	graphs, loadErrs := LoadGraphs(path, LoadModeCollectAll)
	if len(graphs) == 0 && len(loadErrs) == 1 {
		var loadErr *LoadError
		if errors.As(loadErrs[0], &loadErr) && loadErr.Code != ErrCodeCompileFailed {
			return result, loadErr
		}
	}
	formatter.VerboseLog("Compiled %d graph file(s) from %s", len(graphs), path)

	for _, err := range loadErrs {
		result.Errors = append(result.Errors, issueFromLoadError(err))
	}

	for _, lg := range graphs {
		formatter.VerboseLog("Validating project type: %s (%d nodes)", lg.Graph.ProjectTypeID, len(lg.Graph.Nodes))
		result.Graphs = append(result.Graphs, GraphSummary{
			File:        lg.File,
			ProjectType: lg.Graph.ProjectTypeID,
			Nodes:       len(lg.Graph.Nodes),
		})
		for _, ve := range compiler.Validate(lg.Graph) {
			result.Errors = append(result.Errors, issueFromValidation(lg, ve))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

func issueFromLoadError(err error) Issue {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return Issue{Code: ErrCodeGeneric, Message: err.Error()}
	}
	issue := Issue{Code: loadErr.Code, Message: loadErr.Message, File: loadErr.File}
	if loadErr.Pos.IsValid() {
		issue.Line = loadErr.Pos.Line()
	}
	return issue
}

func issueFromValidation(lg LoadedGraph, ve compiler.ValidationError) Issue {
	return Issue{
		Code:        ve.Code,
		Message:     ve.Message,
		File:        lg.File,
		ProjectType: lg.Graph.ProjectTypeID,
		NodeID:      ve.NodeID,
		Field:       ve.Field,
	}
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	for _, g := range result.Graphs {
		fmt.Fprintf(formatter.Writer, "✓ %s (%d nodes) %s\n", g.ProjectType, g.Nodes, g.File)
	}
	fmt.Fprintln(formatter.Writer, "✓ All graphs valid")
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.IsJSON() {
		first := result.Errors[0]
		if err := formatter.Response(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: first.Code, Message: first.Message},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range result.Errors {
		fmt.Fprintln(formatter.Writer, issueLocation(issue))
		if issue.NodeID != "" {
			fmt.Fprintf(formatter.Writer, "  %s: node %q: %s\n\n", issue.Code, issue.NodeID, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
		}
	}
	return failure
}

func issueLocation(issue Issue) string {
	switch {
	case issue.Line > 0:
		return fmt.Sprintf("%s line %d", issue.File, issue.Line)
	case issue.ProjectType != "":
		return fmt.Sprintf("%s (%s)", issue.File, issue.ProjectType)
	default:
		return issue.File
	}
}
