package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/registry"
)

// NewKindsCommand creates the kinds command.
func NewKindsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kinds [kind]",
		Short: "List entity kinds and their trigger variables",
		Long: `List the entity kinds known to the engine: which kinds start runs,
which can be produced by a node, which accept templates, and the trigger
variables and operators each kind exposes.

Examples:
  procflow kinds
  procflow kinds Revenue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKinds(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runKinds(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	specs := registry.Specs()
	if len(args) == 1 {
		spec, err := registry.SpecFor(ir.EntityKind(args[0]))
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
		}
		specs = []registry.EntityTypeSpec{spec}
	}

	if formatter.IsJSON() {
		return formatter.Success(specs)
	}

	w := formatter.Writer
	for i, spec := range specs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s\n", spec.Kind, spec.Description)
		fmt.Fprintf(w, "  root=%t returnable=%t customizable=%t\n", spec.IsRoot(), spec.Returnable, spec.Customizable)
		if spec.IsRoot() {
			fmt.Fprintf(w, "  project type field: %s\n", spec.ProjectTypeField)
		}
		if len(spec.GeneratableKinds) > 0 {
			fmt.Fprintf(w, "  generates: %s\n", joinKinds(spec.GeneratableKinds))
		}
		for _, v := range spec.TriggerVariables {
			fmt.Fprintf(w, "  %-16s %-7s %s\n", v.Name, v.Type, joinOperators(v.Operators))
		}
	}
	return nil
}

func joinKinds(kinds []ir.EntityKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

func joinOperators(ops []ir.OperatorKind) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = string(op)
	}
	return strings.Join(parts, " ")
}
