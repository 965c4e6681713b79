package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/procflow/internal/config"
	"github.com/roach88/procflow/internal/engine"
	"github.com/roach88/procflow/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config returns the loaded configuration, or the defaults when no command
// loaded one (subcommands built on their own in tests).
func (o *RootOptions) Config() *config.Config {
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	return o.cfg
}

// Limits returns the engine run bounds from the configuration.
func (o *RootOptions) Limits() engine.Limits {
	cfg := o.Config()
	return engine.Limits{MaxNodes: cfg.Limits.MaxNodes, MaxDepth: cfg.Limits.MaxDepth}
}

// database returns flagValue when set, otherwise the configured database.
func (o *RootOptions) database(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return o.Config().Database
}

// NewRootCommand creates the root command for the procflow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "procflow",
		Version: ir.Version,
		Short:   "procflow - process automation engine",
		Long: `procflow materializes business records from a per-project-type
process graph whenever a root entity changes.

Graphs are authored in CUE, imported into a SQLite store, and executed
from the CLI or the HTTP feed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading config", err)
			}
			opts.cfg = cfg
			return setupLogging(opts)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to procflow.yaml")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRecordsCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewKindsCommand(opts))

	return cmd
}

// setupLogging installs the process-wide slog handler. --verbose wins over
// the configured level.
func setupLogging(opts *RootOptions) error {
	level, err := opts.Config().Level()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
