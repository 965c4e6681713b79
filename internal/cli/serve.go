package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/procflow/internal/config"
	"github.com/roach88/procflow/internal/engine"
	"github.com/roach88/procflow/internal/lock"
	"github.com/roach88/procflow/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the entity change feed over HTTP",
		Long: `Start the HTTP feed:

  POST /v1/entities/{kind}/{id}/changed   run the graph for a root change
  GET  /v1/reports/{runID}                read a stored report
  GET  /v1/roots/{id}/records             list a root's generated records
  GET  /healthz                           database health
  GET  /metrics                           Prometheus metrics (server.metrics)

Runs for the same root are serialized: through Redis when redis.addr is
configured (shared by every replica), otherwise in-process.

Examples:
  procflow serve --db ./procflow.db --addr :8080
  procflow serve --config ./procflow.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config()
	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	st, err := openStore(opts.database(opts.Database))
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	locker, closeLocker, err := newLocker(ctx, cfg.Redis)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up locking", err)
	}
	defer closeLocker()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng := newEngine(opts.RootOptions, st,
		engine.WithLocker(locker, cfg.Redis.LockTTL),
		engine.WithMetrics(engine.NewMetrics(reg)),
	)

	var serverOpts []server.Option
	if cfg.Server.Metrics {
		serverOpts = append(serverOpts, server.WithMetrics(reg))
	}
	srv := server.New(eng, st, serverOpts...)

	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	slog.Info("server stopped gracefully")
	return nil
}

// newLocker returns a Redis locker when an address is configured, otherwise
// an in-process one. The returned func releases the Redis client.
func newLocker(ctx context.Context, cfg config.Redis) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		slog.Info("using in-process root locks")
		return lock.NewLocal(), func() {}, nil
	}

	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}

	slog.Info("using redis root locks", "addr", cfg.Addr, "prefix", cfg.Prefix)
	return lock.NewRedis(client, cfg.Prefix), func() {
		if err := client.Close(); err != nil {
			slog.Warn("error closing redis client", "error", err)
		}
	}, nil
}
