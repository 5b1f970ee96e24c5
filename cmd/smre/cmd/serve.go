package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smre/internal/mcp"
	"github.com/Aman-CERP/smre/internal/telemetry"
)

const metricsShutdownTimeout = 5 * time.Second

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	metricsAddr string
	backend     string
	noStore     bool
	watch       bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
search_moments and search_stats tools.

stdout carries JSON-RPC only; logs go to ~/.smre/logs/. With
--metrics-addr, Prometheus metrics are served on /metrics. With --watch,
the index and corpus are reloaded whenever they are rebuilt.`,
		Example: `  smre serve
  smre serve --metrics-addr :9090
  smre serve --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Listen address for Prometheus /metrics (disabled when empty)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Backend: local, remote (default: from config)")
	cmd.Flags().BoolVar(&opts.noStore, "no-telemetry-store", false, "Keep query statistics in memory only")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the index and corpus when they change on disk")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	qlog, closeStore := openQueryLog(ctx, opts.noStore, logger)
	defer func() {
		if err := qlog.Close(); err != nil {
			logger.Warn("query_log_flush_failed", slog.String("error", err.Error()))
		}
		closeStore()
	}()

	cfg, err = withBackend(cfg, opts.backend)
	if err != nil {
		return err
	}
	sess, err := openBackend(ctx, cfg, metrics, qlog, logger)
	if err != nil {
		return err
	}
	rl := newReloader(cfg, sess, metrics, qlog, logger)
	defer func() { _ = rl.Close() }()

	if opts.watch {
		go func() {
			if err := rl.watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watch_failed", slog.String("error", err.Error()))
			}
		}()
	}

	if opts.metricsAddr != "" {
		shutdown, err := serveMetrics(opts.metricsAddr, metrics, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	server, err := mcp.NewServer(rl.backend, mcp.Options{
		DefaultK: cfg.TopK,
		QueryLog: qlog,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// openQueryLog returns a query log persisted to the telemetry database,
// or an in-memory one when the database cannot be opened. The returned
// func closes the database after the log has been flushed.
func openQueryLog(ctx context.Context, memoryOnly bool, logger *slog.Logger) (*telemetry.QueryLog, func()) {
	cfg := telemetry.DefaultQueryLogConfig()
	if memoryOnly {
		return telemetry.NewQueryLog(nil, cfg), func() {}
	}
	path := telemetry.DefaultStorePath()
	st, err := telemetry.OpenSQLiteStore(ctx, path)
	if err != nil {
		logger.Warn("telemetry_store_unavailable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return telemetry.NewQueryLog(nil, cfg), func() {}
	}
	return telemetry.NewQueryLog(st, cfg), func() { _ = st.Close() }
}

// serveMetrics starts the /metrics listener and returns its shutdown func.
func serveMetrics(addr string, metrics *telemetry.Metrics, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", slog.String("error", err.Error()))
		}
	}()
	logger.Info("metrics_server_started", slog.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
