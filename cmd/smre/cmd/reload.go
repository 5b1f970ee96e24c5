package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/Aman-CERP/smre/internal/config"
	"github.com/Aman-CERP/smre/internal/index"
	"github.com/Aman-CERP/smre/internal/search"
	"github.com/Aman-CERP/smre/internal/telemetry"
	"github.com/Aman-CERP/smre/internal/watcher"
)

// reloader owns the session behind a Swappable and replaces it when the
// files it was loaded from change.
type reloader struct {
	cfg     *config.Config
	metrics *telemetry.Metrics
	qlog    *telemetry.QueryLog
	logger  *slog.Logger

	backend *search.Swappable

	mu      sync.Mutex
	current *session
	closed  bool
}

func newReloader(cfg *config.Config, sess *session, metrics *telemetry.Metrics,
	qlog *telemetry.QueryLog, logger *slog.Logger) *reloader {
	return &reloader{
		cfg:     cfg,
		metrics: metrics,
		qlog:    qlog,
		logger:  logger,
		backend: search.NewSwappable(sess.backend),
		current: sess,
	}
}

// watchedFiles lists the files whose change triggers a reload. Remote-only
// configurations load nothing from disk and watch nothing.
func watchedFiles(cfg *config.Config) []string {
	if cfg.IsRemote() && !cfg.Remote.FallbackLocal {
		return nil
	}
	return []string{
		filepath.Join(cfg.Local.IndexDir, index.MetaFile),
		cfg.Local.DataPath,
	}
}

// reload opens a fresh session and swaps it in. On failure the current
// session keeps serving.
func (r *reloader) reload(ctx context.Context, changed []string) error {
	sess, err := openBackend(ctx, r.cfg, r.metrics, r.qlog, r.logger)
	if err != nil {
		r.logger.Error("index_reload_failed",
			slog.Any("changed", changed),
			slog.String("error", err.Error()))
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return sess.Close()
	}
	r.backend.Swap(sess.backend)
	old := r.current
	r.current = sess
	if err := old.Close(); err != nil {
		r.logger.Warn("session_close_failed", slog.String("error", err.Error()))
	}
	r.logger.Info("index_reloaded", slog.Any("changed", changed))
	return nil
}

// watch runs until ctx is done, reloading after each batch of changes.
func (r *reloader) watch(ctx context.Context) error {
	files := watchedFiles(r.cfg)
	if len(files) == 0 {
		r.logger.Warn("watch_unsupported", slog.String("backend", r.cfg.Backend))
		return nil
	}

	w, err := watcher.New(files, watcher.Options{Logger: r.logger})
	if err != nil {
		return err
	}
	go func() {
		for changed := range w.Changes() {
			_ = r.reload(ctx, changed)
		}
	}()
	r.logger.Info("watch_started", slog.Any("files", files))
	return w.Run(ctx)
}

// Close releases the current session.
func (r *reloader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.current.Close()
}
