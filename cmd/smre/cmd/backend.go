package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/smre/internal/config"
	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/embed"
	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/index"
	"github.com/Aman-CERP/smre/internal/query"
	"github.com/Aman-CERP/smre/internal/remote"
	"github.com/Aman-CERP/smre/internal/search"
	"github.com/Aman-CERP/smre/internal/telemetry"
)

// session holds the collaborators opened for one command invocation.
type session struct {
	backend search.Backend
	closers []io.Closer
}

// Close releases everything opened by openBackend.
func (r *session) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}

// withBackend returns a copy of cfg with the backend overridden when name
// is set. The copy is validated like a configured backend.
func withBackend(cfg *config.Config, name string) (*config.Config, error) {
	if strings.TrimSpace(name) == "" {
		return cfg, nil
	}
	c := *cfg
	c.Backend = name
	if err := c.Validate(); err != nil {
		return nil, smerrors.ValidationError(fmt.Sprintf("invalid --backend: %v", err), err)
	}
	return &c, nil
}

// openBackend loads what cfg.Backend needs and builds the search backend.
// Local fusion needs the corpus and index; the remote path opens the remote
// searcher, plus the local stack when remote.fallback_local is set.
func openBackend(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics,
	qlog *telemetry.QueryLog, logger *slog.Logger) (*session, error) {
	rt := &session{}
	deps := search.Deps{
		Interpreter: query.Heuristic{},
		Metrics:     metrics,
		QueryLog:    qlog,
		Logger:      logger,
	}

	if !cfg.IsRemote() || cfg.Remote.FallbackLocal {
		c, err := corpus.Load(ctx, cfg.Local.DataPath)
		if err != nil {
			return nil, err
		}
		idx, err := index.Open(cfg.Local.IndexDir)
		if err != nil {
			return nil, err
		}
		deps.Corpus, deps.Index = c, idx

		// a missing embedder degrades the vector path instead of failing
		embedder, err := embed.NewFromConfig(cfg)
		if err != nil {
			logger.Warn("embedder_unavailable", slog.String("error", err.Error()))
		} else {
			deps.Embedder = embedder
			rt.closers = append(rt.closers, embedder)
		}
	}

	if cfg.IsRemote() {
		searcher, err := remote.Open(cfg)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		if closer, ok := searcher.(io.Closer); ok {
			rt.closers = append(rt.closers, closer)
		}
		deps.Remote = searcher
	}

	backend, err := search.New(cfg, deps)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.backend = backend
	return rt, nil
}
