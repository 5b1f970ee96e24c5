package search

import (
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/smre/internal/config"
	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/embed"
	"github.com/Aman-CERP/smre/internal/index"
	"github.com/Aman-CERP/smre/internal/query"
	"github.com/Aman-CERP/smre/internal/remote"
	"github.com/Aman-CERP/smre/internal/telemetry"
)

// Deps are the collaborators New wires into a backend. Local fusion needs
// Corpus and Index; the remote path needs Remote. Embedder may be nil.
type Deps struct {
	Corpus      *corpus.Corpus
	Index       *index.Index
	Embedder    embed.Embedder
	Remote      remote.Searcher
	Interpreter query.Interpreter
	Metrics     *telemetry.Metrics
	QueryLog    *telemetry.QueryLog
	Logger      *slog.Logger
}

func (d Deps) hasLocal() bool {
	return d.Corpus != nil && d.Index != nil
}

// New selects the backend named by cfg once. With remote.fallback_local
// set and local deps available, remote failures fall back to local fusion.
func New(cfg *config.Config, deps Deps) (Backend, error) {
	opts := []Option{
		WithWeights(Weights{BM25: cfg.AlphaBM25(), Embed: cfg.BetaEmbed()}),
		WithEmbedTimeout(cfg.EmbeddingTimeout()),
		WithMetrics(deps.Metrics),
		WithQueryLog(deps.QueryLog),
		WithLogger(deps.Logger),
	}
	if deps.Interpreter != nil {
		opts = append(opts, WithInterpreter(deps.Interpreter))
	}

	if !cfg.IsRemote() {
		if !deps.hasLocal() {
			return nil, fmt.Errorf("%w: local backend needs a corpus and an index", ErrNilDependency)
		}
		local, err := NewLocalFusion(deps.Corpus, deps.Index.Lexical, deps.Index.Vectors, deps.Embedder, opts...)
		if err != nil {
			return nil, err
		}
		return local, nil
	}

	delegate, err := NewRemoteDelegate(deps.Remote, cfg.RemoteTimeout(), opts...)
	if err != nil {
		return nil, err
	}
	if !cfg.Remote.FallbackLocal {
		return delegate, nil
	}
	if !deps.hasLocal() {
		return nil, fmt.Errorf("%w: remote.fallback_local needs a corpus and an index", ErrNilDependency)
	}
	local, err := NewLocalFusion(deps.Corpus, deps.Index.Lexical, deps.Index.Vectors, deps.Embedder, opts...)
	if err != nil {
		return nil, err
	}
	return WithLocalFallback(delegate, local, deps.Logger), nil
}
