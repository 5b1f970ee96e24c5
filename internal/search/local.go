package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/embed"
	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/store"
)

// ErrNilDependency is returned when a required collaborator is nil.
var ErrNilDependency = errors.New("nil dependency")

// LocalFusion ranks the in-memory corpus by fused BM25 and vector scores.
// The indices and the corpus are read-only, so one LocalFusion serves
// concurrent queries. Scores are joined to records by identifier, so the
// corpus may be a subset, superset or reordering of what was indexed.
type LocalFusion struct {
	corpus   *corpus.Corpus
	lexical  *store.LexicalIndex
	vectors  *store.VectorIndex
	embedder embed.Embedder
	opts     options
}

var _ Backend = (*LocalFusion)(nil)

// NewLocalFusion creates a local backend. vectors and embedder may be nil,
// in which case every query runs with the vector signal degraded.
func NewLocalFusion(c *corpus.Corpus, lexical *store.LexicalIndex, vectors *store.VectorIndex,
	embedder embed.Embedder, opts ...Option) (*LocalFusion, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: corpus", ErrNilDependency)
	}
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index", ErrNilDependency)
	}
	return &LocalFusion{
		corpus:   c,
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
		opts:     applyOptions(opts),
	}, nil
}

// Name implements Backend.
func (f *LocalFusion) Name() string { return BackendLocal }

// Weights returns the fusion weights in use.
func (f *LocalFusion) Weights() Weights { return f.opts.weights }

// Search implements Backend.
func (f *LocalFusion) Search(ctx context.Context, raw string, k int) (*ResultSet, error) {
	start := time.Now()
	rs, err := f.search(ctx, raw, k)
	f.opts.record(f.Name(), raw, rs, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	f.opts.logger.Info("search_complete",
		slog.String("backend", f.Name()),
		slog.Int("results", rs.Len()),
		slog.Bool("fallback", rs.FallbackApplied),
		slog.Bool("vector_degraded", rs.VectorDegraded),
		slog.Duration("duration", time.Since(start)))
	return rs, nil
}

func (f *LocalFusion) search(ctx context.Context, raw string, k int) (*ResultSet, error) {
	if k <= 0 {
		return nil, smerrors.ValidationError(fmt.Sprintf("k must be positive, got %d", k), nil)
	}

	q := f.opts.interpreter.Normalize(raw)
	filters := f.opts.interpreter.ExtractFilters(q)
	f.opts.logger.Debug("search_started",
		slog.String("query", q),
		slog.Any("years", filters.Years),
		slog.Any("stages", filters.Stages))

	n := f.corpus.Len()
	bm25Raw := make([]float64, n)
	embedRaw := make([]float64, n)
	var vecErr error

	// The two paths write disjoint slices and never fail the group.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scores := f.lexical.Score(store.Tokenize(q))
		for i := 0; i < n; i++ {
			bm25Raw[i] = scores[f.corpus.At(i).ID]
		}
		return nil
	})
	g.Go(func() error {
		vecErr = f.vectorScores(gctx, q, embedRaw)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, smerrors.New(smerrors.ErrCodeSearchFailed, "search cancelled", err)
	}

	rs := &ResultSet{Query: q, Backend: f.Name(), Filters: filters}
	if vecErr != nil {
		rs.VectorDegraded = true
		clear(embedRaw)
		f.opts.metrics.VectorPathDegraded()
		f.opts.logger.Warn("vector_path_degraded", smerrors.LogAttrs(vecErr)...)
	}

	bm25Norm := MinMax(bm25Raw)
	embedNorm := MinMax(embedRaw)
	w := f.opts.weights
	fused := make([]float64, n)
	for i := range fused {
		fused[i] = w.BM25*bm25Norm[i] + w.Embed*embedNorm[i]
	}

	candidates := make([]int, 0, n)
	if !filters.IsEmpty() {
		for i := 0; i < n; i++ {
			if Matches(f.corpus.At(i), filters) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			rs.FallbackApplied = true
			f.opts.metrics.FilterFallback()
			f.opts.logger.Warn("filter_no_match",
				smerrors.LogAttrs(smerrors.FilterNoMatchWarning(filters.Years, filters.Stages))...)
		}
	}
	if filters.IsEmpty() || rs.FallbackApplied {
		for i := 0; i < n; i++ {
			candidates = append(candidates, i)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return fused[candidates[a]] > fused[candidates[b]]
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	rs.Results = make([]Result, len(candidates))
	for r, i := range candidates {
		rs.Results[r] = Result{
			Moment: f.corpus.At(i),
			Score:  fused[i],
			Explain: Explain{
				BM25Raw:   bm25Raw[i],
				BM25Norm:  bm25Norm[i],
				EmbedRaw:  embedRaw[i],
				EmbedNorm: embedNorm[i],
			},
		}
	}
	return rs, nil
}

type embedResult struct {
	vec []float32
	err error
}

// vectorScores scatters query similarities into out by identifier. Any
// failure leaves out partially written; the caller zeroes it.
func (f *LocalFusion) vectorScores(ctx context.Context, q string, out []float64) error {
	if f.opts.weights.Embed == 0 {
		return nil
	}
	if f.vectors == nil || f.embedder == nil {
		return smerrors.EmbeddingUnavailableError("no vector index or embedder configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.embedTimeout)
	defer cancel()

	// the embedder may ignore ctx, so the deadline is enforced here too
	ch := make(chan embedResult, 1)
	go func() {
		vec, err := f.embedder.Embed(ctx, q)
		ch <- embedResult{vec: vec, err: err}
	}()

	var res embedResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		return smerrors.EmbeddingUnavailableError(
			fmt.Sprintf("query embedding exceeded %s", f.opts.embedTimeout), ctx.Err())
	}
	if res.err != nil {
		if smerrors.IsEmbeddingUnavailable(res.err) {
			return res.err
		}
		return smerrors.EmbeddingUnavailableError("query embedding failed", res.err)
	}

	hits, err := f.vectors.Search(res.vec, 0)
	if err != nil {
		return smerrors.EmbeddingUnavailableError("query vector does not fit the index", err).
			WithDetail("model", f.embedder.ModelName())
	}
	for _, h := range hits {
		if i, ok := f.corpus.Position(h.ID); ok {
			out[i] = float64(h.Similarity)
		}
	}
	return nil
}
