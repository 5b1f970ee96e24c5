package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/remote"
)

// OverFetch is the factor by which remote requests exceed k, absorbing
// hits dropped by post-filtering.
const OverFetch = 2

// RemoteDelegate forwards queries to a document-search service. Filters
// are applied to the returned hits only; there is no fallback when they
// remove everything. Scores keep the backend's native scale.
type RemoteDelegate struct {
	searcher remote.Searcher
	timeout  time.Duration
	opts     options
}

var _ Backend = (*RemoteDelegate)(nil)

// NewRemoteDelegate wraps searcher. timeout bounds each call; zero uses
// remote.DefaultRequestTimeout.
func NewRemoteDelegate(searcher remote.Searcher, timeout time.Duration, opts ...Option) (*RemoteDelegate, error) {
	if searcher == nil {
		return nil, fmt.Errorf("%w: remote searcher", ErrNilDependency)
	}
	if timeout <= 0 {
		timeout = remote.DefaultRequestTimeout
	}
	return &RemoteDelegate{searcher: searcher, timeout: timeout, opts: applyOptions(opts)}, nil
}

// Name implements Backend.
func (d *RemoteDelegate) Name() string { return "remote:" + d.searcher.Name() }

// Search implements Backend.
func (d *RemoteDelegate) Search(ctx context.Context, raw string, k int) (*ResultSet, error) {
	start := time.Now()
	rs, err := d.search(ctx, raw, k)
	d.opts.record(d.Name(), raw, rs, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	d.opts.logger.Info("search_complete",
		slog.String("backend", d.Name()),
		slog.Int("results", rs.Len()),
		slog.Duration("duration", time.Since(start)))
	return rs, nil
}

func (d *RemoteDelegate) search(ctx context.Context, raw string, k int) (*ResultSet, error) {
	if k <= 0 {
		return nil, smerrors.ValidationError(fmt.Sprintf("k must be positive, got %d", k), nil)
	}

	q := d.opts.interpreter.Normalize(raw)
	filters := d.opts.interpreter.ExtractFilters(q)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	hits, err := d.searcher.Search(ctx, q, OverFetch*k)
	if err != nil {
		d.opts.metrics.RemoteError()
		if !smerrors.IsRemoteBackend(err) {
			err = smerrors.RemoteBackendError(d.searcher.Name()+" search failed", err)
		}
		d.opts.logger.Warn("remote_search_failed", smerrors.LogAttrs(err)...)
		return nil, err
	}

	rs := &ResultSet{Query: q, Backend: d.Name(), Filters: filters}
	for _, h := range hits {
		if len(rs.Results) == k {
			break
		}
		if !filters.IsEmpty() && !Matches(h.Moment, filters) {
			continue
		}
		rs.Results = append(rs.Results, Result{
			Moment:  h.Moment,
			Score:   h.Score,
			Explain: Explain{BackendScore: h.Score},
		})
	}
	return rs, nil
}

// FallbackBackend runs local fusion when the primary backend fails with a
// remote error. Other errors are returned unchanged.
type FallbackBackend struct {
	primary  Backend
	fallback Backend
	logger   *slog.Logger
}

var _ Backend = (*FallbackBackend)(nil)

// WithLocalFallback wraps primary so that remote failures are answered by
// local.
func WithLocalFallback(primary Backend, local Backend, logger *slog.Logger) *FallbackBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackBackend{primary: primary, fallback: local, logger: logger}
}

// Name implements Backend.
func (b *FallbackBackend) Name() string { return b.primary.Name() }

// Search implements Backend.
func (b *FallbackBackend) Search(ctx context.Context, q string, k int) (*ResultSet, error) {
	rs, err := b.primary.Search(ctx, q, k)
	if err == nil || !smerrors.IsRemoteBackend(err) {
		return rs, err
	}
	b.logger.Warn("remote_fallback_local",
		slog.String("primary", b.primary.Name()),
		slog.String("error", err.Error()))
	return b.fallback.Search(ctx, q, k)
}
