// Package search implements the retrieval backends. LocalFusion scores the
// whole corpus with BM25 and dense-vector similarity, min-max normalizes
// each signal, fuses them with fixed weights and applies the filters mined
// from the query. RemoteDelegate forwards the query to a document-search
// service and post-filters its hits.
package search

import (
	"context"

	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/query"
)

// Backend names reported in result sets and metrics.
const (
	BackendLocal = "local"
)

// Backend runs one query and returns at most k ranked results.
type Backend interface {
	Search(ctx context.Context, q string, k int) (*ResultSet, error)
	Name() string
}

// Weights configures the relative importance of the lexical and vector
// signals. Both are non-negative; they need not sum to 1.
type Weights struct {
	BM25  float64 `json:"alpha_bm25"`
	Embed float64 `json:"beta_embed"`
}

// DefaultWeights weighs both signals equally.
func DefaultWeights() Weights {
	return Weights{BM25: 0.5, Embed: 0.5}
}

// Explain holds the component scores behind one fused score.
type Explain struct {
	BM25Raw   float64 `json:"bm25_raw"`
	BM25Norm  float64 `json:"bm25_norm"`
	EmbedRaw  float64 `json:"embed_raw"`
	EmbedNorm float64 `json:"embed_norm"`
	// BackendScore is the native score of a remote hit.
	BackendScore float64 `json:"backend_score,omitempty"`
}

// Result is one ranked moment.
type Result struct {
	Moment  corpus.Moment `json:"moment"`
	Score   float64       `json:"score"`
	Explain Explain       `json:"explain"`
}

// ResultSet is the ranked answer to one query, strictly ordered by
// descending score with ties in corpus order.
type ResultSet struct {
	Query   string          `json:"query"`
	Backend string          `json:"backend"`
	Results []Result        `json:"results"`
	Filters query.FilterSet `json:"filters"`
	// FallbackApplied is set when the filters matched nothing and the
	// unfiltered ranking was returned instead.
	FallbackApplied bool `json:"fallback_applied"`
	// VectorDegraded is set when the vector signal was unavailable and
	// contributed zero.
	VectorDegraded bool `json:"vector_degraded"`
}

// IDs returns the result identifiers in rank order.
func (rs *ResultSet) IDs() []string {
	ids := make([]string, len(rs.Results))
	for i, r := range rs.Results {
		ids[i] = r.Moment.ID
	}
	return ids
}

// Len returns the number of results.
func (rs *ResultSet) Len() int {
	return len(rs.Results)
}
