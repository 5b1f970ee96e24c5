// Package remote adapts document-search services to a common Searcher
// contract. Two implementations exist: an Elasticsearch REST client and an
// embedded on-disk bleve index. Both rank with the same field boosts and
// return backend-native scores; no normalization against local fusion
// scores is attempted.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/smre/internal/config"
	"github.com/Aman-CERP/smre/internal/corpus"
)

// BleveScheme selects the embedded bleve index in a remote URL.
const BleveScheme = "bleve://"

// Hit is one ranked row returned by a backend.
type Hit struct {
	ID     string
	Score  float64
	Moment corpus.Moment
}

// Searcher runs a full-text query against a document index.
type Searcher interface {
	Search(ctx context.Context, query string, size int) ([]Hit, error)
	Name() string
}

// FieldBoost weights one field in the full-text query.
type FieldBoost struct {
	Field string
	Boost float64
}

// SearchFields are the fields queried by every backend, with their boosts.
var SearchFields = []FieldBoost{
	{Field: "commentary", Boost: 2},
	{Field: "summary", Boost: 1.5},
	{Field: "text", Boost: 1},
}

// elasticFields renders SearchFields in multi_match syntax.
func elasticFields() []string {
	out := make([]string, len(SearchFields))
	for i, f := range SearchFields {
		if f.Boost == 1 {
			out[i] = f.Field
			continue
		}
		out[i] = fmt.Sprintf("%s^%g", f.Field, f.Boost)
	}
	return out
}

// Open returns the Searcher named by cfg.Remote.URL: a bleve index for
// bleve://<dir>, Elasticsearch otherwise.
func Open(cfg *config.Config) (Searcher, error) {
	if dir, ok := strings.CutPrefix(cfg.Remote.URL, BleveScheme); ok {
		b, err := OpenBleve(dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	c, err := NewElasticClient(ElasticConfig{
		URL:        cfg.Remote.URL,
		Index:      cfg.IndexName,
		Timeout:    cfg.RemoteTimeout(),
		MaxRetries: cfg.RemoteMaxRetries(),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultRequestTimeout bounds a request when neither the caller nor the
// configuration sets one.
const DefaultRequestTimeout = 10 * time.Second
