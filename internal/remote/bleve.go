package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/smre/internal/corpus"
	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

// DefaultBleveBatchSize is the number of documents per bleve batch.
const DefaultBleveBatchSize = 1000

// BleveBackend is an embedded on-disk document index queried with the same
// field boosts as the Elasticsearch backend.
type BleveBackend struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ Searcher = (*BleveBackend)(nil)

func newBleveMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	for _, name := range corpus.Columns {
		var fm *mapping.FieldMapping
		if keywordFields[name] || integerFields[name] {
			fm = bleve.NewKeywordFieldMapping()
			fm.Analyzer = keyword.Name
		} else {
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = standard.Name
		}
		fm.Store = true
		doc.AddFieldMappingsAt(name, fm)
	}
	im.DefaultMapping = doc
	return im
}

// BuildBleve indexes every record of c into a fresh index at dir, replacing
// whatever was there. An empty dir builds an in-memory index.
func BuildBleve(ctx context.Context, dir string, c *corpus.Corpus, batchSize int) (*BleveBackend, error) {
	if batchSize <= 0 {
		batchSize = DefaultBleveBatchSize
	}

	var (
		idx bleve.Index
		err error
	)
	if dir == "" {
		idx, err = bleve.NewMemOnly(newBleveMapping())
	} else {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", dir, err)
		}
		idx, err = bleve.New(dir, newBleveMapping())
	}
	if err != nil {
		return nil, smerrors.New(smerrors.ErrCodeIndexBuild, "failed to create bleve index", err)
	}

	for start := 0; start < c.Len(); start += batchSize {
		if err := ctx.Err(); err != nil {
			_ = idx.Close()
			return nil, err
		}
		end := min(start+batchSize, c.Len())
		batch := idx.NewBatch()
		for i := start; i < end; i++ {
			m := c.At(i)
			if err := batch.Index(m.ID, bleveDocument(m)); err != nil {
				_ = idx.Close()
				return nil, fmt.Errorf("failed to index document %s: %w", m.ID, err)
			}
		}
		if err := idx.Batch(batch); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to execute batch: %w", err)
		}
	}

	return &BleveBackend{index: idx, path: dir}, nil
}

// OpenBleve opens an index written by BuildBleve.
func OpenBleve(dir string) (*BleveBackend, error) {
	idx, err := bleve.Open(dir)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, smerrors.IndexMissingError(dir, err)
	}
	if err != nil {
		return nil, smerrors.IndexCorruptError("failed to open bleve index", err).WithDetail("path", dir)
	}
	return &BleveBackend{index: idx, path: dir}, nil
}

func bleveDocument(m corpus.Moment) map[string]any {
	doc := make(map[string]any, len(corpus.Columns))
	for _, name := range corpus.Columns {
		doc[name] = m.Field(name)
	}
	return doc
}

// Name implements Searcher.
func (b *BleveBackend) Name() string { return "bleve" }

// Search runs a disjunction of boosted match queries over SearchFields.
func (b *BleveBackend) Search(ctx context.Context, q string, size int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, smerrors.RemoteBackendError("bleve index is closed", nil)
	}
	if strings.TrimSpace(q) == "" || size <= 0 {
		return []Hit{}, nil
	}

	clauses := make([]query.Query, 0, len(SearchFields))
	for _, f := range SearchFields {
		mq := bleve.NewMatchQuery(q)
		mq.SetField(f.Field)
		mq.SetBoost(f.Boost)
		clauses = append(clauses, mq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(clauses...), size, 0, false)
	req.Fields = []string{"*"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, smerrors.RemoteBackendError("bleve search failed", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		m := momentFromSource(h.Fields)
		if m.ID == "" {
			m.ID = h.ID
		}
		hits = append(hits, Hit{ID: m.ID, Score: h.Score, Moment: m})
	}
	return hits, nil
}

// DocCount returns the number of indexed documents.
func (b *BleveBackend) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
