package store

import (
	"fmt"
	"math"
	"sort"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

// lexicalBlobVersion is bumped when the blob layout changes.
const lexicalBlobVersion = 1

// Posting records how often a term occurs in one document.
type Posting struct {
	Doc int32
	TF  int32
}

// LexicalIndex is an immutable BM25 index. Build it once per corpus
// snapshot; a reindex replaces it wholesale.
type LexicalIndex struct {
	config    BM25Config
	ids       []string
	docLens   []int32
	avgDocLen float64
	postings  map[string][]Posting
	idf       map[string]float64
	gen       string
}

// lexicalBlob is the serialized form. Terms are sorted so equal corpora
// produce identical postings sections.
type lexicalBlob struct {
	Version    int
	Generation string
	K1         float64
	B          float64
	DocCount   int
	DocLens    []int32
	Terms      []string
	Postings   [][]Posting
}

// BuildLexical tokenizes every document and computes BM25 statistics.
// Identifiers must be unique.
func BuildLexical(docs []Document, cfg BM25Config) (*LexicalIndex, error) {
	ids := make([]string, len(docs))
	docLens := make([]int32, len(docs))
	postings := make(map[string][]Posting)
	seen := make(map[string]int, len(docs))

	var totalLen int64
	for i, doc := range docs {
		if first, dup := seen[doc.ID]; dup {
			return nil, smerrors.DuplicateIDError(doc.ID, first+1, i+1)
		}
		seen[doc.ID] = i
		ids[i] = doc.ID

		tokens := Tokenize(doc.Content)
		docLens[i] = int32(len(tokens))
		totalLen += int64(len(tokens))

		// count in first-occurrence order to keep builds deterministic
		counts := make(map[string]int32, len(tokens))
		order := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
		for _, t := range order {
			postings[t] = append(postings[t], Posting{Doc: int32(i), TF: counts[t]})
		}
	}

	idx := &LexicalIndex{
		config:   cfg,
		ids:      ids,
		docLens:  docLens,
		postings: postings,
	}
	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}
	idx.computeIDF()
	return idx, nil
}

// computeIDF uses the non-negative form ln(1 + (N - n + 0.5) / (n + 0.5)),
// so terms present in most documents still contribute a small positive weight.
func (idx *LexicalIndex) computeIDF() {
	n := float64(len(idx.ids))
	idx.idf = make(map[string]float64, len(idx.postings))
	for term, list := range idx.postings {
		df := float64(len(list))
		idx.idf[term] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}
}

// Score returns a BM25 score for every indexed document. Documents sharing
// no token with the query score 0 and are still present. Repeated query
// tokens contribute once per occurrence.
func (idx *LexicalIndex) Score(queryTokens []string) map[string]float64 {
	scores := make(map[string]float64, len(idx.ids))
	for _, id := range idx.ids {
		scores[id] = 0
	}

	for _, doc := range idx.accumulate(queryTokens) {
		scores[idx.ids[doc.pos]] = doc.score
	}
	return scores
}

type docScore struct {
	pos   int32
	score float64
}

// accumulate walks only the postings of the query terms.
func (idx *LexicalIndex) accumulate(queryTokens []string) []docScore {
	acc := make(map[int32]float64)
	var order []int32

	k1, b := idx.config.K1, idx.config.B
	for _, term := range queryTokens {
		list, ok := idx.postings[term]
		if !ok {
			continue
		}
		idf := idx.idf[term]
		for _, p := range list {
			tf := float64(p.TF)
			norm := 1.0
			if idx.avgDocLen > 0 {
				norm = 1 - b + b*float64(idx.docLens[p.Doc])/idx.avgDocLen
			}
			if _, seen := acc[p.Doc]; !seen {
				order = append(order, p.Doc)
			}
			acc[p.Doc] += idf * tf * (k1 + 1) / (tf + k1*norm)
		}
	}

	out := make([]docScore, len(order))
	for i, doc := range order {
		out[i] = docScore{pos: doc, score: acc[doc]}
	}
	return out
}

// Len returns the number of indexed documents.
func (idx *LexicalIndex) Len() int {
	return len(idx.ids)
}

// IDs returns the identifiers in build order.
func (idx *LexicalIndex) IDs() []string {
	out := make([]string, len(idx.ids))
	copy(out, idx.ids)
	return out
}

// Config returns the BM25 constants the index was built with.
func (idx *LexicalIndex) Config() BM25Config {
	return idx.config
}

// SetGeneration tags the index with the build it belongs to. Save stores
// the tag so a loader can tell blobs of different builds apart.
func (idx *LexicalIndex) SetGeneration(gen string) { idx.gen = gen }

// Generation returns the build tag set by SetGeneration or read by
// LoadLexical.
func (idx *LexicalIndex) Generation() string { return idx.gen }

// VocabularySize returns the number of distinct terms.
func (idx *LexicalIndex) VocabularySize() int {
	return len(idx.postings)
}

// Save writes the index blob. The identifier list is stored separately by
// the caller and passed back to LoadLexical.
func (idx *LexicalIndex) Save(path string) error {
	terms := make([]string, 0, len(idx.postings))
	for t := range idx.postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	lists := make([][]Posting, len(terms))
	for i, t := range terms {
		lists[i] = idx.postings[t]
	}

	blob := lexicalBlob{
		Version:    lexicalBlobVersion,
		Generation: idx.gen,
		K1:         idx.config.K1,
		B:          idx.config.B,
		DocCount:   len(idx.ids),
		DocLens:    idx.docLens,
		Terms:      terms,
		Postings:   lists,
	}
	if err := saveGob(path, &blob); err != nil {
		return fmt.Errorf("failed to save lexical index: %w", err)
	}
	return nil
}

// LoadLexical reads a blob written by Save and binds it to ids.
// Any mismatch between ids and the blob is an IndexCorruptError.
func LoadLexical(path string, ids []string) (*LexicalIndex, error) {
	var blob lexicalBlob
	if err := loadGob(path, &blob); err != nil {
		return nil, smerrors.IndexCorruptError("failed to read lexical index", err).WithDetail("path", path)
	}

	if blob.Version != lexicalBlobVersion {
		return nil, smerrors.IndexCorruptError(
			fmt.Sprintf("lexical index version %d, expected %d", blob.Version, lexicalBlobVersion), nil)
	}
	if blob.DocCount != len(ids) {
		return nil, smerrors.IndexCorruptError(
			fmt.Sprintf("lexical index holds %d documents but %d identifiers were stored", blob.DocCount, len(ids)), nil).
			WithDetail("path", path)
	}
	if len(blob.DocLens) != blob.DocCount || len(blob.Terms) != len(blob.Postings) {
		return nil, smerrors.IndexCorruptError("lexical index blob is inconsistent", nil).WithDetail("path", path)
	}

	postings := make(map[string][]Posting, len(blob.Terms))
	var totalLen int64
	for _, l := range blob.DocLens {
		totalLen += int64(l)
	}
	for i, term := range blob.Terms {
		for _, p := range blob.Postings[i] {
			if p.Doc < 0 || int(p.Doc) >= blob.DocCount {
				return nil, smerrors.IndexCorruptError(
					fmt.Sprintf("posting for %q references document %d of %d", term, p.Doc, blob.DocCount), nil)
			}
		}
		postings[term] = blob.Postings[i]
	}

	owned := make([]string, len(ids))
	copy(owned, ids)

	idx := &LexicalIndex{
		config:   BM25Config{K1: blob.K1, B: blob.B},
		ids:      owned,
		docLens:  blob.DocLens,
		postings: postings,
		gen:      blob.Generation,
	}
	if blob.DocCount > 0 {
		idx.avgDocLen = float64(totalLen) / float64(blob.DocCount)
	}
	idx.computeIDF()
	return idx, nil
}
