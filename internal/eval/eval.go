// Package eval measures retrieval quality offline with precision at k and
// mean reciprocal rank over a query set and its relevance judgments.
package eval

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/search"
)

// Query is one evaluation query.
type Query struct {
	ID   string
	Text string
}

// Qrels maps a query id to its set of relevant document ids.
type Qrels map[string]map[string]bool

// Row is the score of one query.
type Row struct {
	QueryID   string  `json:"qid"`
	Precision float64 `json:"precision_at_k"`
	MRR       float64 `json:"mrr"`
}

// Report holds per-query rows and their averages.
type Report struct {
	K            int     `json:"k"`
	Rows         []Row   `json:"rows"`
	AvgPrecision float64 `json:"avg_precision_at_k"`
	AvgMRR       float64 `json:"avg_mrr"`
}

// PrecisionAtK is the fraction of the first k ranked ids that are
// relevant. The denominator is always k.
func PrecisionAtK(ranked []string, relevant map[string]bool, k int) float64 {
	if k <= 0 {
		return 0
	}
	hits := 0
	for _, id := range ranked[:min(k, len(ranked))] {
		if relevant[id] {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// MRR is the reciprocal rank of the first relevant id, or 0.
func MRR(ranked []string, relevant map[string]bool) float64 {
	for i, id := range ranked {
		if relevant[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// Run searches every query with k results and scores it against qrels.
// Queries without judgments score 0.
func Run(ctx context.Context, backend search.Backend, queries []Query, qrels Qrels, k int) (*Report, error) {
	report := &Report{K: k, Rows: make([]Row, 0, len(queries))}
	for _, q := range queries {
		rs, err := backend.Search(ctx, q.Text, k)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.ID, err)
		}
		ranked := rs.IDs()
		rel := qrels[q.ID]
		report.Rows = append(report.Rows, Row{
			QueryID:   q.ID,
			Precision: PrecisionAtK(ranked, rel, k),
			MRR:       MRR(ranked, rel),
		})
	}

	if n := len(report.Rows); n > 0 {
		for _, r := range report.Rows {
			report.AvgPrecision += r.Precision
			report.AvgMRR += r.MRR
		}
		report.AvgPrecision /= float64(n)
		report.AvgMRR /= float64(n)
	}
	return report, nil
}

// ReadQueries reads a qid,query CSV.
func ReadQueries(r io.Reader) ([]Query, error) {
	rows, err := readColumns(r, "qid", "query")
	if err != nil {
		return nil, err
	}
	queries := make([]Query, len(rows))
	for i, row := range rows {
		queries[i] = Query{ID: row[0], Text: row[1]}
	}
	return queries, nil
}

// ReadQrels reads a qid,docid CSV.
func ReadQrels(r io.Reader) (Qrels, error) {
	rows, err := readColumns(r, "qid", "docid")
	if err != nil {
		return nil, err
	}
	qrels := make(Qrels)
	for _, row := range rows {
		if qrels[row[0]] == nil {
			qrels[row[0]] = make(map[string]bool)
		}
		qrels[row[0]][row[1]] = true
	}
	return qrels, nil
}

// LoadQueries reads the queries file at path.
func LoadQueries(path string) ([]Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queries: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadQueries(f)
}

// LoadQrels reads the relevance judgments file at path.
func LoadQrels(path string) (Qrels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open qrels: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadQrels(f)
}

// readColumns returns the named columns of every row, in the given order.
func readColumns(r io.Reader, names ...string) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, smerrors.ValidationError("evaluation file is empty", nil)
	}
	if err != nil {
		return nil, smerrors.ValidationError("failed to read evaluation header", err)
	}

	pos := make([]int, len(names))
	for i, name := range names {
		pos[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
				pos[i] = j
				break
			}
		}
		if pos[i] < 0 {
			return nil, smerrors.ValidationError(fmt.Sprintf("evaluation file is missing column %q", name), nil)
		}
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, smerrors.ValidationError("failed to parse evaluation file", err)
		}
		row := make([]string, len(names))
		for i, p := range pos {
			if p < len(rec) {
				row[i] = strings.TrimSpace(rec[p])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
