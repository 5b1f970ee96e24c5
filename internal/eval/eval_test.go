package eval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smre/internal/corpus"
	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/search"
)

func rel(ids ...string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func TestPrecisionAtK(t *testing.T) {
	tests := []struct {
		name   string
		ranked []string
		rel    map[string]bool
		k      int
		want   float64
	}{
		{"all relevant", []string{"a", "b"}, rel("a", "b"), 2, 1},
		{"half", []string{"a", "x", "b", "y"}, rel("a", "b"), 4, 0.5},
		{"only first k count", []string{"x", "a"}, rel("a"), 1, 0},
		{"short list still divides by k", []string{"a"}, rel("a"), 5, 0.2},
		{"no judgments", []string{"a"}, nil, 5, 0},
		{"zero k", []string{"a"}, rel("a"), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PrecisionAtK(tt.ranked, tt.rel, tt.k), 1e-12)
		})
	}
}

func TestMRR(t *testing.T) {
	tests := []struct {
		name   string
		ranked []string
		rel    map[string]bool
		want   float64
	}{
		{"first", []string{"a", "b"}, rel("a"), 1},
		{"third", []string{"x", "y", "a"}, rel("a", "z"), 1.0 / 3},
		{"none", []string{"x", "y"}, rel("a"), 0},
		{"empty", nil, rel("a"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MRR(tt.ranked, tt.rel), 1e-12)
		})
	}
}

type fixedBackend struct {
	byQuery map[string][]string
	fail    string
}

func (f *fixedBackend) Name() string { return "fixed" }

func (f *fixedBackend) Search(_ context.Context, q string, k int) (*search.ResultSet, error) {
	if q == f.fail {
		return nil, errors.New("backend down")
	}
	rs := &search.ResultSet{Query: q}
	for _, id := range f.byQuery[q] {
		if len(rs.Results) == k {
			break
		}
		rs.Results = append(rs.Results, search.Result{Moment: corpus.Moment{ID: id}})
	}
	return rs, nil
}

func TestRun(t *testing.T) {
	// Given
	backend := &fixedBackend{byQuery: map[string][]string{
		"federer final": {"a", "x"},
		"nadal":         {"x", "b"},
	}}
	queries := []Query{{ID: "q1", Text: "federer final"}, {ID: "q2", Text: "nadal"}}
	qrels := Qrels{"q1": rel("a"), "q2": rel("b")}

	// When
	report, err := Run(context.Background(), backend, queries, qrels, 2)

	// Then
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, Row{QueryID: "q1", Precision: 0.5, MRR: 1}, report.Rows[0])
	assert.Equal(t, Row{QueryID: "q2", Precision: 0.5, MRR: 0.5}, report.Rows[1])
	assert.InDelta(t, 0.5, report.AvgPrecision, 1e-12)
	assert.InDelta(t, 0.75, report.AvgMRR, 1e-12)
}

func TestRun_PropagatesBackendError(t *testing.T) {
	backend := &fixedBackend{fail: "boom"}

	_, err := Run(context.Background(), backend, []Query{{ID: "q9", Text: "boom"}}, Qrels{}, 5)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "q9")
}

func TestReadQueriesAndQrels(t *testing.T) {
	queries, err := ReadQueries(strings.NewReader("qid,query\nq1,federer final 2012\nq2,\"nadal, forehand\"\n"))
	require.NoError(t, err)
	assert.Equal(t, []Query{{ID: "q1", Text: "federer final 2012"}, {ID: "q2", Text: "nadal, forehand"}}, queries)

	qrels, err := ReadQrels(strings.NewReader("QID,DocID,grade\nq1,a,1\nq1,b,1\nq2,c,1\n"))
	require.NoError(t, err)
	assert.Equal(t, Qrels{"q1": rel("a", "b"), "q2": rel("c")}, qrels)
}

func TestReadQueries_Invalid(t *testing.T) {
	_, err := ReadQueries(strings.NewReader(""))
	assert.Equal(t, smerrors.ErrCodeInvalidInput, smerrors.GetCode(err))

	_, err = ReadQueries(strings.NewReader("id,text\n1,x\n"))
	assert.Equal(t, smerrors.ErrCodeInvalidInput, smerrors.GetCode(err))
}
