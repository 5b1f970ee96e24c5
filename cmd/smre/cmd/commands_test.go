package cmd

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smre/internal/config"
	"github.com/Aman-CERP/smre/internal/corpus"
	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/eval"
	"github.com/Aman-CERP/smre/internal/search"
)

func TestPrepareCmd_WritesDerivedCorpus(t *testing.T) {
	// Given
	ws := newWorkspace(t)

	// When
	out, err := ws.run(t, "prepare", "--input", ws.raw, "--output", ws.data)

	// Then
	require.NoError(t, err)
	assert.Contains(t, out, "Prepared 3 moments")

	c, err := corpus.LoadCSV(ws.data)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())
	a, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, corpus.BuildText(a), a.Text)
	assert.Contains(t, a.Text, "federer wins final ace")
}

func TestPrepareCmd_SQLiteOutput(t *testing.T) {
	ws := newWorkspace(t)
	dbPath := filepath.Join(ws.dir, "moments.db")

	_, err := ws.run(t, "prepare", "--input", ws.raw, "--output", dbPath)
	require.NoError(t, err)

	c, err := corpus.Load(t.Context(), dbPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, c.IDs())
}

func TestPrepareCmd_MissingID(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(ws.raw, []byte("tournament,year\nWimbledon,2012\n"), 0o644))

	_, err := ws.run(t, "prepare", "--input", ws.raw, "--output", ws.data)

	require.Error(t, err)
	assert.True(t, smerrors.IsCorpusFormat(err))
}

func TestIndexCmd_BuildsAndVerifies(t *testing.T) {
	// Given
	ws := newWorkspace(t)
	_, err := ws.run(t, "prepare", "--input", ws.raw, "--output", ws.data)
	require.NoError(t, err)

	// When
	out, err := ws.run(t, "index-local")

	// Then
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 moments")
	for _, name := range []string{"bm25.gob", "vectors.gob", "ids.json", "meta.json"} {
		assert.FileExists(t, filepath.Join(ws.indexDir, name))
	}

	out, err = ws.run(t, "index", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Index consistent")
}

func TestIndexVerify_ReportsCorpusDrift(t *testing.T) {
	// Given: an index built from three moments and a corpus that lost one
	ws := newWorkspace(t).prepared(t)
	c, err := corpus.LoadCSV(ws.data)
	require.NoError(t, err)
	f, err := os.Create(ws.data)
	require.NoError(t, err)
	require.NoError(t, corpus.WriteCSV(f, c.Reorder([]string{"a", "b"})))
	require.NoError(t, f.Close())

	// When
	out, err := ws.run(t, "index", "verify")

	// Then: drift is a warning, not a failure
	require.NoError(t, err)
	assert.Contains(t, out, "not_in_corpus: 1")
}

func TestSearchCmd_Text(t *testing.T) {
	ws := newWorkspace(t).prepared(t)

	out, err := ws.run(t, "search", "federer", "final", "2012")

	require.NoError(t, err)
	assert.Contains(t, out, "1. Wimbledon 2012 — Roger Federer vs Andy Murray | Championship point | score=")
	assert.Contains(t, out, "    Federer wins the final with an ace")
	assert.NotContains(t, out, "Roland Garros")
}

func TestSearchCmd_JSONFallback(t *testing.T) {
	// Given
	ws := newWorkspace(t).prepared(t)

	// When: no moment is from 2099
	out, err := ws.run(t, "search", "2099 championship", "-k", "3", "--format", "json")

	// Then
	require.NoError(t, err)
	var rs search.ResultSet
	require.NoError(t, json.Unmarshal([]byte(out), &rs))
	assert.True(t, rs.FallbackApplied)
	assert.Equal(t, []int{2099}, rs.Filters.Years)
	assert.Len(t, rs.Results, 3)
}

func TestSearchCmd_ExplainAndCard(t *testing.T) {
	ws := newWorkspace(t).prepared(t)

	out, err := ws.run(t, "search", "nadal forehand", "-k", "1", "--explain", "--card")

	require.NoError(t, err)
	assert.Contains(t, out, "bm25=")
	assert.Contains(t, out, "### Roland Garros 2015")
}

func TestSearchCmd_InvalidInput(t *testing.T) {
	ws := newWorkspace(t).prepared(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"search", "ace", "--format", "xml"}},
		{"negative k", []string{"search", "ace", "-k", "-1"}},
		{"unknown backend", []string{"search", "ace", "--backend", "bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ws.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, smerrors.ErrCodeInvalidInput, smerrors.GetCode(err))
		})
	}
}

func TestWithBackend_ValidatesOverride(t *testing.T) {
	// Given
	cfg := config.NewConfig()

	tests := []struct {
		name    string
		backend string
		wantErr bool
		want    string
	}{
		{"empty keeps configured", "", false, config.BackendLocal},
		{"remote", "remote", false, config.BackendRemote},
		{"elasticsearch", "elasticsearch", false, config.BackendElasticsearch},
		{"unknown", "bogus", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When
			got, err := withBackend(cfg, tt.backend)

			// Then
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, smerrors.ErrCodeInvalidInput, smerrors.GetCode(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Backend)
		})
	}
	assert.Equal(t, config.BackendLocal, cfg.Backend, "override must not touch the loaded config")
}

func TestSearchCmd_MissingIndex(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.run(t, "prepare", "--input", ws.raw, "--output", ws.data)
	require.NoError(t, err)

	_, err = ws.run(t, "search", "ace")

	require.Error(t, err)
	assert.True(t, smerrors.IsIndexCorrupt(err))
}

func TestRemoteIndexCmd_BleveRoundTrip(t *testing.T) {
	// Given
	ws := newWorkspace(t).prepared(t)

	// When
	out, err := ws.run(t, "remote-index")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 moments into bleve index")

	out, err = ws.run(t, "search", "nadal forehand", "--backend", "remote", "-k", "1", "--format", "json")

	// Then
	require.NoError(t, err)
	var rs search.ResultSet
	require.NoError(t, json.Unmarshal([]byte(out), &rs))
	assert.Equal(t, "remote:bleve", rs.Backend)
	assert.Equal(t, []string{"b"}, rs.IDs())
}

func TestEvalCmd(t *testing.T) {
	// Given
	ws := newWorkspace(t).prepared(t)
	queries := filepath.Join(ws.dir, "queries.csv")
	qrels := filepath.Join(ws.dir, "qrels.csv")
	require.NoError(t, os.WriteFile(queries, []byte("qid,query\nq1,federer final 2012\nq2,nadal forehand 2015\n"), 0o644))
	require.NoError(t, os.WriteFile(qrels, []byte("qid,docid\nq1,a\nq2,b\n"), 0o644))

	// When
	out, err := ws.run(t, "eval", "--queries", queries, "--qrels", qrels, "-k", "1", "--format", "json")

	// Then
	require.NoError(t, err)
	var report eval.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.K)
	require.Len(t, report.Rows, 2)
	assert.InDelta(t, 1.0, report.AvgPrecision, 1e-12)
	assert.InDelta(t, 1.0, report.AvgMRR, 1e-12)

	out, err = ws.run(t, "eval", "--queries", queries, "--qrels", qrels, "-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "P@1")
	assert.Contains(t, out, "mean")
}

func TestConfigCmd(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "config", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"index_name": "tennis_moments"`)
	assert.Contains(t, out, ws.indexDir)

	out, err = ws.run(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(ws.dir, "xdg", "smre", "config.yaml"))

	out, err = ws.run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	assert.FileExists(t, filepath.Join(ws.dir, "xdg", "smre", "config.yaml"))

	out, err = ws.run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}
