package remote

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

func TestElasticClient_Search(t *testing.T) {
	// Given: a fake cluster returning two hits, one without _source.id
	var gotBody map[string]any
	var gotPath string
	c := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_id":"a","_score":7.5,"_source":{"id":"a","year":2012,"tournament":"Wimbledon","round":"Final"}},
			{"_id":"b","_score":3.25,"_source":{"year":2015,"round":"Semi-final"}}
		]}}`)
	}, 0)

	// When
	hits, err := c.Search(context.Background(), "federer final", 20)

	// Then
	require.NoError(t, err)
	assert.Equal(t, "/moments/_search", gotPath)
	assert.EqualValues(t, 20, gotBody["size"])
	mm := gotBody["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "federer final", mm["query"])
	assert.Equal(t, []any{"commentary^2", "summary^1.5", "text"}, mm["fields"])

	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, 7.5, hits[0].Score)
	assert.Equal(t, "2012", hits[0].Moment.Year)
	assert.Equal(t, "Final", hits[0].Moment.Round)
	assert.Equal(t, "b", hits[1].ID, "_id fills a missing source id")
	assert.Equal(t, "b", hits[1].Moment.ID)
}

func TestElasticClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retries   int
		wantCalls int32
		wantCode  string
	}{
		{"server error retried", http.StatusServiceUnavailable, 2, 3, smerrors.ErrCodeRemoteBackend},
		{"client error not retried", http.StatusBadRequest, 2, 1, smerrors.ErrCodeRemoteBackend},
		{"no retries", http.StatusInternalServerError, 0, 1, smerrors.ErrCodeRemoteBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, "nope", tt.status)
			}, tt.retries)

			_, err := c.Search(context.Background(), "q", 10)

			require.Error(t, err)
			assert.True(t, smerrors.IsRemoteBackend(err))
			assert.Equal(t, tt.wantCode, smerrors.GetCode(err))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestElasticClient_RecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	c := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"hits":[{"_id":"a","_score":1,"_source":{"id":"a"}}]}}`)
	}, 2)

	hits, err := c.Search(context.Background(), "q", 10)

	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestElasticClient_Timeout(t *testing.T) {
	// Given: a server slower than the caller's deadline
	c := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// When
	_, err := c.Search(ctx, "q", 10)

	// Then: the failure is a remote error, not a hang
	require.Error(t, err)
	assert.True(t, smerrors.IsRemoteBackend(err) || ctx.Err() != nil)
}

func TestElasticClient_Unreachable(t *testing.T) {
	c, err := NewElasticClient(ElasticConfig{URL: "http://127.0.0.1:1", Index: "moments"})
	require.NoError(t, err)
	c.retry.MaxRetries = 0

	_, err = c.Search(context.Background(), "q", 10)

	require.Error(t, err)
	assert.True(t, smerrors.IsRemoteBackend(err))
}

func TestElasticClient_RecreateAndBulkIndex(t *testing.T) {
	// Given: a fake cluster recording every request
	type call struct {
		method, path, contentType string
		body                      string
	}
	var calls []call
	c := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(body)})
		switch {
		case r.Method == http.MethodDelete:
			http.Error(w, `{"error":"index_not_found_exception"}`, http.StatusNotFound)
		case r.URL.Path == "/_bulk":
			_, _ = io.WriteString(w, `{"errors":false,"items":[]}`)
		default:
			_, _ = io.WriteString(w, `{"acknowledged":true}`)
		}
	}, 0)
	docs := testCorpus(t)

	// When
	require.NoError(t, c.Recreate(context.Background()))
	n, err := c.BulkIndex(context.Background(), docs, 2)

	// Then: delete (404 tolerated), create, two bulk batches, refresh
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, calls, 5)
	assert.Equal(t, http.MethodDelete, calls[0].method)
	assert.Equal(t, http.MethodPut, calls[1].method)
	assert.Contains(t, calls[1].body, `"number_of_shards":1`)
	assert.Equal(t, "/_bulk", calls[2].path)
	assert.Equal(t, "application/x-ndjson", calls[2].contentType)
	assert.Equal(t, "/_bulk", calls[3].path)
	assert.Equal(t, "/moments/_refresh", calls[4].path)

	scanner := bufio.NewScanner(strings.NewReader(calls[2].body))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 4, "two action/source pairs")
	assert.Contains(t, lines[0], `"_id":"a"`)
	assert.Contains(t, lines[1], `"year":2012`)
}

func TestElasticClient_BulkItemErrors(t *testing.T) {
	c := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"errors":true,"items":[{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception"}}}]}`)
	}, 0)

	_, err := c.BulkIndex(context.Background(), testCorpus(t), 10)

	require.Error(t, err)
	assert.True(t, smerrors.IsRemoteBackend(err))
	assert.Contains(t, err.Error(), "rejected 1 documents")
}

func TestMapping(t *testing.T) {
	props := Mapping()["mappings"].(map[string]any)["properties"].(map[string]any)

	assert.Equal(t, map[string]any{"type": "keyword"}, props["id"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["year"])
	assert.Equal(t, map[string]any{"type": "text"}, props["commentary"])
	assert.Len(t, props, 17)
}
