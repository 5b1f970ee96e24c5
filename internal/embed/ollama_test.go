package embed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

// fakeOllama answers /api/embed with a vector derived from each input length.
func fakeOllama(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req OllamaEmbedRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, s := range v {
				inputs = append(inputs, s.(string))
			}
		}

		resp := OllamaEmbedResponse{Model: req.Model}
		for _, in := range inputs {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(len(in)), 1, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	// Given: a fake Ollama server
	var calls atomic.Int64
	srv := fakeOllama(t, &calls)
	defer srv.Close()
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "all-minilm"})

	// When: embedding one text
	vec, err := e.Embed(context.Background(), "ace")
	require.NoError(t, err)

	// Then: the vector is normalized and the dimension learned
	assert.Len(t, vec, 3)
	assert.InDelta(t, 1.0, magnitude(vec), 1e-6)
	assert.Equal(t, 3, e.Dimensions())
	assert.Equal(t, "all-minilm", e.ModelName())
}

func TestOllamaEmbedder_EmbedBatch_BatchesInOrder(t *testing.T) {
	var calls atomic.Int64
	srv := fakeOllama(t, &calls)
	defer srv.Close()
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, BatchSize: 2})

	texts := []string{"a", "bb", "ccc", "", "ddddd"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 5)

	// non-blank texts go out in two requests
	assert.Equal(t, int64(2), calls.Load())
	assert.Greater(t, vecs[2][0], vecs[1][0])
	assert.Equal(t, []float32{0, 0, 0}, vecs[3])
}

func TestOllamaEmbedder_ServerErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL})

	_, err := e.Embed(context.Background(), "ace")

	require.Error(t, err)
	assert.True(t, smerrors.IsEmbeddingUnavailable(err))
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaEmbedder_EmbedBatch_Retries5XX(t *testing.T) {
	// Given: a server that fails once with 503
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(OllamaEmbedResponse{Embeddings: [][]float64{{1, 0}}})
	}))
	defer srv.Close()
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, MaxRetries: 2})

	// When: embedding a batch
	vecs, err := e.EmbedBatch(context.Background(), []string{"ace"})

	// Then: the retry succeeds
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, int64(2), calls.Load())
}

func TestOllamaEmbedder_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := e.Embed(ctx, "ace")

	require.Error(t, err)
	assert.True(t, smerrors.IsEmbeddingUnavailable(err))
}

func TestOllamaEmbedder_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: url})
	_, err := e.Embed(context.Background(), "ace")

	require.Error(t, err)
	assert.True(t, smerrors.IsEmbeddingUnavailable(err))
}

func TestOllamaEmbedder_BlankBeforeDimensionKnown(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://127.0.0.1:1"})

	_, err := e.Embed(context.Background(), " ")
	assert.True(t, smerrors.IsEmbeddingUnavailable(err))

	pinned := NewOllamaEmbedder(OllamaConfig{Host: "http://127.0.0.1:1", Dimensions: 4})
	vec, err := pinned.Embed(context.Background(), " ")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}
