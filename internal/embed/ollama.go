package embed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a small sentence-embedding model.
	DefaultOllamaModel = "all-minilm"

	// OllamaPoolSize for the connection pool.
	OllamaPoolSize = 4
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string

	// Model is the embedding model to use.
	Model string

	// Dimensions pins the dimension; 0 means learn it from the first response.
	Dimensions int

	// BatchSize for batch embedding requests.
	BatchSize int

	// Timeout bounds one request when the caller's context has no deadline.
	Timeout time.Duration

	// MaxRetries for 5XX and transport failures during batch embedding.
	MaxRetries int

	// HTTPClient overrides the pooled client (tests).
	HTTPClient *http.Client
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:       DefaultOllamaHost,
		Model:      DefaultOllamaModel,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: 2,
	}
}

// OllamaEmbedRequest is the Ollama /api/embed request.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// OllamaEmbedResponse is the Ollama /api/embed response.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API. Construction
// does not contact the server, so an unreachable Ollama only surfaces as
// EmbeddingUnavailableError on use.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates a new Ollama embedder.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	client := cfg.HTTPClient
	if client == nil {
		// No client-level Timeout: deadlines come from the request context.
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        OllamaPoolSize,
				MaxIdleConnsPerHost: OllamaPoolSize,
				IdleConnTimeout:     10 * time.Second,
			},
		}
	}

	return &OllamaEmbedder{
		client: client,
		config: cfg,
		dims:   cfg.Dimensions,
	}
}

// Embed generates the embedding for a single text. It is not retried: the
// query path prefers degrading to waiting.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		if d := e.Dimensions(); d > 0 {
			return make([]float32, d), nil
		}
		return nil, smerrors.EmbeddingUnavailableError("cannot embed blank text before the dimension is known", nil)
	}

	embeddings, err := e.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in batches of BatchSize, preserving order.
// Blank texts get zero vectors without a request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	results := make([][]float32, len(texts))
	var blank []int
	var idx []int
	var pending []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			blank = append(blank, i)
			continue
		}
		idx = append(idx, i)
		pending = append(pending, text)
	}

	retry := smerrors.DefaultRetryConfig()
	retry.MaxRetries = e.config.MaxRetries

	for start := 0; start < len(pending); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, smerrors.EmbeddingUnavailableError("embedding cancelled", err)
		}

		end := min(start+e.config.BatchSize, len(pending))
		embeddings, err := smerrors.RetryWithResult(ctx, retry, func() ([][]float32, error) {
			return e.doEmbed(ctx, pending[start:end])
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}
		for j, emb := range embeddings {
			results[idx[start+j]] = emb
		}
	}

	if len(blank) > 0 {
		d := e.Dimensions()
		if d == 0 {
			return nil, smerrors.EmbeddingUnavailableError("cannot embed blank text before the dimension is known", nil)
		}
		for _, i := range blank {
			results[i] = make([]float32, d)
		}
	}
	return results, nil
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(OllamaEmbedRequest{Model: e.config.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, smerrors.EmbeddingUnavailableError("failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		unavailable := smerrors.EmbeddingUnavailableError("ollama request failed", err)
		// transport failures are retried unless the caller gave up
		unavailable.Retryable = ctx.Err() == nil
		return nil, unavailable
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		unavailable := smerrors.EmbeddingUnavailableError(
			fmt.Sprintf("embedding failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
		unavailable.Retryable = resp.StatusCode >= 500
		return nil, unavailable
	}

	var apiResult OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
		return nil, smerrors.EmbeddingUnavailableError("failed to decode embedding response", err)
	}
	if len(apiResult.Embeddings) != len(texts) {
		return nil, smerrors.EmbeddingUnavailableError(
			fmt.Sprintf("ollama returned %d embeddings for %d texts", len(apiResult.Embeddings), len(texts)), nil)
	}

	embeddings := make([][]float32, len(apiResult.Embeddings))
	for i, emb := range apiResult.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		if err := e.observeDimensions(len(vec)); err != nil {
			return nil, err
		}
		embeddings[i] = normalizeVector(vec)
	}
	return embeddings, nil
}

// observeDimensions records the dimension of the first response and rejects
// responses that disagree with it.
func (e *OllamaEmbedder) observeDimensions(d int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = d
		return nil
	}
	if e.dims != d {
		return smerrors.EmbeddingUnavailableError(
			fmt.Sprintf("ollama returned a %d-dimensional vector, expected %d", d, e.dims), nil)
	}
	return nil
}

func (e *OllamaEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// Dimensions returns the embedding dimension, 0 until the first response
// unless pinned in the config.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
