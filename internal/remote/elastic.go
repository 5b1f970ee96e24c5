package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Aman-CERP/smre/internal/corpus"
	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

const (
	// DefaultIndexName matches the index created by remote-index.
	DefaultIndexName = "tennis_moments"

	// DefaultBulkBatchSize is the number of documents per _bulk request.
	DefaultBulkBatchSize = 500

	maxErrorBody = 4096
)

// integerFields are mapped as integers; empty or non-numeric values are
// omitted from the indexed source.
var integerFields = map[string]bool{"year": true, "set": true, "game": true}

// keywordFields are mapped as untokenized keywords.
var keywordFields = map[string]bool{"id": true, "sport": true, "surface": true, "source_url": true}

// ElasticConfig configures the Elasticsearch client.
type ElasticConfig struct {
	URL        string
	Index      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// ElasticClient talks to the Elasticsearch REST API.
type ElasticClient struct {
	base   string
	index  string
	client *http.Client
	retry  smerrors.RetryConfig
	cfg    ElasticConfig
}

var _ Searcher = (*ElasticClient)(nil)

// NewElasticClient validates cfg and returns a client. No request is made.
func NewElasticClient(cfg ElasticConfig) (*ElasticClient, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, smerrors.ConfigError(fmt.Sprintf("invalid elasticsearch url %q", cfg.URL), err)
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	retry := smerrors.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	return &ElasticClient{
		base:   strings.TrimRight(cfg.URL, "/"),
		index:  cfg.Index,
		client: client,
		retry:  retry,
		cfg:    cfg,
	}, nil
}

// Name implements Searcher.
func (c *ElasticClient) Name() string { return "elasticsearch" }

// Index returns the target index name.
func (c *ElasticClient) Index() string { return c.index }

type esSearchRequest struct {
	Size  int            `json:"size"`
	Query map[string]any `json:"query"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

type esHit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

// Search runs a multi_match query over the boosted search fields.
func (c *ElasticClient) Search(ctx context.Context, query string, size int) ([]Hit, error) {
	body, err := json.Marshal(esSearchRequest{
		Size: size,
		Query: map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": elasticFields(),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	var resp esSearchResponse
	if err := c.do(ctx, http.MethodPost, "/"+c.index+"/_search", "application/json", body, &resp); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		m := momentFromSource(h.Source)
		if m.ID == "" {
			m.ID = h.ID
		}
		hits = append(hits, Hit{ID: m.ID, Score: h.Score, Moment: m})
	}
	return hits, nil
}

// Mapping returns the index settings and field mapping used by Recreate.
func Mapping() map[string]any {
	props := make(map[string]any, len(corpus.Columns))
	for _, name := range corpus.Columns {
		typ := "text"
		switch {
		case keywordFields[name]:
			typ = "keyword"
		case integerFields[name]:
			typ = "integer"
		}
		props[name] = map[string]any{"type": typ}
	}
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":   1,
				"number_of_replicas": 0,
				"analysis": map[string]any{
					"analyzer": map[string]any{
						"default": map[string]any{"type": "standard"},
					},
				},
			},
		},
		"mappings": map[string]any{"properties": props},
	}
}

// Recreate deletes the index if it exists and creates it with Mapping.
func (c *ElasticClient) Recreate(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "/"+c.index, "", nil, nil)
	if err != nil && !isNotFound(err) {
		return err
	}

	body, err := json.Marshal(Mapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}
	return c.do(ctx, http.MethodPut, "/"+c.index, "application/json", body, nil)
}

type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  any    `json:"error"`
	} `json:"items"`
}

// BulkIndex sends every record of c through the _bulk API in batches of
// batchSize, then refreshes the index. It returns the number of documents
// indexed.
func (c *ElasticClient) BulkIndex(ctx context.Context, docs *corpus.Corpus, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBulkBatchSize
	}

	indexed := 0
	for start := 0; start < docs.Len(); start += batchSize {
		end := min(start+batchSize, docs.Len())

		var buf bytes.Buffer
		for i := start; i < end; i++ {
			m := docs.At(i)
			action := map[string]any{"index": map[string]any{"_index": c.index, "_id": m.ID}}
			if err := writeNDJSON(&buf, action); err != nil {
				return indexed, err
			}
			if err := writeNDJSON(&buf, SourceOf(m)); err != nil {
				return indexed, err
			}
		}

		var resp esBulkResponse
		if err := c.do(ctx, http.MethodPost, "/_bulk", "application/x-ndjson", buf.Bytes(), &resp); err != nil {
			return indexed, fmt.Errorf("failed to index batch %d-%d: %w", start, end, err)
		}
		if resp.Errors {
			var failed []string
			for _, item := range resp.Items {
				for _, r := range item {
					if r.Error != nil || r.Status >= 300 {
						failed = append(failed, r.ID)
					}
				}
			}
			return indexed, smerrors.RemoteBackendError(
				fmt.Sprintf("bulk request rejected %d documents", len(failed)), nil).
				WithDetail("first_failed", strings.Join(failed[:min(len(failed), 5)], ","))
		}
		indexed += end - start
	}

	if err := c.Refresh(ctx); err != nil {
		return indexed, err
	}
	return indexed, nil
}

// Refresh makes recently indexed documents searchable.
func (c *ElasticClient) Refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/"+c.index+"/_refresh", "", nil, nil)
}

func writeNDJSON(buf *bytes.Buffer, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal bulk line: %w", err)
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return nil
}

// SourceOf renders m as an indexed document. Integer fields are sent as
// numbers and dropped when empty.
func SourceOf(m corpus.Moment) map[string]any {
	src := make(map[string]any, len(corpus.Columns))
	for _, name := range corpus.Columns {
		v := m.Field(name)
		if integerFields[name] {
			if name == "year" {
				if y, ok := m.YearValue(); ok {
					src[name] = y
				}
				continue
			}
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				src[name] = n
			}
			continue
		}
		src[name] = v
	}
	return src
}

// momentFromSource maps a stored document back to a Moment. Numbers are
// rendered without a fractional part when whole.
func momentFromSource(src map[string]any) corpus.Moment {
	var m corpus.Moment
	for name, raw := range src {
		m.SetField(strings.ToLower(name), sourceString(raw))
	}
	return m
}

func sourceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// do sends one request with retries on 5XX and transport failures. out,
// when non-nil, receives the decoded JSON body.
func (c *ElasticClient) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	return smerrors.Retry(ctx, c.retry, func() error {
		return c.doOnce(ctx, method, path, contentType, body, out)
	})
}

func (c *ElasticClient) doOnce(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return smerrors.RemoteBackendError("failed to build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		remoteErr := smerrors.RemoteBackendError(fmt.Sprintf("%s %s failed", method, path), err)
		remoteErr.Retryable = ctx.Err() == nil
		return remoteErr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		remoteErr := smerrors.RemoteBackendError(
			fmt.Sprintf("%s %s returned status %d", method, path, resp.StatusCode),
			&statusError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))})
		remoteErr.Retryable = resp.StatusCode >= 500
		return remoteErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return smerrors.RemoteBackendError("failed to decode response", err)
	}
	return nil
}
