package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveSearch(t *testing.T) {
	// Given: fresh collectors
	m := New()

	// When: recording two searches
	m.ObserveSearch("local", OutcomeOK, 20*time.Millisecond, 5)
	m.ObserveSearch("local", OutcomeFallback, 30*time.Millisecond, 2)
	m.FilterFallback()

	// Then: counters reflect them
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("local", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("local", OutcomeFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilterFallbackTotal))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// two instances must not collide on registration
	a := New()
	b := New()

	a.DocumentsIndexed(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.DocsIndexedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.DocsIndexedTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveSearch("local", OutcomeOK, time.Millisecond, 1)
		m.FilterFallback()
		m.VectorPathDegraded()
		m.DocumentsIndexed(1)
		m.RemoteError()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.VectorPathDegraded()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "smre_vector_degraded_total 1")
}
