package search

import (
	"log/slog"
	"time"

	"github.com/Aman-CERP/smre/internal/query"
	"github.com/Aman-CERP/smre/internal/telemetry"
)

// DefaultEmbedTimeout bounds the query embedding when no timeout is set.
const DefaultEmbedTimeout = 5 * time.Second

type options struct {
	weights      Weights
	embedTimeout time.Duration
	interpreter  query.Interpreter
	metrics      *telemetry.Metrics
	queryLog     *telemetry.QueryLog
	logger       *slog.Logger
}

func defaultOptions() options {
	return options{
		weights:      DefaultWeights(),
		embedTimeout: DefaultEmbedTimeout,
		interpreter:  query.Heuristic{},
		logger:       slog.Default(),
	}
}

// Option configures a backend.
type Option func(*options)

// WithWeights sets the fusion weights.
func WithWeights(w Weights) Option {
	return func(o *options) { o.weights = w }
}

// WithEmbedTimeout bounds the query embedding. On expiry the vector
// signal contributes zero. Non-positive values keep the default.
func WithEmbedTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.embedTimeout = d
		}
	}
}

// WithInterpreter replaces the query interpreter. Nil selects query.Noop.
func WithInterpreter(i query.Interpreter) Option {
	return func(o *options) {
		if i == nil {
			i = query.Noop{}
		}
		o.interpreter = i
	}
}

// WithMetrics records Prometheus metrics for every search.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithQueryLog records every finished search in the local query log.
func WithQueryLog(l *telemetry.QueryLog) Option {
	return func(o *options) { o.queryLog = l }
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// outcome classifies a finished search for metrics and the query log.
func outcome(rs *ResultSet) string {
	switch {
	case rs.FallbackApplied:
		return telemetry.OutcomeFallback
	case rs.VectorDegraded:
		return telemetry.OutcomeDegraded
	default:
		return telemetry.OutcomeOK
	}
}

func (o *options) record(backend, raw string, rs *ResultSet, err error, latency time.Duration) {
	result := telemetry.OutcomeError
	count := 0
	if err == nil {
		result = outcome(rs)
		count = rs.Len()
	}
	o.metrics.ObserveSearch(backend, result, latency, count)
	o.queryLog.Record(telemetry.QueryEvent{
		Query:       raw,
		Backend:     backend,
		Outcome:     result,
		ResultCount: count,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}
