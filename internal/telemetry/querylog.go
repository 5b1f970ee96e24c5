package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a coarse latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one finished search.
type QueryEvent struct {
	Query       string
	Backend     string
	Outcome     string
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms lowercases query and keeps words of at least three
// characters. Four-digit years are kept too.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and how often it was queried.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable copy of the query log aggregates.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	OutcomeCounts       map[string]int64        `json:"outcome_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	FallbackQueries     []string                `json:"fallback_queries"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ExactRepeatRate     float64                 `json:"exact_repeat_rate"`
	Since               time.Time               `json:"since"`
}

// QueryLogConfig sizes the in-memory aggregates.
type QueryLogConfig struct {
	TopTermsCapacity      int
	RecentCapacity        int
	RecentQueriesCapacity int
	// FlushInterval triggers periodic Flush when a store is set; 0 disables it.
	FlushInterval time.Duration
}

// DefaultQueryLogConfig returns sensible defaults.
func DefaultQueryLogConfig() QueryLogConfig {
	return QueryLogConfig{
		TopTermsCapacity:      100,
		RecentCapacity:        50,
		RecentQueriesCapacity: 500,
		FlushInterval:         time.Minute,
	}
}

// QueryLog aggregates query events. Safe for concurrent use.
type QueryLog struct {
	mu sync.Mutex

	total         int64
	outcomes      map[string]int64
	topTerms      *lru.Cache[string, int64]
	fallbacks     *CircularBuffer[string]
	zeroResults   *CircularBuffer[string]
	latencies     map[LatencyBucket]int64
	recentQueries *lru.Cache[string, struct{}]
	exactRepeats  int64
	start         time.Time

	// counts since the last flush
	pendingOutcomes  map[string]int64
	pendingTerms     map[string]int64
	pendingLatencies map[LatencyBucket]int64
	pendingFallbacks []string

	store  Store
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

// NewQueryLog creates a query log. store may be nil to keep data in memory only.
func NewQueryLog(store Store, cfg QueryLogConfig) *QueryLog {
	def := DefaultQueryLogConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.RecentCapacity <= 0 {
		cfg.RecentCapacity = def.RecentCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	l := &QueryLog{
		outcomes:         make(map[string]int64),
		topTerms:         topTerms,
		fallbacks:        NewCircularBuffer[string](cfg.RecentCapacity),
		zeroResults:      NewCircularBuffer[string](cfg.RecentCapacity),
		latencies:        make(map[LatencyBucket]int64),
		recentQueries:    recent,
		start:            time.Now(),
		pendingOutcomes:  make(map[string]int64),
		pendingTerms:     make(map[string]int64),
		pendingLatencies: make(map[LatencyBucket]int64),
		store:            store,
		stopCh:           make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		l.ticker = time.NewTicker(cfg.FlushInterval)
		go l.flushLoop()
	}
	return l
}

func (l *QueryLog) flushLoop() {
	for {
		select {
		case <-l.ticker.C:
			_ = l.Flush()
		case <-l.stopCh:
			return
		}
	}
}

// Record adds one event. A nil *QueryLog ignores it.
func (l *QueryLog) Record(event QueryEvent) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	l.total++
	l.outcomes[event.Outcome]++
	l.pendingOutcomes[event.Outcome]++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := l.topTerms.Get(term)
		l.topTerms.Add(term, count+1)
		l.pendingTerms[term]++
	}

	if event.Outcome == OutcomeFallback {
		l.fallbacks.Add(event.Query)
		l.pendingFallbacks = append(l.pendingFallbacks, event.Query)
	}
	if event.ResultCount == 0 && event.Outcome != OutcomeError {
		l.zeroResults.Add(event.Query)
	}

	bucket := LatencyToBucket(event.Latency)
	l.latencies[bucket]++
	l.pendingLatencies[bucket]++

	key := hashQuery(event.Query)
	if _, seen := l.recentQueries.Get(key); seen {
		l.exactRepeats++
	}
	l.recentQueries.Add(key, struct{}{})
}

func hashQuery(query string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns the current aggregates.
func (l *QueryLog) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	outcomes := make(map[string]int64, len(l.outcomes))
	for k, v := range l.outcomes {
		outcomes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(l.latencies))
	for k, v := range l.latencies {
		latencies[k] = v
	}

	terms := make([]TermCount, 0, l.topTerms.Len())
	for _, key := range l.topTerms.Keys() {
		if count, ok := l.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	var repeatRate float64
	if l.total > 0 {
		repeatRate = float64(l.exactRepeats) / float64(l.total)
	}

	return &Snapshot{
		TotalQueries:        l.total,
		OutcomeCounts:       outcomes,
		TopTerms:            terms,
		FallbackQueries:     l.fallbacks.Items(),
		ZeroResultQueries:   l.zeroResults.Items(),
		LatencyDistribution: latencies,
		ExactRepeatCount:    l.exactRepeats,
		ExactRepeatRate:     repeatRate,
		Since:               l.start,
	}
}

// Flush writes counts gathered since the previous flush to the store.
// Without a store it does nothing.
func (l *QueryLog) Flush() error {
	if l == nil || l.store == nil {
		return nil
	}

	l.mu.Lock()
	outcomes, terms, latencies, fallbacks := l.pendingOutcomes, l.pendingTerms, l.pendingLatencies, l.pendingFallbacks
	l.pendingOutcomes = make(map[string]int64)
	l.pendingTerms = make(map[string]int64)
	l.pendingLatencies = make(map[LatencyBucket]int64)
	l.pendingFallbacks = nil
	l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if err := l.store.SaveOutcomeCounts(today, outcomes); err != nil {
		return err
	}
	if err := l.store.UpsertTermCounts(terms); err != nil {
		return err
	}
	if err := l.store.SaveLatencyCounts(today, latencies); err != nil {
		return err
	}
	for _, q := range fallbacks {
		if err := l.store.AddFallbackQuery(q, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// Close stops periodic flushing and flushes once more.
func (l *QueryLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	if l.ticker != nil {
		l.ticker.Stop()
		close(l.stopCh)
	}
	return l.Flush()
}
