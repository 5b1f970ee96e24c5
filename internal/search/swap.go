package search

import (
	"context"
	"sync"
)

// Swappable forwards to a backend that can be replaced while queries are
// running, as when a server reloads a rebuilt index.
type Swappable struct {
	mu      sync.RWMutex
	current Backend
}

var _ Backend = (*Swappable)(nil)

// NewSwappable wraps b.
func NewSwappable(b Backend) *Swappable {
	return &Swappable{current: b}
}

// Name implements Backend.
func (s *Swappable) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Name()
}

// Search implements Backend. The backend in use when the query starts
// serves the whole query.
func (s *Swappable) Search(ctx context.Context, q string, k int) (*ResultSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Search(ctx, q, k)
}

// Swap installs b and returns the previous backend. It waits for in-flight
// queries, so the previous backend is idle once Swap returns.
func (s *Swappable) Swap(b Backend) Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.current
	s.current = b
	return old
}
