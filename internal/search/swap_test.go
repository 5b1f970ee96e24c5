package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedBackend blocks each search until release is closed.
type gatedBackend struct {
	name    string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedBackend) Name() string { return g.name }

func (g *gatedBackend) Search(_ context.Context, q string, _ int) (*ResultSet, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return &ResultSet{Query: q, Backend: g.name}, nil
}

func TestSwappable_ForwardsAndSwaps(t *testing.T) {
	// Given
	local := newFusion(t, scenarioCorpus(t), nil)
	remote, err := NewRemoteDelegate(&fakeSearcher{hits: remoteHits()}, 0)
	require.NoError(t, err)
	s := NewSwappable(local)

	// When
	rs, err := s.Search(context.Background(), "nadal", 1)
	require.NoError(t, err)
	old := s.Swap(remote)

	// Then
	assert.Equal(t, BackendLocal, rs.Backend)
	assert.Same(t, local, old)
	assert.Equal(t, "remote:fake", s.Name())
}

func TestSwappable_SwapWaitsForInFlightQuery(t *testing.T) {
	// Given
	first := &gatedBackend{name: "first", started: make(chan struct{}), release: make(chan struct{})}
	s := NewSwappable(first)

	result := make(chan *ResultSet, 1)
	go func() {
		rs, _ := s.Search(context.Background(), "q", 1)
		result <- rs
	}()
	<-first.started

	// When
	swapped := make(chan struct{})
	go func() {
		s.Swap(&gatedBackend{name: "second"})
		close(swapped)
	}()

	// Then: the swap is held until the query finishes on the old backend
	select {
	case <-swapped:
		t.Fatal("swap returned while a query was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(first.release)
	assert.Equal(t, "first", (<-result).Backend)
	<-swapped
	assert.Equal(t, "second", s.Name())
}
