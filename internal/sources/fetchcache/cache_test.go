package fetchcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/metrics"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, false, errors.New("redis down")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("redis down")
	}
	m.data[key] = value
	return nil
}

type countingProvider struct {
	searches atomic.Int32
	fetches  atomic.Int32
	gate     chan struct{}
	err      error
}

func (c *countingProvider) Info() sources.Info {
	return sources.Info{Name: "wikipedia", Origin: evidence.OriginWikipedia}
}

func (c *countingProvider) Search(ctx context.Context, q string, limit int) ([]sources.SearchResult, error) {
	c.searches.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []sources.SearchResult{{Title: "T " + q, URL: "u"}}, nil
}

func (c *countingProvider) Fetch(ctx context.Context, r sources.SearchResult) (sources.Document, error) {
	c.fetches.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return sources.Document{Title: "Doc", URL: r.URL, Content: "body"}, nil
}

func TestSearchIsCached(t *testing.T) {
	next := &countingProvider{}
	p := Wrap(next, newMemStore(), time.Hour, metrics.New(nil))

	first, err := p.Search(context.Background(), "coral", 10)
	require.NoError(t, err)
	second, err := p.Search(context.Background(), "coral", 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), next.searches.Load())

	_, err = p.Search(context.Background(), "coral", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.searches.Load(), "limit is part of the key")
}

func TestErrorsAreNotCached(t *testing.T) {
	next := &countingProvider{err: errors.New("upstream 503")}
	p := Wrap(next, newMemStore(), time.Hour, nil)
	_, err := p.Search(context.Background(), "q", 1)
	require.Error(t, err)
	_, err = p.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Equal(t, int32(2), next.searches.Load())
}

func TestStoreFailureFallsThrough(t *testing.T) {
	store := newMemStore()
	store.fail = true
	next := &countingProvider{}
	p := Wrap(next, store, time.Hour, nil)
	doc, err := p.Fetch(context.Background(), sources.SearchResult{URL: "https://x"})
	require.NoError(t, err)
	assert.Equal(t, "body", doc.Content)
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	next := &countingProvider{gate: make(chan struct{})}
	p := Wrap(next, newMemStore(), time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := p.Fetch(context.Background(), sources.SearchResult{URL: "https://same"})
			assert.NoError(t, err)
			assert.Equal(t, "Doc", doc.Title)
		}()
	}
	require.Eventually(t, func() bool { return next.fetches.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.gate)
	wg.Wait()
	assert.LessOrEqual(t, next.fetches.Load(), int32(5))
	assert.GreaterOrEqual(t, next.fetches.Load(), int32(1))
}
