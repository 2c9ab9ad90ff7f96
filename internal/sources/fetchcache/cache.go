// Package fetchcache memoizes provider searches and page fetches in Redis
// so repeated research on the same topic does not hit external services
// again. Concurrent misses for one key share a single upstream call.
package fetchcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/metrics"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "ra:fetch:"

// Store is the byte cache, implemented by pkg/redis.Client.
type Store interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Provider wraps another provider with the cache.
type Provider struct {
	next    sources.Provider
	store   Store
	ttl     time.Duration
	name    string
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Wrap returns next behind the cache. A nil m skips metrics.
func Wrap(next sources.Provider, store Store, ttl time.Duration, m *metrics.Metrics) *Provider {
	name := next.Info().Name
	return &Provider{
		next:    next,
		store:   store,
		ttl:     ttl,
		name:    name,
		metrics: m,
		logger:  slog.Default().With("component", "fetch-cache", "provider", name),
	}
}

func (p *Provider) Info() sources.Info { return p.next.Info() }

func (p *Provider) Search(ctx context.Context, query string, limit int) ([]sources.SearchResult, error) {
	key := p.key("search", fmt.Sprintf("%s|%d", query, limit))
	var out []sources.SearchResult
	err := p.cached(ctx, key, &out, func() (any, error) {
		return p.next.Search(ctx, query, limit)
	})
	return out, err
}

func (p *Provider) Fetch(ctx context.Context, r sources.SearchResult) (sources.Document, error) {
	key := p.key("doc", r.URL)
	var out sources.Document
	err := p.cached(ctx, key, &out, func() (any, error) {
		return p.next.Fetch(ctx, r)
	})
	return out, err
}

// cached decodes a hit into dst, or runs load once per key and stores its
// result. Cache faults are logged and fall through to load. Errors are
// never cached.
func (p *Provider) cached(ctx context.Context, key string, dst any, load func() (any, error)) error {
	if p.lookup(ctx, key, dst) {
		return nil
	}
	val, err, shared := p.group.Do(key, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding cache entry: %w", err)
		}
		if err := p.store.Store(ctx, key, data, p.ttl); err != nil {
			p.logger.Warn("cache store failed", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if shared {
		p.logger.Debug("shared in-flight fetch", "key", key)
	}
	return json.Unmarshal(val.([]byte), dst)
}

func (p *Provider) lookup(ctx context.Context, key string, dst any) bool {
	data, ok, err := p.store.Lookup(ctx, key)
	if err != nil {
		p.logger.Warn("cache lookup failed", "key", key, "error", err)
	}
	if ok {
		if err := json.Unmarshal(data, dst); err == nil {
			p.observe(true)
			return true
		}
		p.logger.Warn("discarding undecodable cache entry", "key", key)
	}
	p.observe(false)
	return false
}

func (p *Provider) observe(hit bool) {
	if p.metrics == nil {
		return
	}
	if hit {
		p.metrics.CacheHitsTotal.WithLabelValues(p.name).Inc()
	} else {
		p.metrics.CacheMissesTotal.WithLabelValues(p.name).Inc()
	}
}

func (p *Provider) key(kind, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%s:%x", KeyPrefix, p.name, kind, sum[:16])
}

var _ sources.Provider = (*Provider)(nil)
