// Package sources acquires topical evidence from external providers. A
// Provider knows how to search and fetch; the Acquirer applies relevance
// filtering, fallback search and attempt bounds on top of any Provider.
package sources

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
)

// SearchResult is a provider hit before its body is fetched.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Document is a fetched provider page.
type Document struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Info describes a provider for labels and messages.
type Info struct {
	Name    string
	Display string
	Noun    string
	Origin  evidence.Origin
}

// Provider searches and fetches one external source. Errors should wrap
// apperrors.ErrProvider.
type Provider interface {
	Info() Info
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Fetch(ctx context.Context, result SearchResult) (Document, error)
}

// Polite spaces successive calls to p at least wait apart. The limiter is
// shared by every caller of the returned Provider, so concurrent runs
// together still respect the delay.
func Polite(p Provider, wait time.Duration) Provider {
	limit := rate.Inf
	if wait > 0 {
		limit = rate.Every(wait)
	}
	return &polite{Provider: p, limiter: rate.NewLimiter(limit, 1)}
}

type polite struct {
	Provider
	limiter *rate.Limiter
}

func (p *polite) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.Provider.Search(ctx, query, limit)
}

func (p *polite) Fetch(ctx context.Context, result SearchResult) (Document, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Document{}, err
	}
	return p.Provider.Fetch(ctx, result)
}
