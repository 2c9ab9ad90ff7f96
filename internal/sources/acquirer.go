package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/relevance"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/resilience"
)

const maxSearchResults = 30

// AcquirerConfig wires optional collaborators into an Acquirer.
type AcquirerConfig struct {
	// SearchLimit caps how many title-filtered candidates are kept. The
	// provider is asked for three times as many, at most 30.
	SearchLimit int
	Breaker     *resilience.CircuitBreaker
	Metrics     *metrics.Metrics
}

// Acquirer turns a topic into relevant documents from one provider.
type Acquirer struct {
	provider    Provider
	info        Info
	filter      *relevance.Filter
	searchLimit int
	breaker     *resilience.CircuitBreaker
	metrics     *metrics.Metrics
}

func NewAcquirer(p Provider, filter *relevance.Filter, cfg AcquirerConfig) *Acquirer {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	info := p.Info()
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker(info.Name, resilience.CircuitBreakerConfig{})
	}
	return &Acquirer{
		provider:    p,
		info:        info,
		filter:      filter,
		searchLimit: cfg.SearchLimit,
		breaker:     cfg.Breaker,
		metrics:     cfg.Metrics,
	}
}

// Name returns the provider name.
func (a *Acquirer) Name() string { return a.info.Name }

// Acquire searches for the exact normalized phrase, relaxes to loose terms
// when that finds nothing, then fetches candidates in provider order until
// maxItems pass the content check or 2*maxItems fetches were attempted.
// Provider faults never fail the call; only a done ctx does.
func (a *Acquirer) Acquire(ctx context.Context, topic string, maxItems int) (evidence.Acquisition, error) {
	log := logger.FromContext(ctx).With("component", "acquirer", "provider", a.info.Name)
	acq := evidence.Acquisition{Provider: a.info.Name, Items: []evidence.Item{}}
	if maxItems <= 0 {
		return acq, nil
	}

	q := a.filter.Normalize(topic)
	if len(q.Terms) == 0 {
		acq.Message = a.notFound()
		return acq, nil
	}

	candidates, err := a.search(ctx, log, `"`+q.String()+`"`, q)
	if err != nil {
		return acq, err
	}
	fallback := false
	if len(candidates) == 0 {
		log.Info("no exact matches, trying general search", "query", q.String())
		fallback = true
		if candidates, err = a.search(ctx, log, q.String(), q); err != nil {
			return acq, err
		}
	}
	if len(candidates) == 0 {
		acq.Message = a.notFound()
		return acq, nil
	}

	threshold := relevance.Threshold(fallback)
	attempts := 0
	for _, c := range candidates {
		if len(acq.Items) >= maxItems || attempts >= 2*maxItems {
			break
		}
		attempts++

		doc, err := a.fetch(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return acq, ctx.Err()
			}
			log.Warn("fetch failed, skipping", "title", c.Title, "error", err)
			continue
		}
		score := relevance.ContentScore(doc.Content, q)
		if !relevance.ContentRelevant(doc.Content, q, threshold) {
			log.Debug("content not relevant", "title", doc.Title, "score", score, "threshold", threshold)
			a.count("rejected")
			continue
		}
		a.count("accepted")
		acq.Items = append(acq.Items, evidence.Item{
			Text:        doc.Content,
			SourceLabel: fmt.Sprintf("%s: %s", a.info.Display, doc.Title),
			Origin:      a.info.Origin,
			Score:       score,
			Ref:         doc.URL,
		})
	}

	switch {
	case len(acq.Items) == 0:
		acq.Message = "No relevant " + a.info.Noun + " found after content analysis"
	case fallback:
		acq.IsFallback = true
		acq.LoweredThreshold = true
		acq.Message = fmt.Sprintf(
			"No exact matches found for your query. Showing %d general knowledge %s that might be relevant.",
			len(acq.Items), a.info.Noun)
	default:
		acq.Message = fmt.Sprintf("Found %d directly relevant %s.", len(acq.Items), a.info.Noun)
	}
	log.Info("acquisition finished", "items", len(acq.Items), "attempts", attempts, "fallback", acq.IsFallback)
	return acq, nil
}

// search runs one provider search and keeps title-relevant hits. Provider
// errors are logged and reported as no results.
func (a *Acquirer) search(ctx context.Context, log *slog.Logger, query string, q relevance.Query) ([]SearchResult, error) {
	var raw []SearchResult
	err := a.call(func() error {
		var err error
		raw, err = a.provider.Search(ctx, query, min(a.searchLimit*3, maxSearchResults))
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("search failed, treating as no results", "query", query, "error", err)
		return nil, nil
	}
	kept := make([]SearchResult, 0, min(len(raw), a.searchLimit))
	for _, r := range raw {
		if len(kept) == a.searchLimit {
			break
		}
		if a.filter.TitleRelevant(r.Title, q) {
			kept = append(kept, r)
		}
	}
	log.Debug("search finished", "query", query, "raw", len(raw), "kept", len(kept))
	return kept, nil
}

func (a *Acquirer) fetch(ctx context.Context, r SearchResult) (Document, error) {
	var doc Document
	err := a.call(func() error {
		var err error
		doc, err = a.provider.Fetch(ctx, r)
		return err
	})
	return doc, err
}

func (a *Acquirer) call(fn func() error) error {
	err := a.breaker.Execute(fn, isCancellation)
	if a.metrics != nil {
		outcome := "ok"
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			outcome = "circuit_open"
		case err != nil:
			outcome = "error"
		}
		a.metrics.ProviderFetchesTotal.WithLabelValues(a.info.Name, outcome).Inc()
	}
	return err
}

func (a *Acquirer) count(verdict string) {
	if a.metrics != nil {
		a.metrics.ProviderItemsTotal.WithLabelValues(a.info.Name, verdict).Inc()
	}
}

func (a *Acquirer) notFound() string {
	return fmt.Sprintf("No %s %s found for this topic", a.info.Display, a.info.Noun)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
