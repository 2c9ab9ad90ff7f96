package evidence

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/index"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
)

// Retriever answers top-k queries over the local corpus.
type Retriever interface {
	Query(text string, k int) []index.Result
}

// Source is a web evidence provider. Acquire only fails when ctx is done;
// provider faults degrade to an empty Acquisition.
type Source interface {
	Name() string
	Acquire(ctx context.Context, topic string, maxItems int) (Acquisition, error)
}

// WebRequest asks one source for up to MaxItems items.
type WebRequest struct {
	Source   Source
	MaxItems int
}

// Plan describes which sources a run consults. A nil Local skips the
// local corpus.
type Plan struct {
	Local Retriever
	TopK  int
	Web   []WebRequest
}

// Pool is the merged evidence of one run.
type Pool struct {
	Items        []Item        `json:"items"`
	Sources      []string      `json:"sources"`
	Acquisitions []Acquisition `json:"acquisitions"`
}

// Empty reports whether no source contributed anything.
func (p *Pool) Empty() bool {
	return len(p.Items) == 0
}

// Gather queries the local index and every web source concurrently, then
// merges the results: local hits first, then web sources in plan order.
// Source labels keep their first-seen order without duplicates.
func Gather(ctx context.Context, topic string, plan Plan) (*Pool, error) {
	log := logger.FromContext(ctx).With("component", "evidence")

	var local []Item
	acqs := make([]Acquisition, len(plan.Web))

	g, gctx := errgroup.WithContext(ctx)
	if plan.Local != nil {
		g.Go(func() error {
			for _, r := range plan.Local.Query(topic, plan.TopK) {
				local = append(local, Item{
					Text:        r.Chunk.Text,
					SourceLabel: r.Chunk.SourceID,
					Origin:      OriginLocal,
					Score:       r.Score,
					Ref:         r.Chunk.ID(),
				})
			}
			return nil
		})
	}
	for i, req := range plan.Web {
		g.Go(func() error {
			acq, err := req.Source.Acquire(gctx, topic, req.MaxItems)
			if err != nil {
				return err
			}
			if acq.Provider == "" {
				acq.Provider = req.Source.Name()
			}
			acqs[i] = acq
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool := &Pool{Items: []Item{}, Sources: []string{}, Acquisitions: acqs}
	pool.add(local...)
	for _, a := range acqs {
		pool.add(a.Items...)
		log.Info("web evidence acquired",
			"provider", a.Provider,
			"items", len(a.Items),
			"fallback", a.IsFallback,
			"message", a.Message,
		)
	}
	log.Log(ctx, levelFor(pool), "evidence gathered", "items", len(pool.Items), "sources", len(pool.Sources))
	return pool, nil
}

func (p *Pool) add(items ...Item) {
	for _, it := range items {
		p.Items = append(p.Items, it)
		if !slices.Contains(p.Sources, it.SourceLabel) {
			p.Sources = append(p.Sources, it.SourceLabel)
		}
	}
}

func levelFor(p *Pool) slog.Level {
	if p.Empty() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
