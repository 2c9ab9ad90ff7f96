// Package research owns the long-lived state behind the API: the indexed
// local corpus and the configured web sources, published together as one
// immutable snapshot. Runs capture the snapshot once when they start, so a
// concurrent Reinitialize never changes what an in-flight run reads.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/chunker"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/index"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/loader"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/history"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/relevance"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources/fetchcache"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/resilience"
)

// Cache is the fetch cache backend, implemented by pkg/redis.Client.
type Cache interface {
	fetchcache.Store
	InvalidatePrefix(ctx context.Context, prefix string) (int64, error)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event analytics.Event)
}

// Provider pairs a web source client with its settings.
type Provider struct {
	Client sources.Provider
	Config config.ProviderConfig
}

// Deps are the collaborators of a Service. Only Generator is required.
type Deps struct {
	Generator  llm.Generator
	Providers  []Provider
	Extractors map[string]loader.Extractor
	Filter     *relevance.Filter
	Cache      Cache
	CacheTTL   time.Duration
	Metrics    *metrics.Metrics
	Tracker    Tracker
	History    history.Store
}

// ReinitializeOptions tune one rebuild.
type ReinitializeOptions struct {
	// ClearFetchCache drops cached provider responses as well.
	ClearFetchCache bool
}

type Service struct {
	cfg      *config.Config
	deps     Deps
	loader   *loader.Loader
	orch     *pipeline.Orchestrator
	breakers map[string]*resilience.CircuitBreaker
	polite   map[string]sources.Provider

	current  atomic.Pointer[snapshot]
	rebuild  sync.Mutex
	versions atomic.Int64
	logger   *slog.Logger
}

// New wires a Service. The corpus is not loaded until Initialize.
func New(cfg *config.Config, deps Deps) (*Service, error) {
	if deps.Generator == nil {
		return nil, apperrors.New(apperrors.ErrConfig, 0, "a generator is required")
	}
	ch, err := chunker.New(cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if deps.Filter == nil {
		deps.Filter = relevance.Default()
	}
	s := &Service{
		cfg:      cfg,
		deps:     deps,
		loader:   loader.New(cfg.Corpus.FilesDir, ch, deps.Extractors),
		breakers: make(map[string]*resilience.CircuitBreaker),
		polite:   make(map[string]sources.Provider),
		logger:   slog.Default().With("component", "research-service"),
	}
	s.orch = pipeline.New(deps.Generator, pipeline.Config{
		Timeout:          cfg.Pipeline.Timeout,
		MaxSnippetLength: cfg.Retrieval.MaxSnippetLength,
	}, deps.Metrics)

	for _, p := range deps.Providers {
		name := p.Client.Info().Name
		s.polite[name] = sources.Polite(p.Client, p.Config.PolitenessWait)
		s.breakers[name] = resilience.NewCircuitBreaker(name, resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, to resilience.State) {
				if deps.Metrics != nil {
					deps.Metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		})
	}
	return s, nil
}

// Initialize performs the first build. It is equivalent to Reinitialize
// without clearing the fetch cache.
func (s *Service) Initialize(ctx context.Context) error {
	_, err := s.Reinitialize(ctx, ReinitializeOptions{})
	return err
}

// Reinitialize reloads the files directory, rebuilds the index and the
// source acquirers, then publishes them as the new snapshot. Rebuilds are
// serialized; runs keep reading whichever snapshot they started with. On
// failure the previous snapshot stays in place.
func (s *Service) Reinitialize(ctx context.Context, opts ReinitializeOptions) (Info, error) {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	start := time.Now()
	log := logger.FromContext(ctx).With("component", "research-service")

	snap, err := s.build(ctx)
	if err != nil {
		s.observeReinitialize("error", nil, time.Since(start))
		log.Error("reinitialize failed", "error", err)
		return s.Info(), err
	}
	if opts.ClearFetchCache && s.deps.Cache != nil {
		n, err := s.deps.Cache.InvalidatePrefix(ctx, fetchcache.KeyPrefix)
		if err != nil {
			log.Warn("fetch cache invalidation failed", "error", err)
		} else {
			log.Info("fetch cache cleared", "keys", n)
		}
	}

	s.current.Store(snap)
	s.observeReinitialize("success", snap, time.Since(start))
	log.Info("research service ready",
		"version", snap.version,
		"documents", len(snap.documents),
		"chunks", snap.index.Len(),
		"skipped", len(snap.skipped),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap.info(s.cfg.Corpus.FilesDir), nil
}

func (s *Service) build(ctx context.Context) (*snapshot, error) {
	corpus, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	snap := &snapshot{
		index:     index.Build(corpus.Chunks),
		documents: corpus.Documents,
		skipped:   corpus.Skipped,
		builtAt:   time.Now().UTC(),
		version:   s.versions.Add(1),
	}
	for _, p := range s.deps.Providers {
		snap.sources = append(snap.sources, s.source(p))
	}
	return snap, nil
}

// source stacks the decorators: breaker and relevance in the acquirer, then
// the fetch cache, then the politeness limiter nearest the network, so a
// cache hit never waits. Limiters and breakers outlive snapshots.
func (s *Service) source(p Provider) sourceSlot {
	name := p.Client.Info().Name
	client := s.polite[name]
	if s.deps.Cache != nil {
		client = fetchcache.Wrap(client, s.deps.Cache, s.deps.CacheTTL, s.deps.Metrics)
	}
	return sourceSlot{
		name: name,
		cfg:  p.Config,
		acquirer: sources.NewAcquirer(client, s.deps.Filter, sources.AcquirerConfig{
			SearchLimit: p.Config.SearchLimit,
			Breaker:     s.breakers[name],
			Metrics:     s.deps.Metrics,
		}),
	}
}

// Research validates req and runs the pipeline against the current
// snapshot. The returned Result is non-nil whenever the run started.
func (s *Service) Research(ctx context.Context, req Request) (*pipeline.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	snap := s.current.Load()
	if snap == nil {
		return nil, apperrors.ErrNotInitialized
	}

	runID := uuid.NewString()
	res, err := s.orch.Run(ctx, pipeline.Request{
		RunID: runID,
		Topic: req.Topic,
		Plan:  snap.plan(&req, s.cfg.Retrieval.TopK),
	})
	s.record(ctx, res)
	return res, err
}

// Query runs a bare index lookup against the current snapshot.
func (s *Service) Query(text string, k int) ([]index.Result, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, apperrors.ErrNotInitialized
	}
	if k <= 0 {
		k = s.cfg.Retrieval.TopK
	}
	return snap.index.Query(text, k), nil
}

// Initialized reports whether a snapshot has been published.
func (s *Service) Initialized() bool {
	return s.current.Load() != nil
}

// Info describes the current snapshot.
func (s *Service) Info() Info {
	snap := s.current.Load()
	if snap == nil {
		return Info{FilesDir: s.cfg.Corpus.FilesDir, Providers: []ProviderInfo{}}
	}
	return snap.info(s.cfg.Corpus.FilesDir)
}

// Loader exposes the corpus loader for document uploads.
func (s *Service) Loader() *loader.Loader {
	return s.loader
}

func (s *Service) record(ctx context.Context, res *pipeline.Result) {
	if res == nil {
		return
	}
	rec := history.Record{
		RunID:     res.RunID,
		Topic:     res.Topic,
		Status:    res.Status,
		Summary:   res.Summary,
		Insight:   res.Insight,
		Sources:   res.Sources,
		LatencyMs: res.Duration.Milliseconds(),
		CreatedAt: res.StartedAt,
	}
	event := analytics.ResearchEvent{
		Type:          analytics.EventResearch,
		RunID:         res.RunID,
		Topic:         res.Topic,
		Status:        res.Status,
		LatencyMs:     res.Duration.Milliseconds(),
		Sources:       len(res.Sources),
		ItemsByOrigin: res.ItemCounts,
		Timestamp:     res.StartedAt,
		RequestID:     logger.RequestID(ctx),
	}
	if f := res.Failure; f != nil {
		rec.ErrorKind, rec.ErrorStage, rec.Message = f.Kind, f.Stage, f.Message
		event.ErrorKind, event.ErrorStage = f.Kind, f.Stage
	}
	for _, a := range res.Acquisitions {
		if a.IsFallback {
			event.Fallbacks = append(event.Fallbacks, a.Provider)
		}
	}

	if s.deps.Tracker != nil {
		s.deps.Tracker.Track(event)
	}
	if s.deps.History != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.deps.History.Save(saveCtx, rec); err != nil {
			s.logger.Warn("failed to store research run", "run_id", res.RunID, "error", err)
		}
	}
}

func (s *Service) observeReinitialize(status string, snap *snapshot, took time.Duration) {
	if m := s.deps.Metrics; m != nil {
		m.ReinitializeTotal.WithLabelValues(status).Inc()
		if snap != nil {
			m.IndexChunks.Set(float64(snap.index.Len()))
			m.IndexDocuments.Set(float64(len(snap.documents)))
		}
	}
	if s.deps.Tracker == nil {
		return
	}
	event := analytics.ReinitializeEvent{
		Type:      analytics.EventReinitialize,
		Status:    status,
		LatencyMs: took.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if snap != nil {
		event.Documents = len(snap.documents)
		event.Chunks = snap.index.Len()
		event.Skipped = len(snap.skipped)
	}
	s.deps.Tracker.Track(event)
}
