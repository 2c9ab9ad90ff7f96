// Command research-api starts the research assistant HTTP service.
//
// It loads the local document folder into a BM25 index, wires the
// Wikipedia and arXiv providers behind circuit breakers and an optional
// Redis fetch cache, and serves the research pipeline over HTTP. Postgres
// (run history, analytics snapshots) and Kafka (analytics and corpus
// events) are optional; without them history and analytics stay in memory
// and uploads rebuild the index in-process.
//
// Usage:
//
//	go run ./cmd/research-api [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/events"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/history"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/research"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources/arxiv"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/sources/wikipedia"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/redis"
)

// main wires the optional backends, builds the research service, performs
// the initial index build and serves HTTP until SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	// GROQ_API_KEY and friends usually live in a local .env file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting research api",
		"port", cfg.Server.Port,
		"files_dir", cfg.Corpus.FilesDir,
		"model", cfg.LLM.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	instance, _ := os.Hostname()

	// Redis fetch cache. Research works without it, so a failed connection
	// only disables caching.
	var cache research.Cache
	if cfg.Redis.Addr != "" {
		rc, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, fetch cache disabled", "error", err)
		} else {
			defer rc.Close()
			cache = rc
			checker.RegisterPing("redis", true, rc.Ping)
			slog.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	// PostgreSQL for run history and analytics snapshots.
	agg := analytics.NewAggregator()
	var hist history.Store = history.NewMemory(0)
	var snapshots analytics.SnapshotLister
	var snapshotsDone <-chan struct{}
	if cfg.Postgres.Host != "" {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx, slices.Concat(history.Schema, store.Schema)...); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		hist = history.NewPostgresStore(db)
		st := store.New(db)
		snapshots = st
		snapshotsDone = st.StartPeriodicSave(ctx, agg, cfg.Postgres.SnapshotEvery)
		checker.RegisterPing("postgres", false, db.Ping)
		slog.Info("connected to postgres")
	}

	// Kafka: analytics events go through a batch producer and come back to
	// the aggregator through a consumer; without brokers the collector feeds
	// the aggregator directly.
	var sink analytics.Sink = agg
	var batch *collector.BatchCollector
	var notifier *events.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		researchProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ResearchEvents)
		defer researchProducer.Close()
		batch = collector.NewBatchCollector(researchProducer, 100, 5*time.Second)
		batch.Start(ctx)
		sink = batch

		corpusProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusEvents)
		defer corpusProducer.Close()
		notifier = events.NewNotifier(corpusProducer)

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ResearchEvents, "analytics-"+instance, analytics.HandleEvent(agg))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumers active"}
		})
		slog.Info("kafka enabled", "brokers", cfg.Kafka.Brokers)
	}
	tracker := analytics.NewCollector(sink, 1024)
	tracker.Start(ctx)

	gen := llm.New(cfg.LLM)
	if !gen.Configured() {
		slog.Warn("no LLM api key configured; research runs will fail at the drafting stage")
	}

	ua := cfg.Sources.UserAgent
	svc, err := research.New(cfg, research.Deps{
		Generator: gen,
		Providers: []research.Provider{
			{
				Client: wikipedia.New(cfg.Sources.Wikipedia.BaseURL, ua, cfg.Sources.Wikipedia.FetchTimeout),
				Config: cfg.Sources.Wikipedia,
			},
			{
				Client: arxiv.New(cfg.Sources.Arxiv.BaseURL, ua, cfg.Sources.Arxiv.FetchTimeout),
				Config: cfg.Sources.Arxiv,
			},
		},
		Cache:    cache,
		CacheTTL: cfg.Redis.CacheTTL,
		Metrics:  m,
		Tracker:  tracker,
		History:  hist,
	})
	if err != nil {
		slog.Error("failed to build research service", "error", err)
		os.Exit(1)
	}

	// The API still starts when the first build fails; /health answers 503
	// until a reinitialize succeeds.
	if err := svc.Initialize(ctx); err != nil {
		slog.Error("initial index build failed", "error", err)
	}

	if notifier != nil {
		rebuild := func(ctx context.Context) error {
			_, err := svc.Reinitialize(ctx, research.ReinitializeOptions{})
			return err
		}
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusEvents, "corpus-"+instance, events.Handler(rebuild))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("corpus consumer error", "error", err)
			}
		}()
	}

	var limiter *middleware.Limiter
	if cfg.Server.ResearchPerMinute > 0 {
		limiter = middleware.NewLimiter(cfg.Server.ResearchPerMinute)
		go limiter.Cleanup(ctx, time.Minute, 10*time.Minute)
	}
	if cfg.Server.AdminToken == "" {
		slog.Warn("no admin token configured; reinitialize and uploads are open")
	}

	chain := router.New(handler.New(svc, hist, notifier, cfg), router.Options{
		Analytics:  analytics.NewHandler(agg, snapshots),
		Health:     checker,
		Metrics:    m,
		Limiter:    limiter,
		AdminToken: cfg.Server.AdminToken,
		Timeout:    cfg.Pipeline.Timeout + 15*time.Second,
	})

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("research api listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// Handlers may still be tracking runs until Shutdown returns; drain
	// analytics after that and before the producers and database close.
	<-drained
	tracker.Close()
	if batch != nil {
		batch.Close()
	}
	if snapshotsDone != nil {
		<-snapshotsDone
	}
	slog.Info("research api stopped")
}
