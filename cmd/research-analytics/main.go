// Command research-analytics runs the analytics aggregation on its own.
//
// It consumes research and reinitialize events from Kafka under a shared
// consumer group, aggregates them in memory (runs, errors by kind, latency
// percentiles, top topics), snapshots the totals to PostgreSQL when a host
// is configured, and serves GET /api/v1/analytics for dashboards. Use it
// when several research-api replicas should report one set of numbers.
//
// Usage:
//
//	go run ./cmd/research-analytics [-config configs/docker.yaml] [-port 8001]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/postgres"
)

// main boots the consumer and aggregator, the optional snapshot store and
// the HTTP API. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8001, "HTTP port")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("research-analytics needs kafka brokers; set kafka.brokers or RA_KAFKA_BROKERS")
		os.Exit(1)
	}
	slog.Info("starting research analytics", "port", *port, "topic", cfg.Kafka.Topics.ResearchEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ResearchEvents, "analytics", analytics.HandleEvent(aggregator))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	var snapshots analytics.SnapshotLister
	var snapshotsDone <-chan struct{}
	if cfg.Postgres.Host != "" {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx, store.Schema...); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		st := store.New(db)
		snapshots = st
		snapshotsDone = st.StartPeriodicSave(ctx, aggregator, cfg.Postgres.SnapshotEvery)
		checker.RegisterPing("postgres", false, db.Ping)
	}

	h := analytics.NewHandler(aggregator, snapshots)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("research analytics listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-consumerDone
	if snapshotsDone != nil {
		<-snapshotsDone
	}
	slog.Info("research analytics stopped")
}
