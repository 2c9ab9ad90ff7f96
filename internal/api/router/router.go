// Package router wires the research API routes and applies the middleware
// chain (RequestID → CORS → Timeout → Metrics).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/middleware"
)

// Options carries the pieces the router wraps around the handler. Nil
// Metrics and Limiter disable those middlewares.
type Options struct {
	Analytics  *analytics.Handler
	Health     *health.Checker
	Metrics    *metrics.Metrics
	Limiter    *pkgmw.Limiter
	AdminToken string
	Timeout    time.Duration
}

// New builds the HTTP handler.
//
// Route table:
//
//	GET    /                              → status
//	GET    /health                        → service health (503 until initialized)
//	GET    /health/live                   → liveness
//	GET    /health/ready                  → dependency readiness
//	POST   /api/v1/research               → run the research pipeline (rate limited)
//	POST   /api/v1/reinitialize           → rebuild the local index (admin)
//	POST   /api/v1/documents              → upload a document (admin)
//	GET    /api/v1/info                   → corpus snapshot and providers
//	GET    /api/v1/config                 → effective settings, no secrets
//	GET    /api/v1/index/search           → bare BM25 lookup
//	GET    /api/v1/research/history       → recent runs
//	GET    /api/v1/analytics              → live run statistics
//	GET    /api/v1/analytics/snapshots    → persisted statistics
//	GET    /metrics                       → Prometheus
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()
	admin := pkgmw.AdminToken(opts.AdminToken)

	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	mux.Handle("POST /api/v1/research", pkgmw.RateLimit(opts.Limiter)(http.HandlerFunc(h.Research)))
	mux.HandleFunc("GET /api/v1/research/history", h.History)

	mux.Handle("POST /api/v1/reinitialize", admin(http.HandlerFunc(h.Reinitialize)))
	mux.Handle("POST /api/v1/documents", admin(http.HandlerFunc(h.UploadDocument)))
	mux.HandleFunc("GET /api/v1/info", h.Info)
	mux.HandleFunc("GET /api/v1/config", h.Config)
	mux.HandleFunc("GET /api/v1/index/search", h.SearchIndex)

	if opts.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", opts.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", opts.Analytics.Snapshots)
	}
	mux.Handle("GET /metrics", metrics.Handler())

	// Metrics must see the request the mux annotates with its pattern, so
	// it sits inside Timeout, which swaps in a new request.
	var chain http.Handler = mux
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	if opts.Timeout > 0 {
		chain = pkgmw.Timeout(opts.Timeout)(chain)
	}
	chain = pkgmw.CORS(pkgmw.DefaultCORSConfig())(chain)
	chain = pkgmw.RequestID(chain)
	return chain
}
