package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/history"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/research"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/middleware"
)

const adminToken = "s3cret"

var okGenerator = llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
	return "generated text", nil
})

type testServer struct {
	*httptest.Server
	svc *research.Service
	agg *analytics.Aggregator
}

func newTestServer(t *testing.T, gen llm.Generator, limiter *pkgmw.Limiter, opts ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Corpus.FilesDir = t.TempDir()
	cfg.Pipeline.Timeout = 5 * time.Second
	cfg.Server.MaxUploadBytes = 1 << 20
	for _, opt := range opts {
		opt(cfg)
	}
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Corpus.FilesDir, "reefs.txt"),
		[]byte("Coral reefs bleach when ocean temperatures rise."), 0o644))

	agg := analytics.NewAggregator()
	hist := history.NewMemory(10)
	svc, err := research.New(cfg, research.Deps{
		Generator: gen,
		History:   hist,
		Tracker:   trackerFunc(func(e analytics.Event) { agg.Track(e.Key(), e) }),
	})
	require.NoError(t, err)

	checker := health.NewChecker()
	srv := httptest.NewServer(New(handler.New(svc, hist, nil, cfg), Options{
		Analytics:  analytics.NewHandler(agg, nil),
		Health:     checker,
		Metrics:    metrics.New(nil),
		Limiter:    limiter,
		AdminToken: adminToken,
		Timeout:    10 * time.Second,
	}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, svc: svc, agg: agg}
}

type trackerFunc func(analytics.Event)

func (f trackerFunc) Track(e analytics.Event) { f(e) }

func (s *testServer) do(t *testing.T, method, path string, body any, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (s *testServer) initialize(t *testing.T) {
	t.Helper()
	require.NoError(t, s.svc.Initialize(context.Background()))
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)

	resp, body := s.do(t, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, false, body["system_initialized"])
	assert.NotEmpty(t, resp.Header.Get(pkgmw.RequestIDHeader))

	resp, body = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "NotInitialized", body["kind"])

	s.initialize(t)
	resp, body = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["document_count"])

	resp, body = s.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["status"])
}

func TestResearchEndpoint(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	s.initialize(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/research", map[string]any{
		"topic":         "coral reefs",
		"use_wikipedia": false,
		"use_arxiv":     false,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "coral reefs", body["topic"])
	assert.Equal(t, "generated text", body["critique_b"])
	assert.Equal(t, []any{"reefs.txt"}, body["sources"])
	runID := body["run_id"]

	resp, body = s.do(t, http.MethodGet, "/api/v1/research/history", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := body["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].(map[string]any)["run_id"])

	resp, body = s.do(t, http.MethodGet, "/api/v1/analytics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total_runs"])
}

func TestResearchValidation(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	s.initialize(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/research", map[string]any{
		"topic":                  "",
		"max_wikipedia_articles": 0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidInput", body["kind"])
	assert.Len(t, body["fields"], 2)

	resp, body = s.do(t, http.MethodPost, "/api/v1/research", []byte("{not json"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidInput", body["kind"])
}

func TestResearchGenerationFailure(t *testing.T) {
	failing := llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model overloaded")
	})
	s := newTestServer(t, failing, nil)
	s.initialize(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/research", map[string]any{"topic": "coral"}, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "GenerationError", body["kind"])
	assert.Equal(t, "drafting", body["stage"])
	assert.NotEmpty(t, body["run_id"])
	assert.NotContains(t, body, "summary")
}

func TestResearchTimeout(t *testing.T) {
	slow := llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := newTestServer(t, slow, nil, func(c *config.Config) {
		c.Pipeline.Timeout = 50 * time.Millisecond
	})
	s.initialize(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/research", map[string]any{"topic": "coral"}, nil)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, "TimeoutError", body["kind"])
	assert.Equal(t, "drafting", body["stage"])
}

func TestResearchRateLimited(t *testing.T) {
	s := newTestServer(t, okGenerator, pkgmw.NewLimiter(1))
	s.initialize(t)

	req := map[string]any{"topic": "coral", "use_wikipedia": false, "use_arxiv": false}
	resp, _ := s.do(t, http.MethodPost, "/api/v1/research", req, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/api/v1/research", req, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RateLimited", body["kind"])
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestReinitializeRequiresAdminToken(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)

	resp, body := s.do(t, http.MethodPost, "/api/v1/reinitialize", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing api key", body["message"])

	resp, _ = s.do(t, http.MethodPost, "/api/v1/reinitialize", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/v1/reinitialize", nil, map[string]string{"Authorization": "Bearer " + adminToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])
	info := body["info"].(map[string]any)
	assert.Equal(t, []any{"reefs.txt"}, info["documents"])
}

func upload(t *testing.T, s *testServer, name, content string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return s.do(t, http.MethodPost, "/api/v1/documents", buf.Bytes(), map[string]string{
		"Content-Type": mw.FormDataContentType(),
		"X-API-Key":    adminToken,
	})
}

func TestUploadDocumentRebuildsIndex(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	s.initialize(t)

	resp, body := upload(t, s, "volcanoes.md", "Volcanoes erupt when magma pressure builds.")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "volcanoes.md", body["document"])
	assert.Equal(t, []string{"reefs.txt", "volcanoes.md"}, s.svc.Info().Documents)

	resp, body = s.do(t, http.MethodGet, "/api/v1/index/search?q=magma&k=1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "volcanoes.md", results[0].(map[string]any)["source"])

	resp, body = upload(t, s, "notes.docx", "binary")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidInput", body["kind"])
}

func TestConfigHidesSecrets(t *testing.T) {
	s := newTestServer(t, okGenerator, nil)
	resp, body := s.do(t, http.MethodGet, "/api/v1/config", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["api_key_set"])
	assert.EqualValues(t, 1000, body["chunk_size"])
	for k := range body {
		assert.False(t, strings.Contains(strings.ToLower(k), "password"))
	}
}
