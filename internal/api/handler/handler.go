// Package handler implements the research API's HTTP endpoints on top of
// the research service.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/events"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/history"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/research"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/logger"
)

const maxRequestBody = 64 << 10

// Handler serves research, corpus and introspection endpoints.
type Handler struct {
	svc      *research.Service
	history  history.Store
	notifier *events.Notifier
	cfg      *config.Config
	logger   *slog.Logger
}

// New builds a Handler. history may be nil. When notifier is nil an upload
// rebuilds the index in-process instead of announcing the change.
func New(svc *research.Service, hist history.Store, notifier *events.Notifier, cfg *config.Config) *Handler {
	return &Handler{
		svc:      svc,
		history:  hist,
		notifier: notifier,
		cfg:      cfg,
		logger:   slog.Default().With("component", "api-handler"),
	}
}

type statusResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	SystemInitialized bool   `json:"system_initialized"`
	DocumentCount     *int   `json:"document_count,omitempty"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Status  string                `json:"status"`
	Kind    string                `json:"kind"`
	Stage   string                `json:"stage,omitempty"`
	Message string                `json:"message"`
	RunID   string                `json:"run_id,omitempty"`
	Fields  []research.FieldError `json:"fields,omitempty"`
}

// Root reports that the API is up.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResponse{
		Status:            "running",
		Message:           "Multi-Agent Research Assistant API",
		SystemInitialized: h.svc.Initialized(),
	})
}

// Health answers 503 until the first snapshot is published.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Initialized() {
		h.writeError(w, r, apperrors.ErrNotInitialized, "")
		return
	}
	n := len(h.svc.Info().Documents)
	h.writeJSON(w, http.StatusOK, statusResponse{
		Status:            "healthy",
		Message:           "Service is running",
		SystemInitialized: true,
		DocumentCount:     &n,
	})
}

// Research runs the pipeline for one topic.
func (h *Handler) Research(w http.ResponseWriter, r *http.Request) {
	var req research.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body: %v", err), "")
		return
	}

	res, err := h.svc.Research(r.Context(), req)
	if err != nil {
		runID := ""
		if res != nil {
			runID = res.RunID
		}
		h.writeError(w, r, err, runID)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Reinitialize rebuilds the index. ?clear_cache=true also drops cached
// provider responses.
func (h *Handler) Reinitialize(w http.ResponseWriter, r *http.Request) {
	clearCache, _ := strconv.ParseBool(r.URL.Query().Get("clear_cache"))
	info, err := h.svc.Reinitialize(r.Context(), research.ReinitializeOptions{ClearFetchCache: clearCache})
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":             "success",
		"message":            "Research service reinitialized successfully",
		"system_initialized": true,
		"info":               info,
	})
}

// Info describes the current corpus snapshot and providers.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Info())
}

// Config returns the effective settings without secrets.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	c := h.cfg
	h.writeJSON(w, http.StatusOK, map[string]any{
		"llm_model":              c.LLM.Model,
		"llm_temperature":        c.LLM.Temperature,
		"chunk_size":             c.Corpus.ChunkSize,
		"chunk_overlap":          c.Corpus.ChunkOverlap,
		"bm25_top_k":             c.Retrieval.TopK,
		"wikipedia_enabled":      c.Sources.Wikipedia.Enabled,
		"wikipedia_max_articles": c.Sources.Wikipedia.MaxItems,
		"arxiv_enabled":          c.Sources.Arxiv.Enabled,
		"arxiv_max_papers":       c.Sources.Arxiv.MaxItems,
		"max_snippet_length":     c.Retrieval.MaxSnippetLength,
		"pipeline_timeout":       c.Pipeline.Timeout.String(),
		"files_dir":              c.Corpus.FilesDir,
		"api_key_set":            c.LLM.APIKey != "",
	})
}

// UploadDocument stores a multipart "file" in the corpus folder, then
// announces the change or rebuilds directly.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "multipart field \"file\" is required: %v", err), "")
		return
	}
	defer file.Close()

	name, err := h.svc.Loader().Save(header.Filename, file, maxBytes)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}

	resp := map[string]any{"status": "success", "document": name}
	if h.notifier != nil {
		err := h.notifier.Notify(r.Context(), events.CorpusChanged{
			Action:    events.ActionUploaded,
			Document:  name,
			RequestID: logger.RequestID(r.Context()),
		})
		if err == nil {
			resp["message"] = "Document stored; the index will be rebuilt shortly"
			h.writeJSON(w, http.StatusAccepted, resp)
			return
		}
		h.logger.Warn("corpus event not published, rebuilding in-process", "document", name, "error", err)
	}

	info, err := h.svc.Reinitialize(r.Context(), research.ReinitializeOptions{})
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	resp["message"] = "Document stored and indexed"
	resp["info"] = info
	h.writeJSON(w, http.StatusCreated, resp)
}

// SearchIndex runs a bare BM25 query: ?q=...&k=...
func (h *Handler) SearchIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter q is required"), "")
		return
	}
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	results, err := h.svc.Query(q, min(k, 50))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	type hit struct {
		ID       string  `json:"id"`
		SourceID string  `json:"source"`
		Page     int     `json:"page"`
		Score    float64 `json:"score"`
		Text     string  `json:"text"`
	}
	hits := make([]hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, hit{
			ID:       res.Chunk.ID(),
			SourceID: res.Chunk.SourceID,
			Page:     res.Chunk.PageIndex,
			Score:    res.Score,
			Text:     res.Chunk.Text,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": hits, "count": len(hits)})
}

// History lists recent runs, newest first. ?limit= defaults to 20, max 100.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"runs": []history.Record{}, "count": 0})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	runs, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list research history", "error", err)
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err onto its status code and taxonomy kind.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, runID string) {
	status := apperrors.HTTPStatusCode(err)
	body := errorResponse{
		Status:  "error",
		Kind:    apperrors.Kind(err),
		Stage:   apperrors.Stage(err),
		Message: err.Error(),
		RunID:   runID,
	}
	var verr *research.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"path", r.URL.Path, "kind", body.Kind, "stage", body.Stage, "error", err)
	}
	h.writeJSON(w, status, body)
}
