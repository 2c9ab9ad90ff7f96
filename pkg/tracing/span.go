// Package tracing records lightweight spans for research runs. Spans form a
// parent/child tree carried on the context, and a finished root can be
// flattened into per-stage timings or logged via slog.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

// Span represents a timed operation within a run.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Err       error

	mu       sync.Mutex
	children []*Span
	attrs    map[string]any
}

// Timing is the flattened form of a finished span.
type Timing struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Failed     bool   `json:"failed,omitempty"`
}

// Start opens a span. If ctx already carries a span the new one becomes its
// child and inherits the trace id; otherwise it is a root keyed by traceID.
func Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		attrs:     make(map[string]any),
	}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, span), span
}

// FromContext extracts the current Span from ctx, or nil if none.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// End records the duration and the error, if any, the operation ended with.
func (s *Span) End(err error) {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.Err = err
	s.mu.Unlock()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// Timings returns the direct children of s in start order.
func (s *Span) Timings() []Timing {
	s.mu.Lock()
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()
	out := make([]Timing, 0, len(children))
	for _, c := range children {
		c.mu.Lock()
		out = append(out, Timing{Name: c.Name, DurationMS: c.Duration.Milliseconds(), Failed: c.Err != nil})
		c.mu.Unlock()
	}
	return out
}

// Log writes the span tree to logger at debug level.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	for k, v := range s.attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()
	logger.Debug("span", attrs...)
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
