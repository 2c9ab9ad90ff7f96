package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func researchEvent(topic, status, kind string, latency int64, sources int) ResearchEvent {
	return ResearchEvent{
		Type:      EventResearch,
		RunID:     topic + status,
		Topic:     topic,
		Status:    status,
		ErrorKind: kind,
		LatencyMs: latency,
		Sources:   sources,
		Timestamp: time.Now(),
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Track("", researchEvent("Coral Reefs", "success", "", 100, 3))
	agg.Track("", researchEvent("coral reefs", "success", "", 300, 0))
	agg.Track("", researchEvent("quantum computing", "error", "TimeoutError", 500, 0))
	ev := researchEvent("ai ethics", "success", "", 200, 2)
	ev.Fallbacks = []string{"wikipedia"}
	ev.ItemsByOrigin = map[string]int{"local": 2, "wikipedia": 1}
	agg.Track("", ev)
	agg.Track("", ReinitializeEvent{Type: EventReinitialize, Status: "success"})

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalRuns)
	assert.Equal(t, int64(3), stats.SucceededRuns)
	assert.Equal(t, int64(1), stats.FailedRuns)
	assert.Equal(t, int64(1), stats.NoEvidenceRuns)
	assert.Equal(t, int64(1), stats.FallbackRuns)
	assert.Equal(t, int64(1), stats.Reinitializations)
	assert.Equal(t, map[string]int64{"TimeoutError": 1}, stats.ErrorsByKind)
	assert.Equal(t, map[string]int64{"local": 2, "wikipedia": 1}, stats.ItemsByOrigin)
	assert.InDelta(t, 275.0, stats.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(300), stats.P50LatencyMs)
	assert.Equal(t, int64(500), stats.P99LatencyMs)

	require.NotEmpty(t, stats.TopTopics)
	assert.Equal(t, TopicCount{Topic: "coral reefs", Count: 2}, stats.TopTopics[0])
	assert.Equal(t, []TopicCount{{Topic: "quantum computing", Count: 1}}, stats.FailedTopics)
}

func TestHandleEventDecodesByType(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	research, err := json.Marshal(researchEvent("coral", "success", "", 10, 1))
	require.NoError(t, err)
	reinit, err := json.Marshal(ReinitializeEvent{Type: EventReinitialize, Status: "success", Chunks: 4})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, handle(ctx, nil, research))
	require.NoError(t, handle(ctx, nil, reinit))
	require.NoError(t, handle(ctx, nil, []byte("not json")), "bad messages are skipped, not retried")
	require.NoError(t, handle(ctx, nil, []byte(`{"type":"other"}`)))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(1), stats.Reinitializations)
}

type recordingSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingSink) Track(key string, value any) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
}

func TestCollectorForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, 8)
	c.Start(context.Background())

	c.Track(researchEvent("a", "success", "", 1, 0))
	c.Track(ReinitializeEvent{Type: EventReinitialize})
	c.Close()

	assert.Equal(t, []string{"asuccess", "reinitialize"}, sink.keys)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink, 1)
	// not started: the second event has nowhere to go
	c.Track(researchEvent("a", "success", "", 1, 0))
	c.Track(researchEvent("b", "success", "", 1, 0))

	c.Start(context.Background())
	c.Close()
	assert.Equal(t, []string{"asuccess"}, sink.keys)
}

type stubLister struct {
	snaps []AggregatedStats
	err   error
}

func (s stubLister) ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error) {
	if len(s.snaps) > limit {
		return s.snaps[:limit], s.err
	}
	return s.snaps, s.err
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Track("", researchEvent("coral", "success", "", 10, 1))

	t.Run("stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(agg, nil).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got AggregatedStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(1), got.TotalRuns)
	})

	t.Run("snapshots without store", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(agg, nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("snapshots limit", func(t *testing.T) {
		lister := stubLister{snaps: []AggregatedStats{{TotalRuns: 3}, {TotalRuns: 2}, {TotalRuns: 1}}}
		rec := httptest.NewRecorder()
		NewHandler(agg, lister).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=2", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []AggregatedStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
		assert.Equal(t, int64(3), got[0].TotalRuns)
	})

	t.Run("snapshots error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(agg, stubLister{err: errors.New("db down")}).
			Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
