package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/kafka"
)

const maxLatencies = 10000

type AggregatedStats struct {
	TotalRuns         int64            `json:"total_runs"`
	SucceededRuns     int64            `json:"succeeded_runs"`
	FailedRuns        int64            `json:"failed_runs"`
	ErrorsByKind      map[string]int64 `json:"errors_by_kind"`
	NoEvidenceRuns    int64            `json:"no_evidence_runs"`
	FallbackRuns      int64            `json:"fallback_runs"`
	ItemsByOrigin     map[string]int64 `json:"items_by_origin"`
	Reinitializations int64            `json:"reinitializations"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopTopics         []TopicCount     `json:"top_topics"`
	FailedTopics      []TopicCount     `json:"failed_topics"`
	RunsPerMinute     float64          `json:"runs_per_minute"`
}

type TopicCount struct {
	Topic string `json:"topic"`
	Count int64  `json:"count"`
}

// Aggregator folds research and reinitialize events into running totals.
// It is fed either by the Kafka consumer (HandleEvent) or directly as a
// Sink when no brokers are configured.
type Aggregator struct {
	mu                sync.RWMutex
	totalRuns         atomic.Int64
	succeeded         atomic.Int64
	failed            atomic.Int64
	noEvidence        atomic.Int64
	fallbacks         atomic.Int64
	reinitializations atomic.Int64
	latencies         []int64
	errorsByKind      map[string]int64
	itemsByOrigin     map[string]int64
	topicCounts       map[string]int64
	failedTopics      map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:     make([]int64, 0, 1024),
		errorsByKind:  make(map[string]int64),
		itemsByOrigin: make(map[string]int64),
		topicCounts:   make(map[string]int64),
		failedTopics:  make(map[string]int64),
		startTime:     time.Now(),
		logger:        slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track implements Sink.
func (a *Aggregator) Track(_ string, value any) {
	switch e := value.(type) {
	case ResearchEvent:
		a.recordResearchEvent(e)
	case ReinitializeEvent:
		a.recordReinitializeEvent(e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "type", fmt.Sprintf("%T", value))
	}
}

// HandleEvent decodes Kafka messages by their "type" field.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var envelope struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch envelope.Type {
		case EventResearch:
			event, err := kafka.DecodeJSON[ResearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode research event", "error", err)
				return nil
			}
			agg.recordResearchEvent(event)
		case EventReinitialize:
			event, err := kafka.DecodeJSON[ReinitializeEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode reinitialize event", "error", err)
				return nil
			}
			agg.recordReinitializeEvent(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", envelope.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordResearchEvent(event ResearchEvent) {
	a.totalRuns.Add(1)
	if event.Status == "success" {
		a.succeeded.Add(1)
	} else {
		a.failed.Add(1)
	}
	if event.Status == "success" && event.Sources == 0 {
		a.noEvidence.Add(1)
	}
	if len(event.Fallbacks) > 0 {
		a.fallbacks.Add(1)
	}

	topic := strings.ToLower(strings.TrimSpace(event.Topic))
	a.mu.Lock()
	if len(a.latencies) >= maxLatencies {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.topicCounts[topic]++
	if event.ErrorKind != "" {
		a.errorsByKind[event.ErrorKind]++
		a.failedTopics[topic]++
	}
	for origin, n := range event.ItemsByOrigin {
		a.itemsByOrigin[origin] += int64(n)
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordReinitializeEvent(event ReinitializeEvent) {
	a.reinitializations.Add(1)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRuns:         a.totalRuns.Load(),
		SucceededRuns:     a.succeeded.Load(),
		FailedRuns:        a.failed.Load(),
		NoEvidenceRuns:    a.noEvidence.Load(),
		FallbackRuns:      a.fallbacks.Load(),
		Reinitializations: a.reinitializations.Load(),
		ErrorsByKind:      maps.Clone(a.errorsByKind),
		ItemsByOrigin:     maps.Clone(a.itemsByOrigin),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopTopics = topN(a.topicCounts, 10)
	stats.FailedTopics = topN(a.failedTopics, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RunsPerMinute = float64(stats.TotalRuns) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then topic, so equal counts are stable.
func topN(counts map[string]int64, n int) []TopicCount {
	result := make([]TopicCount, 0, len(counts))
	for topic, count := range counts {
		result = append(result, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Topic < result[j].Topic
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
