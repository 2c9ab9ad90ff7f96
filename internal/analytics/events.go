package analytics

import "time"

type EventType string

const (
	EventResearch     EventType = "research"
	EventReinitialize EventType = "reinitialize"
)

// ResearchEvent summarizes one finished research run.
type ResearchEvent struct {
	Type         EventType      `json:"type"`
	RunID        string         `json:"run_id"`
	Topic        string         `json:"topic"`
	Status       string         `json:"status"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorStage   string         `json:"error_stage,omitempty"`
	LatencyMs    int64          `json:"latency_ms"`
	Sources      int            `json:"sources"`
	ItemsByOrigin map[string]int `json:"items_by_origin,omitempty"`
	Fallbacks    []string       `json:"fallbacks,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	RequestID    string         `json:"request_id,omitempty"`
}

// ReinitializeEvent summarizes one corpus rebuild.
type ReinitializeEvent struct {
	Type      EventType `json:"type"`
	Status    string    `json:"status"`
	Documents int       `json:"documents"`
	Chunks    int       `json:"chunks"`
	Skipped   int       `json:"skipped"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the partition key for e.
func (e ResearchEvent) Key() string { return e.RunID }

func (e ReinitializeEvent) Key() string { return string(EventReinitialize) }

// Event is implemented by every analytics event.
type Event interface {
	Key() string
}
