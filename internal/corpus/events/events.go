// Package events announces local corpus changes on Kafka and rebuilds the
// index when one arrives, so every API replica picks up uploaded documents.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/kafka"
)

type Action string

const (
	ActionUploaded Action = "uploaded"
	ActionRemoved  Action = "removed"
)

// CorpusChanged is published after a document lands in the files
// directory.
type CorpusChanged struct {
	Action    Action    `json:"action"`
	Document  string    `json:"document"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Notifier publishes CorpusChanged events.
type Notifier struct {
	publisher kafka.Publisher
	logger    *slog.Logger
}

func NewNotifier(p kafka.Publisher) *Notifier {
	return &Notifier{
		publisher: p,
		logger:    slog.Default().With("component", "corpus-notifier"),
	}
}

func (n *Notifier) Notify(ctx context.Context, event CorpusChanged) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := n.publisher.Publish(ctx, kafka.Event{Key: event.Document, Value: event}); err != nil {
		return err
	}
	n.logger.Info("corpus change published", "action", event.Action, "document", event.Document)
	return nil
}

// ReinitializeFunc rebuilds the local index.
type ReinitializeFunc func(ctx context.Context) error

// Handler returns a Kafka handler that rebuilds on each change. An event
// stamped before the last rebuild started is already covered by it and is
// skipped. The consumer calls the handler from one goroutine.
func Handler(rebuild ReinitializeFunc) kafka.MessageHandler {
	logger := slog.Default().With("component", "corpus-listener")
	var last time.Time
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[CorpusChanged](value)
		if err != nil {
			logger.Error("failed to decode corpus event", "error", err)
			return nil
		}
		if !last.IsZero() && event.Timestamp.Before(last) {
			logger.Debug("corpus event already covered by last rebuild", "document", event.Document)
			return nil
		}
		logger.Info("corpus changed, reinitializing", "action", event.Action, "document", event.Document)
		last = time.Now().UTC()
		return rebuild(ctx)
	}
}
