package analytics

import (
	"context"
	"log/slog"
)

// Sink receives events from the Collector. The Kafka batch collector and
// the in-process Aggregator both satisfy it.
type Sink interface {
	Track(key string, value any)
}

// Collector decouples request handlers from the sink: Track never blocks,
// and events are forwarded from a single goroutine.
type Collector struct {
	sink    Sink
	eventCh chan Event
	logger  *slog.Logger
	done    chan struct{}
}

func NewCollector(sink Sink, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Collector{
		sink:    sink,
		eventCh: make(chan Event, bufferSize),
		logger:  slog.Default().With("component", "analytics-collector"),
		done:    make(chan struct{}),
	}
}

// Start launches the forwarding loop. It returns immediately; Close waits
// for the loop to drain.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.sink.Track(event.Key(), event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues event, dropping it when the buffer is full.
func (c *Collector) Track(event Event) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the loop to exit. Track must
// not be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.sink.Track(event.Key(), event)
		default:
			return
		}
	}
}
