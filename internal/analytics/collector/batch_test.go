package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    bool
}

func (f *fakePublisher) Publish(ctx context.Context, e kafka.Event) error {
	return f.PublishBatch(ctx, []kafka.Event{e})
}

func (f *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestBatchCollectorFlushesOnSize(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)

	bc.Track("a", 1)
	bc.Track("b", 2)
	assert.Eventually(t, func() bool { return pub.published() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	bc.Close()
}

func TestBatchCollectorFinalFlushOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)

	bc.Track("a", 1)
	assert.Equal(t, 1, bc.BufferLen())
	cancel()
	bc.Close()

	assert.Equal(t, 1, pub.published())
	assert.Equal(t, 0, bc.BufferLen())
}

func TestBatchCollectorRequeuesOnFailure(t *testing.T) {
	pub := &fakePublisher{fail: true}
	bc := NewBatchCollector(pub, 100, time.Hour)
	bc.Track("a", 1)
	bc.Track("b", 2)

	bc.flush(context.Background())
	assert.Equal(t, 2, bc.BufferLen())
	assert.Equal(t, 0, pub.published())
}
