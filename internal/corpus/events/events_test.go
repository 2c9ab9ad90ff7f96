package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/kafka"
)

type capture struct {
	events []kafka.Event
	err    error
}

func (c *capture) Publish(ctx context.Context, e kafka.Event) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, e)
	return nil
}

func (c *capture) PublishBatch(ctx context.Context, es []kafka.Event) error {
	for _, e := range es {
		if err := c.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (c *capture) Close() error { return nil }

func TestNotifierStampsAndKeysByDocument(t *testing.T) {
	pub := &capture{}
	require.NoError(t, NewNotifier(pub).Notify(context.Background(), CorpusChanged{Action: ActionUploaded, Document: "reefs.pdf"}))

	require.Len(t, pub.events, 1)
	assert.Equal(t, "reefs.pdf", pub.events[0].Key)
	ev := pub.events[0].Value.(CorpusChanged)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestNotifierPropagatesPublishError(t *testing.T) {
	err := NewNotifier(&capture{err: errors.New("no broker")}).Notify(context.Background(), CorpusChanged{Document: "x"})
	assert.Error(t, err)
}

func TestHandlerSkipsEventsCoveredByLastRebuild(t *testing.T) {
	calls := 0
	handle := Handler(func(ctx context.Context) error {
		calls++
		return nil
	})
	encode := func(ts time.Time) []byte {
		b, err := json.Marshal(CorpusChanged{Action: ActionUploaded, Document: "a.txt", Timestamp: ts})
		require.NoError(t, err)
		return b
	}

	ctx := context.Background()
	require.NoError(t, handle(ctx, nil, encode(time.Now().UTC())))
	assert.Equal(t, 1, calls)

	require.NoError(t, handle(ctx, nil, encode(time.Now().UTC().Add(-time.Minute))), "older than last rebuild")
	assert.Equal(t, 1, calls)

	require.NoError(t, handle(ctx, nil, encode(time.Now().UTC().Add(time.Second))))
	assert.Equal(t, 2, calls)

	require.NoError(t, handle(ctx, nil, []byte("{broken")))
	assert.Equal(t, 2, calls)
}

func TestHandlerReturnsRebuildError(t *testing.T) {
	handle := Handler(func(ctx context.Context) error { return errors.New("disk gone") })
	b, err := json.Marshal(CorpusChanged{Document: "a.txt", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Error(t, handle(context.Background(), nil, b))
}
