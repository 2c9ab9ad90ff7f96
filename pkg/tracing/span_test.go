package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTreeAndTimings(t *testing.T) {
	ctx, root := Start(context.Background(), "research", "run-1")
	require.Same(t, root, FromContext(ctx))

	_, gather := Start(ctx, "gathering", "ignored")
	gather.End(nil)
	_, draft := Start(ctx, "drafting", "")
	draft.SetAttr("prompt_chars", 1200)
	draft.End(errors.New("model overloaded"))
	root.End(draft.Err)

	assert.Equal(t, "run-1", gather.TraceID, "children inherit the trace id")
	timings := root.Timings()
	require.Len(t, timings, 2)
	assert.Equal(t, "gathering", timings[0].Name)
	assert.False(t, timings[0].Failed)
	assert.Equal(t, "drafting", timings[1].Name)
	assert.True(t, timings[1].Failed)

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	assert.Contains(t, out, "span=research")
	assert.Contains(t, out, "span=drafting")
	assert.Contains(t, out, "prompt_chars=1200")
	assert.Contains(t, out, "depth=1")
}

func TestFromContextWithoutSpan(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
