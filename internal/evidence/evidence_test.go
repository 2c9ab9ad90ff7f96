package evidence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/chunker"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/index"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short text", Truncate("short text", 800))

	long := strings.Repeat("word ", 200)
	got := Truncate(long, 800)
	assert.True(t, strings.HasSuffix(got, " ..."))
	assert.LessOrEqual(t, len(got), 800+len(" ..."))
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(got, " ..."), " "))
	assert.Equal(t, "abcdefghij ...", Truncate(strings.Repeat("abcdefghij", 10), 10))
	assert.Equal(t, "one ...", Truncate("one two three", 6))
}

type stubSource struct {
	name string
	acq  Acquisition
	err  error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Acquire(ctx context.Context, topic string, maxItems int) (Acquisition, error) {
	return s.acq, s.err
}

func TestGatherMergesInOrderAndDedupesSources(t *testing.T) {
	idx := index.Build([]chunker.Chunk{
		{Text: "coral reefs bleach under heat stress", SourceID: "reefs.pdf", ChunkIndex: 0},
		{Text: "coral reefs host many fish", SourceID: "reefs.pdf", ChunkIndex: 1},
		{Text: "unrelated text", SourceID: "misc.txt", ChunkIndex: 0},
	})
	wiki := stubSource{name: "wikipedia", acq: Acquisition{Items: []Item{
		{Text: "Coral reef article", SourceLabel: "Wikipedia: Coral reef", Origin: OriginWikipedia},
		{Text: "Again", SourceLabel: "reefs.pdf", Origin: OriginWikipedia},
	}, Message: "Found 2 directly relevant articles."}}
	arxiv := stubSource{name: "arxiv", acq: Acquisition{Items: []Item{
		{Text: "Paper", SourceLabel: "arXiv: Reef modelling", Origin: OriginArxiv},
	}}}

	pool, err := Gather(context.Background(), "coral reefs", Plan{
		Local: idx,
		TopK:  4,
		Web:   []WebRequest{{Source: wiki, MaxItems: 3}, {Source: arxiv, MaxItems: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"reefs.pdf", "Wikipedia: Coral reef", "arXiv: Reef modelling"}, pool.Sources)
	require.Len(t, pool.Items, 5)
	assert.Equal(t, OriginLocal, pool.Items[0].Origin)
	assert.Equal(t, "reefs.pdf__chunk1", pool.Items[0].Ref, "shorter chunk scores higher")
	assert.Equal(t, OriginArxiv, pool.Items[4].Origin)
	require.Len(t, pool.Acquisitions, 2)
	assert.Equal(t, "wikipedia", pool.Acquisitions[0].Provider)
}

func TestGatherWithNothingEnabled(t *testing.T) {
	pool, err := Gather(context.Background(), "machine learning ethics", Plan{})
	require.NoError(t, err)
	assert.True(t, pool.Empty())
	assert.NotNil(t, pool.Sources)
	assert.Empty(t, pool.Sources)
}

func TestGatherPropagatesCancellation(t *testing.T) {
	src := stubSource{name: "wikipedia", err: context.DeadlineExceeded}
	_, err := Gather(context.Background(), "x", Plan{Web: []WebRequest{{Source: src, MaxItems: 1}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
