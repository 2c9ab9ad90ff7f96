package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryListsNewestFirst(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, m.Save(ctx, Record{RunID: fmt.Sprintf("run-%d", i), Status: "success"}))
	}

	got, err := m.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3, "oldest records are evicted")
	assert.Equal(t, "run-4", got[0].RunID)
	assert.Equal(t, "run-2", got[2].RunID)

	got, err = m.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run-4", got[0].RunID)
}

func TestMemoryCopiesSources(t *testing.T) {
	m := NewMemory(0)
	sources := []string{"reefs.pdf"}
	require.NoError(t, m.Save(context.Background(), Record{RunID: "r", Sources: sources}))
	sources[0] = "changed"

	got, err := m.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"reefs.pdf"}, got[0].Sources)
}

func TestMemoryEmpty(t *testing.T) {
	got, err := NewMemory(0).List(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
