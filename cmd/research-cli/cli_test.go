package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/evidence"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

func newAskCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "ask"}
	cmd.Flags().IntVar(&maxWiki, "max-wikipedia", 0, "")
	cmd.Flags().IntVar(&maxArxiv, "max-arxiv", 0, "")
	return cmd
}

func TestBuildRequestKeepsDefaultsForUnsetFlags(t *testing.T) {
	t.Cleanup(func() { noLocal, noWikipedia, noArxiv = false, false, false })

	cmd := newAskCommand()
	req := buildRequest(cmd, "coral reefs")
	assert.Equal(t, "coral reefs", req.Topic)
	assert.Nil(t, req.UseLocal)
	assert.Nil(t, req.UseWikipedia)
	assert.Nil(t, req.MaxWikipediaArticles)
	assert.Nil(t, req.MaxArxivPapers)

	noWikipedia = true
	require.NoError(t, cmd.Flags().Set("max-arxiv", "5"))
	req = buildRequest(cmd, "coral reefs")
	require.NotNil(t, req.UseWikipedia)
	assert.False(t, *req.UseWikipedia)
	assert.Nil(t, req.UseArxiv)
	require.NotNil(t, req.MaxArxivPapers)
	assert.Equal(t, 5, *req.MaxArxivPapers)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &pipeline.Result{
		Topic:     "coral reefs",
		Summary:   "Reefs bleach.",
		CritiqueA: "Unsupported claim.",
		CritiqueB: "Small sample.",
		Insight:   "Monitor temperatures.",
		Sources:   []string{"reefs.pdf", "Wikipedia: Coral reef"},
		Acquisitions: []evidence.Acquisition{
			{Provider: "arxiv", Message: "No relevant arXiv papers found."},
		},
	})
	out := buf.String()
	for _, want := range []string{
		"Topic: coral reefs",
		"Researcher summary:\nReefs bleach.",
		"Critique (evidence support):\nUnsupported claim.",
		"Critique (methodology):\nSmall sample.",
		"Collective insight:\nMonitor temperatures.",
		"Sources used: reefs.pdf, Wikipedia: Coral reef",
		"[arxiv] No relevant arXiv papers found.",
	} {
		assert.Contains(t, out, want)
	}
}

func TestDescribeFailure(t *testing.T) {
	err := apperrors.AtStage("critiquing", apperrors.New(apperrors.ErrTimeout, 0, "too slow"))
	got := describeFailure(err)
	assert.True(t, strings.HasPrefix(got.Error(), "TimeoutError during critiquing: "))
	assert.True(t, errors.Is(got, apperrors.ErrTimeout))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short text", preview("short\n  text", 60))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}

func TestIndexStatsCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reefs.txt"), []byte("Coral reefs bleach in warm water."), 0o644))
	t.Cleanup(func() { filesDir = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"index", "stats", "--files", dir})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "Documents: 1")
	assert.Contains(t, out.String(), "  - reefs.txt")
}
