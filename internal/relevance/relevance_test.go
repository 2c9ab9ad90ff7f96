package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	f := Default()
	tests := []struct {
		in   string
		want []string
	}{
		{"What about the ethics of AI?", []string{"ethics", "artificial", "intelligence"}},
		{"Soil ecology!", []string{"soil", "ecology", "environmental", "ecosystem", "biological"}},
		{"climate and health", []string{"climate", "health", "environmental", "weather", "atmospheric", "medical", "healthcare", "clinical"}},
		{"ML, ml and DL", []string{"machine", "learning", "deep"}},
		{"nlp for the economy", []string{"natural", "language", "processing", "economy", "economic", "financial", "market"}},
		{"data-driven  models", []string{"datadriven", "models"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := f.Normalize(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got.Terms)
				return
			}
			assert.Equal(t, tt.want, got.Terms)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	f := Default()
	for _, in := range []string{
		"machine learning ethics",
		"AI in healthcare",
		"impact of climate change on the economy",
		"Ecology of coral reefs",
		"how does NLP work?",
		"the the the",
	} {
		once := f.Normalize(in)
		twice := f.Normalize(once.String())
		assert.ElementsMatch(t, once.Terms, twice.Terms, in)
		assert.Equal(t, len(once.Domains), len(twice.Domains), in)
	}
}

func TestTitleRelevant(t *testing.T) {
	f := Default()

	ai := f.Normalize("AI")
	assert.True(t, f.TitleRelevant("Artificial intelligence", ai))
	assert.True(t, f.TitleRelevant("Computer vision", ai), "technology vocabulary")
	assert.False(t, f.TitleRelevant("Taylor Swift", ai))

	eco := f.Normalize("soil ecology")
	assert.True(t, f.TitleRelevant("Soil biology", eco))
	assert.True(t, f.TitleRelevant("Ecosystem services", eco))
	assert.False(t, f.TitleRelevant("John Smith (footballer)", eco))

	plain := f.Normalize("quantum computing")
	assert.True(t, f.TitleRelevant("Quantum supremacy", plain))
	assert.False(t, f.TitleRelevant("Digital art", plain), "no domain triggered")
}

func TestTitleRelevantRejectsUnrelatedTitlesForEveryDomain(t *testing.T) {
	reefs := Domain{
		Name:       "reefs",
		Triggers:   []string{"coral"},
		TitleTerms: []string{"reef", "marine"},
	}
	bare := Domain{Name: "tides", Triggers: []string{"tide"}}
	f := New([]Domain{reefs, bare}, nil, DefaultStopwords)

	coral := f.Normalize("coral bleaching")
	require.Len(t, coral.Domains, 1)
	assert.True(t, f.TitleRelevant("Great Barrier Reef", coral))
	assert.False(t, f.TitleRelevant("Jane Doe (singer)", coral))

	tide := f.Normalize("tide pools")
	require.Len(t, tide.Domains, 1)
	assert.True(t, f.TitleRelevant("Tide pool ecology", tide))
	assert.False(t, f.TitleRelevant("Jane Doe (singer)", tide), "domain without title terms")
}

func TestContentRelevant(t *testing.T) {
	q := Default().Normalize("coral reef")

	onTopic := "Coral reefs are built by coral polyps. A reef supports fish."
	score := ContentScore(onTopic, q)
	require.Greater(t, score, StrictThreshold)
	assert.True(t, ContentRelevant(onTopic, q, StrictThreshold))

	offTopic := "The stock market closed higher today as investors bought shares in technology firms across the board."
	assert.False(t, ContentRelevant(offTopic, q, FallbackThreshold))

	assert.False(t, ContentRelevant("", q, 0))
	assert.False(t, ContentRelevant("   \n", q, 0))
}

func TestThresholdLowersForFallback(t *testing.T) {
	assert.Equal(t, StrictThreshold, Threshold(false))
	assert.Equal(t, FallbackThreshold, Threshold(true))
	assert.Less(t, Threshold(true), Threshold(false))

	q := Default().Normalize("volcano")
	borderline := "volcano one two three four five six seven eight nine"
	assert.True(t, ContentRelevant(borderline, q, Threshold(true)))
	assert.False(t, ContentRelevant(borderline, q, Threshold(false)))
}
