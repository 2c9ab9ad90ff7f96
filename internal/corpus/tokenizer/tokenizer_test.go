package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and splits", "Machine-Learning ETHICS!", []string{"machine", "learning", "ethics"}},
		{"drops single characters", "a b 7 ai x2", []string{"ai", "x2"}},
		{"keeps stop words", "the role of data", []string{"the", "role", "of", "data"}},
		{"punctuation only", "?!.,;--", []string{}},
		{"empty", "", []string{}},
		{"unicode letters", "Écologie des sols", []string{"écologie", "des", "sols"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Terms(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizePositionsAreDense(t *testing.T) {
	tokens := Tokenize("a quick, b brown fox")
	assert.Equal(t, []Token{
		{Term: "quick", Position: 0},
		{Term: "brown", Position: 1},
		{Term: "fox", Position: 2},
	}, tokens)
}
