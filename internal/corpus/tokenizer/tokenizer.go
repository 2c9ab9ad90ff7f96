// Package tokenizer turns text into the lowercase alphanumeric terms the
// lexical index scores on. Tokens of a single character are dropped; there
// is no stop-word removal or stemming, so every content word counts.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize lowercases text, splits it on non-alphanumeric boundaries and
// drops tokens shorter than two characters.
func Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		tokens = append(tokens, Token{Term: word, Position: len(tokens)})
	}
	return tokens
}

// Terms is Tokenize without positions.
func Terms(text string) []string {
	return split(text)
}

func split(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}
