// Package relevance normalizes research queries and decides whether
// external search results are on topic, first by title and then by body.
package relevance

import (
	"slices"
	"strings"
	"unicode"
)

const (
	// StrictThreshold applies when the provider matched the exact phrase.
	StrictThreshold = 0.2
	// FallbackThreshold applies once the search had to relax to loose terms.
	FallbackThreshold = 0.1
)

// Query is a normalized query: ordered, de-duplicated terms plus the
// domains it triggered.
type Query struct {
	Terms   []string
	Domains []Domain
}

// String joins the terms with single spaces.
func (q Query) String() string {
	return strings.Join(q.Terms, " ")
}

// Filter holds the tables used by normalization and title matching.
type Filter struct {
	domains       []Domain
	abbreviations map[string]string
	stopwords     map[string]struct{}
}

// New builds a Filter from explicit tables.
func New(domains []Domain, abbreviations map[string]string, stopwords []string) *Filter {
	sw := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		sw[w] = struct{}{}
	}
	return &Filter{domains: domains, abbreviations: abbreviations, stopwords: sw}
}

// Default returns a Filter over the built-in tables.
func Default() *Filter {
	return New(DefaultDomains, DefaultAbbreviations, DefaultStopwords)
}

// Normalize lowercases the query, strips punctuation, expands
// abbreviations, drops stop words and appends the context terms of every
// domain whose trigger appears. Normalizing an already normalized query
// yields the same terms.
func (f *Filter) Normalize(raw string) Query {
	var words []string
	for _, w := range strings.Fields(stripPunctuation(strings.ToLower(raw))) {
		if full, ok := f.abbreviations[w]; ok {
			words = append(words, strings.Fields(full)...)
			continue
		}
		if _, stop := f.stopwords[w]; stop {
			continue
		}
		words = append(words, w)
	}

	joined := strings.Join(words, " ")
	var q Query
	for _, d := range f.domains {
		if !triggered(joined, d) {
			continue
		}
		q.Domains = append(q.Domains, d)
		words = append(words, d.Context...)
	}
	q.Terms = dedupe(words)
	return q
}

// TitleRelevant accepts a title containing any query term, or any title
// term of a triggered domain. Titles matching neither are rejected whatever
// domain triggered, so a broad provider search cannot let person or other
// named-entity pages through.
func (f *Filter) TitleRelevant(title string, q Query) bool {
	t := strings.ToLower(title)
	if containsAny(t, q.Terms) {
		return true
	}
	for _, d := range q.Domains {
		if containsAny(t, d.TitleTerms) {
			return true
		}
	}
	return false
}

// ContentScore is the total occurrence count of all query terms in content
// divided by its word count. Empty content scores zero.
func ContentScore(content string, q Query) float64 {
	lower := strings.ToLower(content)
	words := len(strings.Fields(lower))
	if words == 0 {
		return 0
	}
	var hits int
	for _, term := range q.Terms {
		hits += strings.Count(lower, term)
	}
	return float64(hits) / float64(words)
}

// ContentRelevant reports whether content reaches threshold. Content with
// no words is never relevant.
func ContentRelevant(content string, q Query, threshold float64) bool {
	if len(strings.Fields(content)) == 0 {
		return false
	}
	return ContentScore(content, q) >= threshold
}

// Threshold picks the content threshold for an acquisition.
func Threshold(fallback bool) float64 {
	if fallback {
		return FallbackThreshold
	}
	return StrictThreshold
}

func triggered(query string, d Domain) bool {
	for _, t := range d.Triggers {
		if strings.Contains(query, t) {
			return true
		}
	}
	return false
}

func containsAny(s string, terms []string) bool {
	return slices.ContainsFunc(terms, func(term string) bool {
		return term != "" && strings.Contains(s, term)
	})
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			return r
		}
		return -1
	}, s)
}

func dedupe(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
