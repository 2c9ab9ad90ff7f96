// Package evidence defines the evidence items fed to generation and merges
// local index hits with web acquisitions into one pool per run.
package evidence

import (
	"strings"
)

// Origin says where an evidence item came from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginWikipedia
	OriginArxiv
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginWikipedia:
		return "wikipedia"
	case OriginArxiv:
		return "arxiv"
	default:
		return "unknown"
	}
}

// MarshalText renders the origin by name in JSON.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Item is one piece of evidence. Ref identifies the excerpt within its
// source (a chunk id for local documents, a URL for web pages).
type Item struct {
	Text        string  `json:"text"`
	SourceLabel string  `json:"source"`
	Origin      Origin  `json:"origin"`
	Score       float64 `json:"score"`
	Ref         string  `json:"ref,omitempty"`
}

// Acquisition is what one web source contributed to a run.
//
// IsFallback is set when the provider had nothing for the exact phrase and
// the loose-term search was used. LoweredThreshold is set when the body
// check ran with the permissive threshold; today the two always agree but
// callers that care which bar was lowered read the specific field.
type Acquisition struct {
	Provider         string `json:"provider"`
	Items            []Item `json:"-"`
	IsFallback       bool   `json:"is_fallback"`
	LoweredThreshold bool   `json:"lowered_threshold"`
	Message          string `json:"message"`
}

const ellipsis = " ..."

// Truncate shortens text to at most max characters, cutting back to the
// last space and appending an ellipsis marker. Text within the limit is
// returned unchanged.
func Truncate(text string, max int) string {
	r := []rune(text)
	if max <= 0 || len(r) <= max {
		return text
	}
	cut := string(r[:max])
	if i := strings.LastIndex(cut, " "); i >= 0 {
		cut = cut[:i]
	}
	return cut + ellipsis
}
