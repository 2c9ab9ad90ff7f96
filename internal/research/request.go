package research

import (
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

const (
	MinItems = 1
	MaxItems = 10
)

// Request is one research question. Nil options fall back to the
// configured defaults for this run only.
type Request struct {
	Topic                string `json:"topic"`
	UseLocal             *bool  `json:"use_local,omitempty"`
	UseWikipedia         *bool  `json:"use_wikipedia,omitempty"`
	UseArxiv             *bool  `json:"use_arxiv,omitempty"`
	MaxWikipediaArticles *int   `json:"max_wikipedia_articles,omitempty"`
	MaxArxivPapers       *int   `json:"max_arxiv_papers,omitempty"`
}

// FieldError names the offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate trims the topic and checks item bounds.
func (r *Request) Validate() error {
	r.Topic = strings.TrimSpace(r.Topic)
	var problems []FieldError
	if r.Topic == "" {
		problems = append(problems, FieldError{Field: "topic", Message: "must not be empty"})
	}
	bounds := []struct {
		field string
		v     *int
	}{
		{"max_wikipedia_articles", r.MaxWikipediaArticles},
		{"max_arxiv_papers", r.MaxArxivPapers},
	}
	for _, b := range bounds {
		if b.v != nil && (*b.v < MinItems || *b.v > MaxItems) {
			problems = append(problems, FieldError{Field: b.field, Message: "must be between 1 and 10"})
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Fields: problems}
}

// override returns the per-request settings for a provider, if any.
func (r *Request) override(provider string) (enabled *bool, maxItems *int) {
	switch provider {
	case "wikipedia":
		return r.UseWikipedia, r.MaxWikipediaArticles
	case "arxiv":
		return r.UseArxiv, r.MaxArxivPapers
	}
	return nil, nil
}

// ValidationError lists every invalid field. It matches ErrInvalidInput.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return apperrors.ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}
