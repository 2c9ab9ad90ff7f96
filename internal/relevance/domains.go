package relevance

// Domain ties trigger phrases in a normalized query to the extra vocabulary
// used for query expansion and title matching.
type Domain struct {
	Name string
	// Triggers are matched as substrings of the normalized query.
	Triggers []string
	// Context terms are appended to the normalized query.
	Context []string
	// TitleTerms let a title through even when it shares no query term.
	TitleTerms []string
}

// DefaultDomains is the built-in domain table.
var DefaultDomains = []Domain{
	{
		Name:     "technology",
		Triggers: []string{"artificial intelligence"},
		TitleTerms: []string{
			"technology", "science", "computer", "digital", "system",
			"automation", "machine", "algorithm", "data",
		},
	},
	{
		Name:       "ecology",
		Triggers:   []string{"ecology"},
		Context:    []string{"environmental", "ecosystem", "biological"},
		TitleTerms: []string{"ecology", "environment", "ecosystem", "biological"},
	},
	{
		Name:     "climate",
		Triggers: []string{"climate"},
		Context:  []string{"environmental", "weather", "atmospheric"},
	},
	{
		Name:     "health",
		Triggers: []string{"health"},
		Context:  []string{"medical", "healthcare", "clinical"},
	},
	{
		Name:     "economy",
		Triggers: []string{"economy"},
		Context:  []string{"economic", "financial", "market"},
	},
}

// DefaultAbbreviations expands short forms before stop-word removal.
var DefaultAbbreviations = map[string]string{
	"ai":  "artificial intelligence",
	"ia":  "artificial intelligence",
	"ml":  "machine learning",
	"dl":  "deep learning",
	"nlp": "natural language processing",
}

// DefaultStopwords holds function words dropped from queries. Modifiers
// such as "not" or "without" are deliberately kept.
var DefaultStopwords = []string{
	"what", "about", "how", "the", "a", "an", "and",
	"to", "of", "for", "with", "by",
}
