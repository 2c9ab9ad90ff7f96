// Package chunker splits extracted document pages into overlapping,
// fixed-size chunks that keep page provenance.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

// pageSeparator joins consecutive pages of one document.
const pageSeparator = "\n"

// Page is one unit of extracted text with its 0-based position in the source.
type Page struct {
	Text  string
	Index int
}

// Chunk is a contiguous slice of a source document. Start and End are rune
// offsets into the page-joined document text.
type Chunk struct {
	Text       string `json:"text"`
	SourceID   string `json:"source_id"`
	ChunkIndex int    `json:"chunk_index"`
	PageIndex  int    `json:"page_index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// ID is unique within one index build.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s__chunk%d", c.SourceID, c.ChunkIndex)
}

// Chunker holds validated size parameters.
type Chunker struct {
	size    int
	overlap int
}

// New validates size and overlap. Overlap must be smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, apperrors.Newf(apperrors.ErrConfig, 0, "chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, apperrors.Newf(apperrors.ErrConfig, 0,
			"chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured chunk size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks the pages of one source. Pages are joined into one logical
// document; each chunk records the page its first character came from.
// A document with no non-space text yields no chunks.
func (c *Chunker) Split(sourceID string, pages []Page) []Chunk {
	text, pageStarts := join(pages)
	if strings.TrimSpace(string(text)) == "" {
		return nil
	}

	var chunks []Chunk
	n := len(text)
	start := 0
	for {
		end := start + c.size
		if end >= n {
			chunks = append(chunks, c.chunk(sourceID, len(chunks), text, start, n, pages, pageStarts))
			return chunks
		}
		cut := c.breakAt(text, start, end)
		chunks = append(chunks, c.chunk(sourceID, len(chunks), text, start, cut, pages, pageStarts))
		start = c.nextStart(text, start, cut)
	}
}

// breakAt returns the exclusive end of a chunk beginning at start, moving
// back from end to just past the last whitespace in the trailing overlap
// window when one exists.
func (c *Chunker) breakAt(text []rune, start, end int) int {
	floor := end - c.overlap
	if floor <= start {
		floor = start + 1
	}
	for i := end - 1; i >= floor; i-- {
		if unicode.IsSpace(text[i]) {
			return i + 1
		}
	}
	return end
}

// nextStart backs the following chunk up by overlap characters, then to the
// nearest preceding word boundary so it does not open mid-word. The result
// always advances past start.
func (c *Chunker) nextStart(text []rune, start, cut int) int {
	next := cut - c.overlap
	if next <= start {
		return cut
	}
	for i := next; i > start && i > cut-2*c.overlap; i-- {
		if unicode.IsSpace(text[i-1]) {
			return i
		}
	}
	return next
}

func (c *Chunker) chunk(sourceID string, idx int, text []rune, start, end int, pages []Page, pageStarts []int) Chunk {
	page := 0
	for i, ps := range pageStarts {
		if ps > start {
			break
		}
		page = pages[i].Index
	}
	return Chunk{
		Text:       string(text[start:end]),
		SourceID:   sourceID,
		ChunkIndex: idx,
		PageIndex:  page,
		Start:      start,
		End:        end,
	}
}

func join(pages []Page) ([]rune, []int) {
	var text []rune
	starts := make([]int, 0, len(pages))
	for i, p := range pages {
		if i > 0 {
			text = append(text, []rune(pageSeparator)...)
		}
		starts = append(starts, len(text))
		text = append(text, []rune(p.Text)...)
	}
	return text, starts
}
