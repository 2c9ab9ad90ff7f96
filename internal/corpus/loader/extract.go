package loader

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/chunker"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

// Extractor turns one file into ordered pages. Failures wrap ErrParse.
type Extractor interface {
	Extract(path string) ([]chunker.Page, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(path string) ([]chunker.Page, error)

func (f ExtractorFunc) Extract(path string) ([]chunker.Page, error) { return f(path) }

// PDFExtractor reads the plain text layer of each page.
type PDFExtractor struct{}

func (PDFExtractor) Extract(path string) (pages []chunker.Page, err error) {
	// The pdf reader panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = apperrors.Newf(apperrors.ErrParse, 0, "%s: malformed pdf: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrParse, 0, "%s: %v", path, err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrParse, 0, "%s page %d: %v", path, i, err)
		}
		pages = append(pages, chunker.Page{Text: text, Index: i - 1})
	}
	return pages, nil
}

// TextExtractor treats the whole file as a single page.
type TextExtractor struct{}

func (TextExtractor) Extract(path string) ([]chunker.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrParse, 0, "%s: %v", path, err)
	}
	if !utf8.Valid(data) {
		return nil, apperrors.Newf(apperrors.ErrParse, 0, "%s: not valid UTF-8 text", path)
	}
	return []chunker.Page{{Text: string(data), Index: 0}}, nil
}

// DefaultExtractors maps lowercase file extensions to extractors.
func DefaultExtractors() map[string]Extractor {
	return map[string]Extractor{
		".pdf": PDFExtractor{},
		".txt": TextExtractor{},
		".md":  TextExtractor{},
	}
}

func describe(ext string) string {
	return fmt.Sprintf("unsupported document type %q (want .pdf, .txt or .md)", ext)
}
