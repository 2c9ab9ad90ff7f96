// Package loader reads the local document folder, extracts page text and
// chunks it. Files that fail to parse are logged and left out of the
// result rather than aborting the load.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/chunker"
	apperrors "github.com/Adithya-Monish-Kumar-K/research-assistant/pkg/errors"
)

const extractWorkers = 4

// Skipped records a document left out of the corpus.
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Corpus is the outcome of one load.
type Corpus struct {
	Chunks    []chunker.Chunk
	Documents []string
	Skipped   []Skipped
}

type Loader struct {
	dir        string
	chunker    *chunker.Chunker
	extractors map[string]Extractor
	logger     *slog.Logger
}

func New(dir string, c *chunker.Chunker, extractors map[string]Extractor) *Loader {
	if extractors == nil {
		extractors = DefaultExtractors()
	}
	return &Loader{
		dir:        dir,
		chunker:    c,
		extractors: extractors,
		logger:     slog.Default().With("component", "corpus-loader", "dir", dir),
	}
}

// Dir returns the folder the loader reads from.
func (l *Loader) Dir() string { return l.dir }

// Load extracts and chunks every supported file in the folder. A missing
// folder yields an empty corpus. Documents appear in file-name order.
func (l *Loader) Load(ctx context.Context) (*Corpus, error) {
	names, err := l.list()
	if err != nil {
		return nil, err
	}

	type outcome struct {
		chunks []chunker.Chunk
		err    error
	}
	outcomes := make([]outcome, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractWorkers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ext := strings.ToLower(filepath.Ext(name))
			pages, err := l.extractors[ext].Extract(filepath.Join(l.dir, name))
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			outcomes[i].chunks = l.chunker.Split(name, pages)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	corpus := &Corpus{}
	for i, name := range names {
		o := outcomes[i]
		switch {
		case o.err != nil:
			l.logger.Warn("skipping unreadable document", "name", name, "error", o.err)
			corpus.Skipped = append(corpus.Skipped, Skipped{Name: name, Reason: o.err.Error()})
		case len(o.chunks) == 0:
			l.logger.Info("document has no text", "name", name)
			corpus.Skipped = append(corpus.Skipped, Skipped{Name: name, Reason: "no extractable text"})
		default:
			corpus.Documents = append(corpus.Documents, name)
			corpus.Chunks = append(corpus.Chunks, o.chunks...)
		}
	}
	l.logger.Info("corpus loaded",
		"documents", len(corpus.Documents),
		"chunks", len(corpus.Chunks),
		"skipped", len(corpus.Skipped),
	)
	return corpus, nil
}

func (l *Loader) list() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("document folder does not exist; local corpus is empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document folder %s: %w", l.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := l.extractors[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Save writes an uploaded document into the folder under its base name,
// replacing any file with the same name. At most maxBytes are accepted.
func (l *Loader) Save(filename string, r io.Reader, maxBytes int64) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, 0, "invalid file name %q", filename)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := l.extractors[ext]; !ok {
		return "", apperrors.New(apperrors.ErrInvalidInput, 0, describe(ext))
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating document folder: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if n > maxBytes {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, 0, "document exceeds %d bytes", maxBytes)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, name)); err != nil {
		return "", fmt.Errorf("storing upload: %w", err)
	}
	l.logger.Info("document stored", "name", name, "bytes", n)
	return name, nil
}
