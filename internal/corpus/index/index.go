// Package index is an immutable in-memory BM25 index over chunks. An Index
// is built once and never mutated, so it can be shared by concurrent
// queries and swapped wholesale when the corpus changes.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/chunker"
	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/tokenizer"
)

// Result is one scored chunk returned by Query.
type Result struct {
	Chunk chunker.Chunk
	Score float64
}

type Index struct {
	chunks    []chunker.Chunk
	lengths   []int
	postings  map[string]PostingList
	avgLength float64
	documents int
}

// Build tokenizes every chunk and returns the finished index. An empty
// input yields a valid, empty index.
func Build(chunks []chunker.Chunk) *Index {
	idx := &Index{
		chunks:   append([]chunker.Chunk(nil), chunks...),
		lengths:  make([]int, len(chunks)),
		postings: make(map[string]PostingList),
	}
	sources := make(map[string]struct{})
	var total int
	for i, ch := range idx.chunks {
		sources[ch.SourceID] = struct{}{}
		terms := tokenizer.Terms(ch.Text)
		idx.lengths[i] = len(terms)
		total += len(terms)

		freq := make(map[string]int, len(terms))
		for _, term := range terms {
			freq[term]++
		}
		for term, f := range freq {
			idx.postings[term] = append(idx.postings[term], Posting{Chunk: i, Frequency: f})
		}
	}
	if len(chunks) > 0 {
		idx.avgLength = float64(total) / float64(len(chunks))
	}
	idx.documents = len(sources)
	return idx
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.chunks)
}

// Stats reports corpus-level counters.
func (idx *Index) Stats() Stats {
	if idx == nil {
		return Stats{}
	}
	return Stats{
		Chunks:         len(idx.chunks),
		Documents:      idx.documents,
		Terms:          len(idx.postings),
		AvgChunkLength: idx.avgLength,
	}
}

// Query returns up to k chunks in non-increasing score order, keeping only
// chunks that score above zero. When nothing scores above zero on a
// non-empty index, the first k chunks in corpus order are returned instead
// so callers always have some context. A query without tokens returns nil.
func (idx *Index) Query(text string, k int) []Result {
	if idx.Len() == 0 || k <= 0 {
		return nil
	}
	terms := tokenizer.Terms(text)
	if len(terms) == 0 {
		return nil
	}

	scores := make([]float64, len(idx.chunks))
	for _, term := range terms {
		postings := idx.postings[term]
		if len(postings) == 0 {
			continue
		}
		idf := computeIDF(len(idx.chunks), len(postings))
		for _, p := range postings {
			scores[p.Chunk] += idf * computeTFNorm(float64(p.Frequency), float64(idx.lengths[p.Chunk]), idx.avgLength)
		}
	}

	order := make([]int, len(idx.chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	results := make([]Result, 0, k)
	for _, i := range order {
		if len(results) == k || scores[i] <= 0 {
			break
		}
		results = append(results, Result{Chunk: idx.chunks[i], Score: scores[i]})
	}
	if len(results) > 0 {
		return results
	}

	for _, i := range order[:min(k, len(order))] {
		results = append(results, Result{Chunk: idx.chunks[i], Score: scores[i]})
	}
	return results
}
