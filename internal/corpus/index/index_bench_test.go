package index

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/research-assistant/internal/corpus/chunker"
)

const benchText = "Coral reefs bleach when ocean temperatures rise above the seasonal maximum; " +
	"symbiotic algae are expelled and the colony starves unless water cools within weeks."

func benchChunks(n int) []chunker.Chunk {
	chunks := make([]chunker.Chunk, n)
	for i := range chunks {
		chunks[i] = chunker.Chunk{
			Text:       fmt.Sprintf("%s Survey %d recorded site %d.", benchText, i, i%37),
			SourceID:   fmt.Sprintf("doc-%d.pdf", i%50),
			ChunkIndex: i,
		}
	}
	return chunks
}

// BenchmarkBuild measures index construction at several corpus sizes.
func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		chunks := benchChunks(n)
		b.Run(fmt.Sprintf("chunks_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = Build(chunks)
			}
		})
	}
}

// BenchmarkQuery measures top-k lookup latency over 10 000 chunks.
func BenchmarkQuery(b *testing.B) {
	idx := Build(benchChunks(10000))
	b.ReportAllocs()
	for b.Loop() {
		_ = idx.Query("ocean temperature coral bleaching", 4)
	}
}

// BenchmarkQueryParallel measures concurrent read throughput; runs read a
// published index without locking.
func BenchmarkQueryParallel(b *testing.B) {
	idx := Build(benchChunks(10000))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = idx.Query("symbiotic algae colony", 4)
		}
	})
}

// BenchmarkSplitAndBuild measures the full rebuild path for one long
// document: chunking then indexing.
func BenchmarkSplitAndBuild(b *testing.B) {
	c, err := chunker.New(1000, 200)
	if err != nil {
		b.Fatal(err)
	}
	pages := make([]chunker.Page, 40)
	for i := range pages {
		pages[i] = chunker.Page{Index: i, Text: strings.Repeat(benchText+" ", 20)}
	}
	b.ReportAllocs()
	for b.Loop() {
		_ = Build(c.Split("survey.pdf", pages))
	}
}
