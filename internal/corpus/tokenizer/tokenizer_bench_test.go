package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Coral reefs cover less than one percent of the ocean floor yet support
        roughly a quarter of marine species. Rising sea surface temperatures cause
        mass bleaching events, in which corals expel the symbiotic algae living in
        their tissue. Repeated bleaching within a few years leaves little time for
        recovery and shifts reefs towards algae-dominated states.`,
	"long": strings.Repeat(`Retrieval-augmented generation grounds a language model in excerpts
        chosen by a retriever. Lexical retrievers such as BM25 weigh term frequency
        against document length and inverse document frequency, which works well
        for technical vocabulary and named entities. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkTermsVaryingSize(b *testing.B) {
	baseWord := "coral reef bleaching temperature anomaly "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = Terms(text)
			}
		})
	}
}
