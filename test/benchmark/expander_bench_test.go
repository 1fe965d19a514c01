package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index"
)

func readSentences(b *testing.B, text string) []corpus.Sentence {
	b.Helper()
	sents, err := corpus.ReadAll(corpus.NewScanner(strings.NewReader(text), "bench", "/"))
	if err != nil {
		b.Fatal(err)
	}
	return sents
}

// BenchmarkExpandSentence measures single-worker expansion with and without
// the first-step cache.
func BenchmarkExpandSentence(b *testing.B) {
	okIdx := buildIndex(b, index.SideOK, syntheticCorpus(10, 5000))
	errText := syntheticCorpus(11, 5000)
	errIdx := buildIndex(b, index.SideErr, errText)
	sents := readSentences(b, errText)

	for _, cached := range []bool{true, false} {
		b.Run(fmt.Sprintf("cache_%t", cached), func(b *testing.B) {
			opts := expander.DefaultOptions()
			opts.CacheEnabled = cached
			e := expander.New(okIdx, errIdx, opts, nil)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.ExpandSentence(sents[i%len(sents)]); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkExpandBatch measures sharded throughput at various worker counts.
func BenchmarkExpandBatch(b *testing.B) {
	okIdx := buildIndex(b, index.SideOK, syntheticCorpus(20, 5000))
	errText := syntheticCorpus(21, 2048)
	errIdx := buildIndex(b, index.SideErr, errText)
	sents := readSentences(b, errText)

	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			s := expander.NewSharded(okIdx, errIdx, expander.DefaultOptions(), nil, workers)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.ExpandBatch(context.Background(), sents); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
