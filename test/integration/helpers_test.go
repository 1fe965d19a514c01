//go:build integration

package integration

import (
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
)

func sentenceResult(line int) expander.SentenceResult {
	return expander.SentenceResult{
		Sentence: corpus.Sentence{
			Line:   line,
			Tokens: []corpus.Token{{Word: "the", Tag: "DT"}, {Word: "dog", Tag: "NN"}},
		},
		Expansions: []expander.Expansion{
			{Start: 0, Form: "the", Suspicion: 0.5, OKCount: 1, ErrCount: 1},
			{Start: 1, Form: "dog", Suspicion: 1, OKCount: 0, ErrCount: 1},
		},
	}
}
