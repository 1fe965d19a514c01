package emitter

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
)

// FormRecord is a finalized sequence as published by the record sinks.
type FormRecord struct {
	Start     int     `json:"start"`
	Form      string  `json:"form"`
	Suspicion float64 `json:"suspicion"`
	OKCount   int     `json:"ok_count"`
	ErrCount  int     `json:"err_count"`
}

// SentenceEvent is the Kafka payload for one expanded ERR sentence.
type SentenceEvent struct {
	RunID     string       `json:"run_id"`
	Line      int          `json:"line"`
	Sentence  string       `json:"sentence"`
	Forms     []FormRecord `json:"forms"`
	Timestamp time.Time    `json:"timestamp"`
}

func formRecords(res expander.SentenceResult) []FormRecord {
	out := make([]FormRecord, len(res.Expansions))
	for i, e := range res.Expansions {
		out[i] = FormRecord{
			Start:     e.Start,
			Form:      e.Form,
			Suspicion: e.Suspicion,
			OKCount:   e.OKCount,
			ErrCount:  e.ErrCount,
		}
	}
	return out
}
