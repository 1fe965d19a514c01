package emitter

import (
	"context"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
	Close() error
}

// NewKafkaSink publishes one SentenceEvent per sentence, keyed by run id so
// a run's events land on one partition in order.
func NewKafkaSink(pub EventPublisher, opts SinkOptions) Emitter {
	runID := opts.RunID
	flush := func(ctx context.Context, batch []expander.SentenceResult) error {
		now := time.Now().UTC()
		events := make([]kafka.Event, len(batch))
		for i, res := range batch {
			events[i] = kafka.Event{
				Key: runID,
				Value: SentenceEvent{
					RunID:     runID,
					Line:      res.Sentence.Line,
					Sentence:  strings.Join(res.Sentence.Words(), " "),
					Forms:     formRecords(res),
					Timestamp: now,
				},
			}
		}
		return pub.PublishBatch(ctx, events)
	}
	return newBatchSink("kafka", opts, flush, pub.Close)
}
