package emitter

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/redis"
)

// FormStore is satisfied by *redis.Client.
type FormStore interface {
	StoreForms(ctx context.Context, forms []redis.FormScore) error
	Close() error
}

// NewRedisSink stores the statistics of every emitted form and ranks forms
// by suspicion.
func NewRedisSink(store FormStore, opts SinkOptions) Emitter {
	flush := func(ctx context.Context, batch []expander.SentenceResult) error {
		var forms []redis.FormScore
		for _, res := range batch {
			for _, e := range res.Expansions {
				forms = append(forms, redis.FormScore{
					Form:      e.Form,
					Suspicion: e.Suspicion,
					OKCount:   e.OKCount,
					ErrCount:  e.ErrCount,
				})
			}
		}
		return store.StoreForms(ctx, forms)
	}
	return newBatchSink("redis", opts, flush, store.Close)
}
