package expander

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/metrics"
)

// Sharded expands batches of sentences with one Expander per worker. The
// indices are shared read-only; every worker keeps a private cache across
// batches. Results come back in input order.
type Sharded struct {
	workers []*Expander
	logger  *slog.Logger
}

// NewSharded creates n workers over the same pair of indices.
func NewSharded(okIdx, errIdx *index.CorpusIndex, opts Options, m *metrics.Metrics, n int) *Sharded {
	if n < 1 {
		n = 1
	}
	workers := make([]*Expander, n)
	for i := range workers {
		workers[i] = New(okIdx, errIdx, opts, m)
	}
	return &Sharded{
		workers: workers,
		logger:  slog.Default().With("component", "sharded-expander"),
	}
}

// Workers returns the number of workers.
func (s *Sharded) Workers() int {
	return len(s.workers)
}

// ExpandBatch splits batch into contiguous shards, one per worker, and
// expands them concurrently. The context is checked between sentences.
func (s *Sharded) ExpandBatch(ctx context.Context, batch []corpus.Sentence) ([]SentenceResult, error) {
	results := make([]SentenceResult, len(batch))
	if len(s.workers) == 1 {
		if err := expandShard(ctx, s.workers[0], batch, results); err != nil {
			return nil, err
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	shardSize := (len(batch) + len(s.workers) - 1) / len(s.workers)
	for w, worker := range s.workers {
		lo := w * shardSize
		if lo >= len(batch) {
			break
		}
		hi := min(lo+shardSize, len(batch))
		g.Go(func() error {
			if err := expandShard(gctx, worker, batch[lo:hi], results[lo:hi]); err != nil {
				return fmt.Errorf("shard %d: %w", w, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func expandShard(ctx context.Context, e *Expander, sentences []corpus.Sentence, out []SentenceResult) error {
	for i, sent := range sentences {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := e.ExpandSentence(sent)
		if err != nil {
			return err
		}
		out[i] = res
	}
	return nil
}

// CacheStats sums the cache statistics of all workers. Call it only while no
// batch is running.
func (s *Sharded) CacheStats() CacheStats {
	var total CacheStats
	for _, w := range s.workers {
		st := w.cache.Stats()
		total.Hits += st.Hits
		total.Misses += st.Misses
		total.Stores += st.Stores
		total.Entries += st.Entries
	}
	return total
}
