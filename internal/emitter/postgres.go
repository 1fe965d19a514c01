package emitter

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/postgres"
)

// RowWriter is satisfied by *postgres.Client.
type RowWriter interface {
	InsertForms(ctx context.Context, table string, rows []postgres.FormRow) error
	Close() error
}

// NewPostgresSink inserts one row per finalized sequence into table.
func NewPostgresSink(w RowWriter, table string, opts SinkOptions) Emitter {
	runID := opts.RunID
	flush := func(ctx context.Context, batch []expander.SentenceResult) error {
		var rows []postgres.FormRow
		for _, res := range batch {
			for _, e := range res.Expansions {
				rows = append(rows, postgres.FormRow{
					RunID:     runID,
					Line:      res.Sentence.Line,
					Start:     e.Start,
					Form:      e.Form,
					Suspicion: e.Suspicion,
					OKCount:   e.OKCount,
					ErrCount:  e.ErrCount,
				})
			}
		}
		return w.InsertForms(ctx, table, rows)
	}
	return newBatchSink("postgres", opts, flush, w.Close)
}
