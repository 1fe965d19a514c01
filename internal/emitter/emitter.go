// Package emitter writes expanded sentences to their destinations: the forms
// file, the sentence file and any optional record sinks.
package emitter

import (
	"context"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
)

// Emitter receives expanded sentences in ERR corpus order. Emit is called
// from a single goroutine. Close flushes anything buffered.
type Emitter interface {
	Emit(ctx context.Context, res expander.SentenceResult) error
	Close(ctx context.Context) error
}

// Multi fans every sentence out to a list of emitters, in order.
type Multi struct {
	emitters []Emitter
}

func NewMulti(emitters ...Emitter) *Multi {
	return &Multi{emitters: emitters}
}

// Emit stops at the first failing emitter.
func (m *Multi) Emit(ctx context.Context, res expander.SentenceResult) error {
	for _, e := range m.emitters {
		if err := e.Emit(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every emitter and joins their errors.
func (m *Multi) Close(ctx context.Context) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
