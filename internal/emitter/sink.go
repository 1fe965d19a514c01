package emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/expander"
	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/resilience"
)

// SinkOptions are shared by the record sinks.
type SinkOptions struct {
	RunID         string
	BatchSize     int
	RetryAttempts int
	RetryBackoff  time.Duration
	// Timeout bounds each flush attempt.
	Timeout time.Duration
	Metrics *metrics.Metrics
}

func (o SinkOptions) policy() resilience.Policy {
	p := resilience.DefaultPolicy()
	if o.RetryAttempts > 0 {
		p.MaxAttempts = o.RetryAttempts
	}
	if o.RetryBackoff > 0 {
		p.InitialDelay = o.RetryBackoff
	}
	p.AttemptTimeout = o.Timeout
	return p
}

type flushFunc func(ctx context.Context, batch []expander.SentenceResult) error

// batchSink buffers sentences and hands them to flush in batches. Every
// flush attempt is bounded by the timeout and transient failures are retried
// with backoff; a batch that still fails aborts the run.
type batchSink struct {
	name    string
	opts    SinkOptions
	flushFn flushFunc
	closeFn func() error
	buffer  []expander.SentenceResult
	logger  *slog.Logger
}

func newBatchSink(name string, opts SinkOptions, flush flushFunc, closeFn func() error) *batchSink {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &batchSink{
		name:    name,
		opts:    opts,
		flushFn: flush,
		closeFn: closeFn,
		buffer:  make([]expander.SentenceResult, 0, opts.BatchSize),
		logger:  slog.Default().With("component", "sink", "sink", name, "run_id", opts.RunID),
	}
}

func (s *batchSink) Emit(ctx context.Context, res expander.SentenceResult) error {
	s.buffer = append(s.buffer, res)
	if len(s.buffer) < s.opts.BatchSize {
		return nil
	}
	return s.flush(ctx)
}

func (s *batchSink) Close(ctx context.Context) error {
	err := s.flush(ctx)
	if s.closeFn != nil {
		if cerr := s.closeFn(); cerr != nil && err == nil {
			err = apperrors.Newf(apperrors.ErrSink, apperrors.ExitIO, "%s: closing: %v", s.name, cerr)
		}
	}
	return err
}

func (s *batchSink) flush(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}
	batch := s.buffer
	err := resilience.Do(ctx, s.name+"-flush", s.opts.policy(), func(ctx context.Context) error {
		return s.flushFn(ctx, batch)
	})
	s.record(len(batch), err)
	if err != nil {
		s.logger.Error("sink flush failed", "sentences", len(batch), "error", err)
		return sinkError(s.name, err)
	}
	s.logger.Debug("sink flushed", "sentences", len(batch))
	s.buffer = make([]expander.SentenceResult, 0, s.opts.BatchSize)
	return nil
}

// sinkError keeps cancellation and errors that already carry an exit code;
// anything else is a sink failure.
func sinkError(name string, err error) error {
	var appErr *apperrors.AppError
	if errors.Is(err, context.Canceled) || errors.As(err, &appErr) {
		return fmt.Errorf("%s: %w", name, err)
	}
	return apperrors.Newf(apperrors.ErrSink, apperrors.ExitIO, "%s: %v", name, err)
}

func (s *batchSink) record(n int, err error) {
	if s.opts.Metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.opts.Metrics.SinkWritesTotal.WithLabelValues(s.name, status).Add(float64(n))
}
