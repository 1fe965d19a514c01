package resilience

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/logger"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsEventually(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "flaky", fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), "broken", fastPolicy(2), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, "cancelled", fastPolicy(5), func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoDoesNotRetryFinalErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid input", apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "bad row")},
		{"invalid config", apperrors.New(apperrors.ErrInvalidConfig, apperrors.ExitUsage, "bad table")},
		{"cancelled by callee", context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			// A long backoff would make the test hang if the error were retried.
			p := Policy{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
			err := Do(context.Background(), "write", p, func(context.Context) error {
				calls++
				return tt.err
			})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDoRetriesAttemptTimeout(t *testing.T) {
	calls := 0
	p := fastPolicy(3)
	p.AttemptTimeout = 5 * time.Millisecond
	err := Do(context.Background(), "slow-then-fast", p, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoLogsRunID(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	logger.SetupWriter(&buf, "info", "text")

	ctx := logger.WithRunID(context.Background(), "run-42")
	calls := 0
	err := Do(ctx, "kafka-flush", fastPolicy(2), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("leader not available")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "run_id=run-42")
	assert.Contains(t, buf.String(), "operation=kafka-flush")
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(errors.New("connection reset")))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(apperrors.Newf(apperrors.ErrInvariant, apperrors.ExitInvariant, "x")))
}

func TestPolicyDelayBounded(t *testing.T) {
	p := Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2, JitterFraction: 0.1}
	for attempt := 1; attempt < 10; attempt++ {
		d := p.delay(attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, p.MaxDelay)
	}
}

func TestAttempt(t *testing.T) {
	err := Attempt(context.Background(), "slow", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = Attempt(context.Background(), "fast", time.Second, func(context.Context) error { return nil })
	assert.NoError(t, err)

	called := false
	err = Attempt(context.Background(), "unbounded", 0, func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}
