// Package resilience retries record-sink writes that fail for transient
// reasons: broker or database hiccups, slow round trips. Errors caused by
// the run itself are returned at once.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/logger"
)

// Policy bounds the attempts made for one sink write.
type Policy struct {
	MaxAttempts int
	// AttemptTimeout limits each attempt separately; zero means no limit
	// beyond the caller's context.
	AttemptTimeout time.Duration
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

// DefaultPolicy returns three attempts with exponential backoff starting at
// 100ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.JitterFraction <= 0 {
		p.JitterFraction = d.JitterFraction
	}
	return p
}

// Retryable reports whether err may go away on another attempt. Cancellation,
// rejected input or configuration, malformed tokens and invariant violations
// are final.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled),
		errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, apperrors.ErrInvalidConfig),
		errors.Is(err, apperrors.ErrMalformedToken),
		errors.Is(err, apperrors.ErrInvariant):
		return false
	default:
		return true
	}
}

// Do runs fn until it succeeds, fails with an error that is not Retryable,
// or the policy's attempts are spent. Retries are logged with the run id
// carried by ctx.
func Do(ctx context.Context, op string, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	log := logger.FromContext(ctx).With("component", "retry", "operation", op)
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = Attempt(ctx, op, p.AttemptTimeout, fn)
		if lastErr == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s aborted: %w", op, err)
		}
		if !Retryable(lastErr) {
			log.Warn("not retrying", "attempt", attempt, "error", lastErr)
			return fmt.Errorf("%s: %w", op, lastErr)
		}
		if attempt == p.MaxAttempts {
			break
		}
		delay := p.delay(attempt)
		log.Warn("attempt failed, retrying", "attempt", attempt, "max_attempts", p.MaxAttempts, "error", lastErr, "next_delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s aborted during backoff: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("all %d attempts failed for %s: %w", p.MaxAttempts, op, lastErr)
}

// delay is the jittered exponential backoff after the given attempt.
func (p Policy) delay(attempt int) time.Duration {
	backoff := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	backoff += backoff * p.JitterFraction * (2*rand.Float64() - 1)
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	if backoff <= 0 {
		backoff = float64(p.InitialDelay)
	}
	return time.Duration(backoff)
}
