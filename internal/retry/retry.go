package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy describes how many times an operation is attempted and how long to
// wait between attempts.
type Policy struct {
	MaxAttempts int
	Multiplier  float64
	MinWait     time.Duration
	MaxWait     time.Duration
	Jitter      bool // randomized exponential backoff
}

// DefaultPolicy is applied to every outbound crawl request: 5 attempts,
// randomized exponential wait bounded to [3s, 30s].
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	Multiplier:  1,
	MinWait:     3 * time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so that Do returns it immediately.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Wait returns the delay before the attempt following attempt n (1-based).
// The upper bound grows as Multiplier*2^(n-1) clamped to [MinWait, MaxWait];
// with Jitter the delay is drawn uniformly from [MinWait, upper].
func (p Policy) Wait(n int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	exp := mult * math.Pow(2, float64(n-1)) * float64(time.Second)
	upper := clamp(time.Duration(exp), p.MinWait, p.MaxWait)
	if !p.Jitter || upper <= p.MinWait {
		return upper
	}
	return p.MinWait + time.Duration(rand.Int64N(int64(upper-p.MinWait)+1))
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if hi > 0 && d > hi {
		return hi
	}
	return d
}

// Do runs fn until it succeeds, returns a Permanent error, the context is done
// or MaxAttempts is reached. onRetry, when set, is called before each wait.
func Do(ctx context.Context, p Policy, fn func(attempt int) error, onRetry func(attempt int, wait time.Duration, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		wait := p.Wait(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// WithRetry keeps the simple fixed/linear delay form used by the notifier.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	p := Policy{MaxAttempts: config.MaxAttempts, MinWait: config.Delay, MaxWait: config.Delay}
	if config.Backoff {
		p.MaxWait = time.Duration(config.MaxAttempts) * config.Delay
	}
	return Do(ctx, p, func(int) error { return fn() }, nil)
}

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // Exponential backoff
}
