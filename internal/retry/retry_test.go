package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Multiplier: 1, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond, Jitter: true}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")

	err := Do(context.Background(), fastPolicy(5), func(int) error {
		calls++
		return boom
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
}

func TestDoSucceedsOnLaterAttempt(t *testing.T) {
	var retried []int
	err := Do(context.Background(), fastPolicy(5), func(attempt int) error {
		if attempt < 3 {
			return errors.New("flaky")
		}
		return nil
	}, func(attempt int, _ time.Duration, _ error) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoPermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	bad := errors.New("bad request")
	err := Do(context.Background(), fastPolicy(5), func(int) error {
		calls++
		return Stop(bad)
	}, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, bad, err)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, MinWait: time.Hour, MaxWait: time.Hour}

	calls := 0
	err := Do(ctx, p, func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWaitBounds(t *testing.T) {
	p := DefaultPolicy
	for n := 1; n <= 10; n++ {
		w := p.Wait(n)
		assert.GreaterOrEqual(t, w, 3*time.Second, "attempt %d", n)
		assert.LessOrEqual(t, w, 30*time.Second, "attempt %d", n)
	}

	p.Jitter = false
	assert.Equal(t, 3*time.Second, p.Wait(1))
	assert.Equal(t, 8*time.Second, p.Wait(4))
	assert.Equal(t, 30*time.Second, p.Wait(9))
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		return errors.New("nope")
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)
}
