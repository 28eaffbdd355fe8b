package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

// recordSleeps swaps Sleep for a recorder for the duration of the test.
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := Sleep
	Sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { Sleep = orig })
	return &delays
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	delays := recordSleeps(t)
	calls := 0
	got, err := Do(context.Background(), 3, 100*time.Millisecond, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays)
}

func TestDo_ReturnsLastErrorUnchanged(t *testing.T) {
	delays := recordSleeps(t)
	calls := 0
	last := errors.New("third failure")
	_, err := Do(context.Background(), 3, time.Second, func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, errFlaky
	})

	assert.Same(t, last, err, "error must not be wrapped")
	assert.Equal(t, 3, calls)
	assert.Len(t, *delays, 2, "no wait after the final attempt")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	recordSleeps(t)
	calls := 0
	_, err := Do(context.Background(), 5, time.Millisecond, func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(errFlaky)
	})
	assert.Equal(t, 1, calls)
	assert.Same(t, errFlaky, err)
}

func TestDo_CancellationPropagatesWithoutRetry(t *testing.T) {
	recordSleeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, 5, time.Millisecond, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, 3, time.Millisecond, func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := Do(ctx, 3, 10*time.Second, func(ctx context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestBackoff(t *testing.T) {
	base := 250 * time.Millisecond
	assert.Equal(t, 250*time.Millisecond, Backoff(base, 0))
	assert.Equal(t, 500*time.Millisecond, Backoff(base, 1))
	assert.Equal(t, 2*time.Second, Backoff(base, 3))
}
