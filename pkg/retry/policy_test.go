package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTerminal = errors.New("terminal")

func collectDelays(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	policy := NewPolicy(3, time.Second, nil).WithSleep(collectDelays(&delays))

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDo_ExponentialBackoff(t *testing.T) {
	var delays []time.Duration
	policy := NewPolicy(4, time.Second, func(err error) bool { return true }).
		WithSleep(collectDelays(&delays))

	calls := 0
	transient := errors.New("timeout")
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return transient
	})

	assert.Equal(t, transient, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)
}

func TestDo_TerminalErrorNotRetried(t *testing.T) {
	policy := NewPolicy(3, time.Second, func(err error) bool {
		return !errors.Is(err, errTerminal)
	}).WithSleep(collectDelays(&[]time.Duration{}))

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTerminal
	})

	assert.Equal(t, errTerminal, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RecoversAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	policy := NewPolicy(3, time.Second, func(err error) bool { return true }).
		WithSleep(collectDelays(&delays))

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	policy := NewPolicy(3, time.Second, func(err error) bool { return true }).
		WithSleep(func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		})

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestNewPolicy_ClampsAttempts(t *testing.T) {
	policy := NewPolicy(0, time.Second, nil)
	assert.Equal(t, 1, policy.MaxAttempts)
}
