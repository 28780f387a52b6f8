package retry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRetryer(maxAttempts int) *Retryer {
	r := New(Config{MaxAttempts: maxAttempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Name: "test"}, quietLogger())
	r.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return r
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	r := newTestRetryer(3)
	calls := 0

	attempts, err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	r := newTestRetryer(5)
	calls := 0

	attempts, err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	r := newTestRetryer(5)
	terminal := errors.New("no route")
	calls := 0

	attempts, err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(terminal)
	})

	require.Error(t, err)
	assert.Same(t, terminal, err, "permanent errors come back unwrapped")
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	r := newTestRetryer(3)
	transient := errors.New("dial tcp: connection refused")
	calls := 0

	attempts, err := r.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return transient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	r := newTestRetryer(5)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := r.Do(ctx, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(io.EOF)))
	assert.ErrorIs(t, Permanent(io.EOF), io.EOF)
}

func TestDelayBounds(t *testing.T) {
	r := New(Config{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, JitterRange: 0.1}, quietLogger())

	for attempt := 1; attempt <= 10; attempt++ {
		d := r.delay(attempt)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	r := New(Config{}, nil)
	cfg := r.Config()

	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.Equal(t, "retry", cfg.Name)
}
