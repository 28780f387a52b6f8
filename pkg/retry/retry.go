package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds configuration for the retry loop
type Config struct {
	MaxAttempts int           // Maximum number of attempts, the first one included
	BaseDelay   time.Duration // Base delay for exponential backoff
	MaxDelay    time.Duration // Maximum delay between attempts
	Multiplier  float64       // Multiplier for exponential backoff
	JitterRange float64       // Jitter range (0.0 to 1.0)
	Name        string        // Name for logging
}

// DefaultConfig returns the policy used for remote quote requests
func DefaultConfig(name string) Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		JitterRange: 0.1,
		Name:        name,
	}
}

// Func is one attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as terminal: Do returns it at once without consuming
// further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retryer runs a function with exponential backoff and jitter. It keeps no
// per-call state, so one Retryer may serve concurrent callers.
type Retryer struct {
	config Config
	logger logrus.FieldLogger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a new retryer
func New(config Config, logger logrus.FieldLogger) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 500 * time.Millisecond
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	if config.Multiplier <= 1.0 {
		config.Multiplier = 2.0
	}
	if config.JitterRange < 0 || config.JitterRange > 1.0 {
		config.JitterRange = 0.1
	}
	if config.Name == "" {
		config.Name = "retry"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Retryer{
		config: config,
		logger: logger.WithField("component", config.Name),
		sleep:  sleepContext,
	}
}

// Config returns the effective configuration.
func (r *Retryer) Config() Config {
	return r.config
}

// Do runs fn until it succeeds, returns a Permanent error, the attempt cap is
// reached or ctx is done. It returns the number of attempts made.
func (r *Retryer) Do(ctx context.Context, fn Func) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, joinCtx(err, lastErr)
		}

		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				r.logger.Infof("Operation succeeded on attempt %d", attempt)
			}
			return attempt, nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			r.logger.WithError(p.err).Debugf("Terminal error on attempt %d, not retrying", attempt)
			return attempt, p.err
		}

		lastErr = err

		if attempt == r.config.MaxAttempts {
			r.logger.Errorf("All %d attempts failed, last error: %v", attempt, err)
			break
		}

		delay := r.delay(attempt)
		r.logger.Warnf("Attempt %d failed: %v. Retrying in %v...", attempt, err, delay)

		if err := r.sleep(ctx, delay); err != nil {
			return attempt, joinCtx(err, lastErr)
		}
	}

	return r.config.MaxAttempts, fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
}

// delay calculates the wait before the next attempt
func (r *Retryer) delay(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	if r.config.JitterRange > 0 {
		jitter := rand.Float64() * r.config.JitterRange * delay
		if rand.Float64() < 0.5 {
			delay -= jitter
		} else {
			delay += jitter
		}
	}

	if delay < float64(r.config.BaseDelay) {
		delay = float64(r.config.BaseDelay)
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func joinCtx(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
}
