package source

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"time"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
)

// RetryConfig configures RetryingSource.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64
	// Jitter adds randomness to backoff (0.0 to 1.0).
	Jitter float64
	// RetryIf decides whether an error is worth another attempt.
	RetryIf func(error) bool
}

// DefaultRetryConfig returns three attempts with 100ms exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        DefaultRetryIf,
	}
}

// DefaultRetryIf retries retryable AppErrors and plain errors, never
// context cancellation or non-retryable AppErrors such as an invalid query.
func DefaultRetryIf(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}

func (c *RetryConfig) applyDefaults() {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = d.BackoffFactor
	}
	if c.RetryIf == nil {
		c.RetryIf = d.RetryIf
	}
}

// backoff returns the delay after the given failed attempt (1-based).
func (c *RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * c.Jitter
	}
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if d < 0 {
		d = float64(c.InitialBackoff)
	}
	return time.Duration(d)
}

// RetryingSource retries a failing Fetch with exponential backoff.
type RetryingSource[E any] struct {
	name  string
	inner DataSource[E]
	cfg   RetryConfig
	log   *logger.Logger
}

// WithRetry wraps inner. name identifies the source in logs and errors.
func WithRetry[E any](name string, inner DataSource[E], cfg RetryConfig) *RetryingSource[E] {
	cfg.applyDefaults()
	return &RetryingSource[E]{
		name:  name,
		inner: inner,
		cfg:   cfg,
		log:   logger.WithComponent("source").WithFields(logger.Fields("source", name)),
	}
}

func (s *RetryingSource[E]) Fetch(ctx context.Context, query string, pctx *pipeline.Context) ([]E, error) {
	ctx = pctx.Bind(ctx)
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.inner.Fetch(ctx, query, pctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !s.cfg.RetryIf(err) || attempt == s.cfg.MaxAttempts {
			break
		}

		wait := s.cfg.backoff(attempt)
		s.log.WithContext(ctx).Warn("Fetch failed, retrying", logger.MergeWithError(logger.Fields(
			"attempt", attempt,
			"backoff_ms", wait.Milliseconds(),
		), err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, asSourceError(s.name, lastErr)
}
