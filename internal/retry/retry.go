// Package retry wraps an operation with bounded exponential backoff.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how an operation is retried. The wait before retry n
// (n starting at 1) is BaseDelay * Multiplier^n.
type Policy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	Multiplier  float64

	// Retryable reports whether err is worth another attempt. A nil
	// Retryable retries every error.
	Retryable func(error) bool

	// OnRetry is called before each wait.
	OnRetry func(err error, attempt int, wait time.Duration)
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.MaxAttempts),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			p.OnRetry(err, attempt, wait)
		}))
	}
	return backoff.Retry(ctx, wrapped, opts...)
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(float64(p.BaseDelay) * p.Multiplier)
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(p.MaxAttempts)))
	return b
}

// Delays lists the waits p would insert between its attempts.
func (p Policy) Delays() []time.Duration {
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}
	var out []time.Duration
	for n := 1; n < int(p.MaxAttempts); n++ {
		out = append(out, time.Duration(float64(p.BaseDelay)*math.Pow(p.Multiplier, float64(n))))
	}
	return out
}
