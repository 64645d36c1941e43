// Package resilience retries transient failures of network calls with exponential
// backoff and jitter.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls how many times and how fast a call is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first. Default 3.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry. Default 500ms.
	InitialBackoff time.Duration
	// MaxBackoff caps any single delay. Default 30s.
	MaxBackoff time.Duration
	// Multiplier scales the delay after each attempt. Default 2.
	Multiplier float64
	// Jitter randomises each delay by ±Jitter of its value. Default 0.25.
	Jitter float64
	// Retryable decides whether an error is worth another attempt. Default IsTransient.
	Retryable func(err error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns the policy used for portal downloads.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
		Jitter:         0.25,
	}
}

// WithLogger returns a copy of p that logs every retry at warn level.
func (p Policy) WithLogger(log *zap.Logger, op string) Policy {
	if log == nil {
		return p
	}
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts run out or
// ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

func (p Policy) backoff(attempt int) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	delay = math.Min(delay, float64(p.MaxBackoff))
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	return time.Duration(math.Max(delay, 0))
}
