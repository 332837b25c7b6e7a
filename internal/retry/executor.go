// Package retry runs store operations under a bounded exponential backoff.
//
// Errors classified as retryable by the errors package (StoreError) are
// retried; anything else is returned at once. When the attempt budget runs
// out the last failure is wrapped in an UnavailableError carrying the
// suggested client retry delay, so raw I/O errors never escape.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/logging"
)

// Policy bounds the retry loop.
type Policy struct {
	// MaxRetries is the total number of attempts.
	MaxRetries int
	// BaseDelay is the wait after the first failure. Attempt n waits BaseDelay * 2^n.
	BaseDelay time.Duration
	// RetryAfter is reported to callers once attempts are exhausted.
	RetryAfter time.Duration
}

// DefaultPolicy returns five attempts starting at 100ms, suggesting a one
// second client back-off on exhaustion.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 5,
		BaseDelay:  100 * time.Millisecond,
		RetryAfter: time.Second,
	}
}

// Budget returns the total time spent sleeping if every attempt fails.
func (p Policy) Budget() time.Duration {
	var total time.Duration
	for i := 0; i < p.MaxRetries-1; i++ {
		total += p.BaseDelay << i
	}
	return total
}

// Executor applies a Policy to operations. It is safe for concurrent use.
type Executor struct {
	policy Policy
	logger *logging.Logger
	stats  *Stats
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for retry and exhaustion events.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithStats shares a Stats collector between executors.
func WithStats(s *Stats) Option {
	return func(e *Executor) {
		e.stats = s
	}
}

// New returns an Executor for p. A non-positive MaxRetries is treated as a
// single attempt.
func New(p Policy, opts ...Option) *Executor {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
	e := &Executor{
		policy: p,
		logger: logging.NopLogger(),
		stats:  NewStats(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Stats returns the executor's attempt counters.
func (e *Executor) Stats() *Stats {
	return e.stats
}

func (e *Executor) backOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     e.policy.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         e.policy.BaseDelay << max(e.policy.MaxRetries-1, 0),
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. op names the operation in logs and stats.
func Do[T any](ctx context.Context, e *Executor, op string, fn func(context.Context) (T, error)) (T, error) {
	log := e.logger.WithOperation(op)
	attempts := 0

	result, err := backoff.Retry(ctx,
		func() (T, error) {
			attempts++
			v, err := fn(ctx)
			e.stats.recordAttempt(op, err)
			if err != nil && !errors.IsRetryable(err) {
				return v, backoff.Permanent(err)
			}
			return v, err
		},
		backoff.WithBackOff(e.backOff()),
		backoff.WithMaxTries(uint(e.policy.MaxRetries)),
		backoff.WithMaxElapsedTime(e.policy.Budget()+time.Minute),
		backoff.WithNotify(func(err error, delay time.Duration) {
			log.Warn("transient store failure, retrying",
				"attempt", attempts,
				"delay", delay.String(),
				"error", err.Error())
		}),
	)

	switch {
	case err == nil:
		e.stats.recordOutcome(op, outcomeSuccess, nil)
		return result, nil
	case errors.IsRetryable(err):
		e.stats.recordOutcome(op, outcomeExhausted, err)
		log.Error("store unavailable after retries",
			"attempts", attempts,
			"error", err.Error())
		var zero T
		return zero, errors.NewUnavailableError(attempts, e.policy.RetryAfter, err)
	default:
		e.stats.recordOutcome(op, outcomeFailed, err)
		return result, err
	}
}

// Run is Do for operations without a result.
func (e *Executor) Run(ctx context.Context, op string, fn func(context.Context) error) error {
	_, err := Do(ctx, e, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
