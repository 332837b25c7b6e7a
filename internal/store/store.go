// Package store persists the game aggregate as one document and runs
// read-modify-write transactions against it.
//
// Two backends are provided:
//   - FileStore holds an exclusive flock(2) for the whole transaction, so
//     cooperating processes on one filesystem are fully serialized.
//   - ObjectStore reads and overwrites a whole object in a bucket. When the
//     bucket supports conditional writes each transaction is a
//     compare-and-swap on the object's tag; when it does not, concurrent
//     transactions race and the last writer wins.
//
// Retrying wraps either backend with a retry.Executor so transient
// failures are absorbed and exhaustion surfaces as an UnavailableError.
package store

import (
	"context"
	"time"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// ErrSkipWrite may be returned by a Mutation to end the transaction
// successfully without writing.
var ErrSkipWrite = errors.New("skip write")

// Mutation modifies the aggregate in place. Returning an error aborts the
// transaction and nothing is written.
type Mutation func(*world.State) error

// Store reads and writes the whole aggregate.
type Store interface {
	// Name identifies the backend in logs, errors and health output.
	Name() string
	// ReadAll returns the current aggregate. An absent document reads as
	// an empty aggregate.
	ReadAll(ctx context.Context) (*world.State, error)
	// WriteAll replaces the stored aggregate with s.
	WriteAll(ctx context.Context, s *world.State) error
	// Update loads the aggregate, applies fn and writes the result as one
	// transaction. fn may be called more than once when a backend retries
	// a lost race, so it must not have side effects outside the state.
	Update(ctx context.Context, fn Mutation) error
}

// Transact runs fn inside s.Update and returns its result. A result paired
// with ErrSkipWrite is returned with a nil error.
func Transact[T any](ctx context.Context, s Store, fn func(*world.State) (T, error)) (T, error) {
	var out T
	err := s.Update(ctx, func(st *world.State) error {
		v, err := fn(st)
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Option configures a backend.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *logging.Logger
}

func defaultOptions() options {
	return options{
		now:    time.Now,
		logger: logging.NopLogger(),
	}
}

// WithClock sets the clock used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger for recovery and conflict events.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// stamp prepares s for writing.
func stamp(s *world.State, now time.Time) {
	s.Meta.LastUpdated = world.At(now)
	s.Meta.Version = world.FormatVersion
}

// applyMutation runs fn and reports whether the result should be written.
func applyMutation(st *world.State, fn Mutation) (bool, error) {
	if err := fn(st); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
