package store

import (
	"context"

	"github.com/Iron-Ham/giftswap/internal/retry"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// Retrying runs every operation of an inner Store through a retry.Executor.
// Errors it returns are either caller errors from a Mutation, a context
// error, or an UnavailableError; raw StoreErrors never escape.
type Retrying struct {
	inner Store
	exec  *retry.Executor
}

// NewRetrying wraps inner with exec.
func NewRetrying(inner Store, exec *retry.Executor) *Retrying {
	return &Retrying{inner: inner, exec: exec}
}

// Unwrap returns the wrapped store.
func (r *Retrying) Unwrap() Store {
	return r.inner
}

// Executor returns the executor applied to each operation.
func (r *Retrying) Executor() *retry.Executor {
	return r.exec
}

// Name implements Store.
func (r *Retrying) Name() string {
	return r.inner.Name()
}

// ReadAll implements Store.
func (r *Retrying) ReadAll(ctx context.Context) (*world.State, error) {
	return retry.Do(ctx, r.exec, "read_all", r.inner.ReadAll)
}

// WriteAll implements Store.
func (r *Retrying) WriteAll(ctx context.Context, s *world.State) error {
	return r.exec.Run(ctx, "write_all", func(ctx context.Context) error {
		return r.inner.WriteAll(ctx, s)
	})
}

// Update implements Store.
func (r *Retrying) Update(ctx context.Context, fn Mutation) error {
	return r.exec.Run(ctx, "update", func(ctx context.Context) error {
		return r.inner.Update(ctx, fn)
	})
}
