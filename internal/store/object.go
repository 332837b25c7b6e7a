package store

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/giftswap/internal/bucket"
	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// ObjectStore keeps the aggregate as one object in a Bucket.
//
// Update reads the object together with its tag and writes back with
// IfMatch on that tag (IfNoneMatch for the first write). A lost race
// returns a StoreError matching errors.ErrConflict, which the retry layer
// treats as transient. On a bucket without conditional writes the
// condition is ignored: the last writer wins and an earlier concurrent
// transaction can be lost.
//
// Unlike FileStore, an undecodable object is reported as a transient
// StoreError matching errors.ErrCorrupt rather than silently replaced.
type ObjectStore struct {
	bucket bucket.Bucket
	key    string
	opts   options
	logger *logging.Logger
}

// NewObjectStore returns an ObjectStore for key in b.
func NewObjectStore(b bucket.Bucket, key string, opts ...Option) (*ObjectStore, error) {
	if b == nil {
		return nil, fmt.Errorf("bucket is required")
	}
	if key == "" {
		return nil, fmt.Errorf("object key is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ObjectStore{
		bucket: b,
		key:    key,
		opts:   o,
		logger: o.logger.WithBackend(b.Name()).With("key", key),
	}, nil
}

// Name implements Store.
func (ob *ObjectStore) Name() string {
	return ob.bucket.Name()
}

// Consistent reports whether transactions are compare-and-swap. When
// false, concurrent updates may be lost.
func (ob *ObjectStore) Consistent() bool {
	return ob.bucket.Conditional()
}

// Exists reports whether the object has been written yet.
func (ob *ObjectStore) Exists(ctx context.Context) (bool, error) {
	ok, err := ob.bucket.Exists(ctx, ob.key)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, ob.storeErr("exists", err)
	}
	return ok, nil
}

// ReadAll implements Store.
func (ob *ObjectStore) ReadAll(ctx context.Context) (*world.State, error) {
	st, _, err := ob.load(ctx)
	return st, err
}

// WriteAll implements Store. It overwrites unconditionally.
func (ob *ObjectStore) WriteAll(ctx context.Context, s *world.State) error {
	c := s.Clone()
	return ob.put(ctx, c, bucket.Condition{})
}

// Update implements Store.
func (ob *ObjectStore) Update(ctx context.Context, fn Mutation) error {
	st, cond, err := ob.load(ctx)
	if err != nil {
		return err
	}
	write, err := applyMutation(st, fn)
	if err != nil || !write {
		return err
	}
	return ob.put(ctx, st, cond)
}

// load returns the aggregate and the condition that guards overwriting it.
func (ob *ObjectStore) load(ctx context.Context) (*world.State, bucket.Condition, error) {
	obj, err := ob.bucket.Get(ctx, ob.key)
	if err != nil {
		if errors.Is(err, bucket.ErrNotExist) {
			return world.New(ob.opts.now()), bucket.Condition{IfNoneMatch: true}, nil
		}
		if ctx.Err() != nil {
			return nil, bucket.Condition{}, ctx.Err()
		}
		return nil, bucket.Condition{}, ob.storeErr("get", err)
	}

	st, err := world.Decode(obj.Data, ob.opts.now())
	if err != nil {
		return nil, bucket.Condition{}, ob.storeErr("decode", err)
	}
	return st, bucket.Condition{IfMatch: obj.ETag}, nil
}

func (ob *ObjectStore) put(ctx context.Context, s *world.State, cond bucket.Condition) error {
	stamp(s, ob.opts.now())
	data, err := world.Encode(s)
	if err != nil {
		return ob.storeErr("encode", err)
	}

	if _, err := ob.bucket.Put(ctx, ob.key, data, cond); err != nil {
		if errors.Is(err, bucket.ErrPrecondition) {
			ob.logger.Debug("conditional write lost a race", "if_match", cond.IfMatch)
			return ob.storeErr("put", errors.ErrConflict)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ob.storeErr("put", err)
	}
	return nil
}

func (ob *ObjectStore) storeErr(op string, err error) error {
	return errors.NewStoreError(op, err).WithBackend(ob.bucket.Name()).WithKey(ob.key)
}
