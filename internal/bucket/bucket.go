// Package bucket abstracts a keyed whole-object store: get, put and
// existence check, plus an optional compare-and-swap on an entity tag.
//
// Implementations:
//   - Memory: in-process map, for tests and throwaway games
//   - SQLite: a single table in a local database file
//   - S3: an S3 or S3-compatible bucket
package bucket

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/zeebo/blake3"
)

var (
	// ErrNotExist is returned by Get when no object is stored under the key.
	ErrNotExist = errors.New("object does not exist")
	// ErrPrecondition is returned by Put when its Condition does not hold.
	ErrPrecondition = errors.New("precondition failed")
)

// Object is a stored value and the entity tag identifying its content.
type Object struct {
	Data []byte
	ETag string
}

// Condition guards a Put. The zero value writes unconditionally.
type Condition struct {
	// IfMatch writes only if the stored object's tag equals this value.
	IfMatch string
	// IfNoneMatch writes only if no object is stored under the key.
	IfNoneMatch bool
}

// IsZero reports whether c imposes no condition.
func (c Condition) IsZero() bool {
	return c.IfMatch == "" && !c.IfNoneMatch
}

// Bucket stores whole objects by key.
type Bucket interface {
	// Name identifies the implementation in logs and errors.
	Name() string
	// Get returns the object under key or ErrNotExist.
	Get(ctx context.Context, key string) (*Object, error)
	// Put stores data under key and returns the new tag. If the bucket is
	// conditional and cond does not hold, it returns ErrPrecondition.
	Put(ctx context.Context, key string, data []byte, cond Condition) (string, error)
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Conditional reports whether Put honours its Condition. When false,
	// conditions are ignored and the last writer wins.
	Conditional() bool
}

// ContentTag returns a stable entity tag for data.
func ContentTag(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
