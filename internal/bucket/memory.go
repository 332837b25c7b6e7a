package bucket

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Bucket. It is safe for concurrent use.
type Memory struct {
	mu          sync.Mutex
	objects     map[string]Object
	conditional bool
}

// MemoryOption configures a Memory bucket.
type MemoryOption func(*Memory)

// WithoutConditionalWrites makes Put ignore its Condition, modelling a
// store without compare-and-swap.
func WithoutConditionalWrites() MemoryOption {
	return func(m *Memory) {
		m.conditional = false
	}
}

// NewMemory returns an empty Memory bucket that honours conditions.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		objects:     make(map[string]Object),
		conditional: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements Bucket.
func (m *Memory) Name() string {
	return "memory"
}

// Conditional implements Bucket.
func (m *Memory) Conditional() bool {
	return m.conditional
}

// Get implements Bucket. The returned data is a copy.
func (m *Memory) Get(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotExist
	}
	return &Object{Data: slices.Clone(obj.Data), ETag: obj.ETag}, nil
}

// Put implements Bucket.
func (m *Memory) Put(ctx context.Context, key string, data []byte, cond Condition) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conditional {
		current, exists := m.objects[key]
		if cond.IfNoneMatch && exists {
			return "", ErrPrecondition
		}
		if cond.IfMatch != "" && (!exists || current.ETag != cond.IfMatch) {
			return "", ErrPrecondition
		}
	}

	tag := ContentTag(data)
	m.objects[key] = Object{Data: slices.Clone(data), ETag: tag}
	return tag, nil
}

// Exists implements Bucket.
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]
	return ok, nil
}
