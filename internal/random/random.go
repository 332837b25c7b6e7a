// Package random provides the seeded randomness used for slot assignment
// and gift ids.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Source is a goroutine-safe ChaCha8 stream. It serves both bounded
// integers and raw bytes, so one seed fixes every random choice a game
// makes.
type Source struct {
	mu  sync.Mutex
	cc  *rand.ChaCha8
	rng *rand.Rand
}

// NewSeeded returns a deterministic Source for seed.
func NewSeeded(seed uint64) *Source {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	cc := rand.NewChaCha8(key)
	return &Source{cc: cc, rng: rand.New(cc)}
}

// New returns a Source seeded from crypto/rand.
func New() (*Source, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeeded(seed), nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// IntN returns a uniform integer in [0, n). It panics if n <= 0.
func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Read fills p with random bytes. It never fails.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cc.Read(p)
}
