package retry

import (
	"sort"
	"sync"
)

// OpStats counts the attempts made for one operation name.
type OpStats struct {
	Op        string `json:"op" yaml:"op"`
	Attempts  int    `json:"attempts" yaml:"attempts"`
	Failures  int    `json:"failures" yaml:"failures"`
	Succeeded int    `json:"succeeded" yaml:"succeeded"`
	Exhausted int    `json:"exhausted" yaml:"exhausted"`
	Rejected  int    `json:"rejected" yaml:"rejected"` // non-retryable failures
	LastError string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeExhausted
	outcomeFailed
)

// Stats collects per-operation retry counters.
// It is thread-safe and can be used concurrently.
type Stats struct {
	mu  sync.RWMutex
	ops map[string]*OpStats
}

// NewStats creates an empty collector.
func NewStats() *Stats {
	return &Stats{ops: make(map[string]*OpStats)}
}

// entry returns the counters for op, creating them. Caller holds mu.
func (s *Stats) entry(op string) *OpStats {
	st, ok := s.ops[op]
	if !ok {
		st = &OpStats{Op: op}
		s.ops[op] = st
	}
	return st
}

func (s *Stats) recordAttempt(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entry(op)
	st.Attempts++
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
}

func (s *Stats) recordOutcome(op string, o outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entry(op)
	switch o {
	case outcomeSuccess:
		st.Succeeded++
	case outcomeExhausted:
		st.Exhausted++
	case outcomeFailed:
		st.Rejected++
	}
	if err != nil {
		st.LastError = err.Error()
	}
}

// Get returns a copy of the counters for op.
func (s *Stats) Get(op string) (OpStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.ops[op]
	if !ok {
		return OpStats{}, false
	}
	return *st, true
}

// All returns a copy of every operation's counters, sorted by name.
func (s *Stats) All() []OpStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OpStats, 0, len(s.ops))
	for _, st := range s.ops {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = make(map[string]*OpStats)
}
