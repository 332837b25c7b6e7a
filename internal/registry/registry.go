// Package registry assigns participants to the game's numbered slots.
//
// Slots run from 1 to world.MaxParticipants. A new participant receives a
// slot chosen uniformly at random from the unused ones, never simply the
// lowest free id, so callers cannot rely on any ordering of assignment.
package registry

import (
	"context"
	"slices"
	"time"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/store"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// Rand picks a uniform integer in [0, n).
type Rand interface {
	IntN(n int) int
}

// Registry registers and lists participants.
type Registry struct {
	store  store.Store
	rng    Rand
	now    func() time.Time
	logger *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for registration timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger sets the registry's logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New returns a Registry over s drawing slots from rng.
func New(s store.Store, rng Rand, opts ...Option) *Registry {
	r := &Registry{
		store:  s,
		rng:    rng,
		now:    time.Now,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a participant under a random free slot.
func (r *Registry) Add(ctx context.Context, name string) (world.Participant, error) {
	name, err := world.CleanParticipantName(name)
	if err != nil {
		return world.Participant{}, err
	}

	p, err := store.Transact(ctx, r.store, func(st *world.State) (world.Participant, error) {
		return Register(st, name, r.rng, r.now())
	})
	if err != nil {
		return world.Participant{}, err
	}
	r.logger.Info("participant registered", "participant_id", p.ID, "name", p.Name)
	return p, nil
}

// List returns every participant ordered by id.
func (r *Registry) List(ctx context.Context) ([]world.Participant, error) {
	st, err := r.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return Sorted(st), nil
}

// Count returns the number of registered participants.
func (r *Registry) Count(ctx context.Context) (int, error) {
	st, err := r.store.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(st.Participants), nil
}

// Register adds a participant named name to st. name must already be
// cleaned with world.CleanParticipantName.
func Register(st *world.State, name string, rng Rand, now time.Time) (world.Participant, error) {
	free := FreeSlots(st)
	if len(free) == 0 {
		return world.Participant{}, errors.NewCapacityError("participants", world.MaxParticipants)
	}

	p := world.Participant{
		ID:           free[rng.IntN(len(free))],
		Name:         name,
		RegisteredAt: world.At(now),
	}
	st.Participants = append(st.Participants, p)
	return p, nil
}

// FreeSlots returns the unused slot ids in ascending order. A document
// holding more than world.MaxParticipants entries has no free slots even
// if some of its ids are out of range.
func FreeSlots(st *world.State) []int {
	if len(st.Participants) >= world.MaxParticipants {
		return nil
	}
	used := make(map[int]bool, len(st.Participants))
	for _, p := range st.Participants {
		used[p.ID] = true
	}
	free := make([]int, 0, world.MaxParticipants-len(st.Participants))
	for id := 1; id <= world.MaxParticipants; id++ {
		if !used[id] {
			free = append(free, id)
		}
	}
	return free
}

// Sorted returns a copy of st's participants ordered by id.
func Sorted(st *world.State) []world.Participant {
	out := slices.Clone(st.Participants)
	slices.SortFunc(out, func(a, b world.Participant) int {
		return a.ID - b.ID
	})
	return out
}
