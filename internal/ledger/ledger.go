// Package ledger tracks gifts and the steal protocol that moves them
// between participants.
//
// A gift locks when its steal count reaches world.LockThreshold and stays
// locked until an explicit ResetSteals. Steal is the only operation that
// raises the count or appends to a gift's ownership history; ResetSteals
// clears the count and lock but leaves the history in place.
package ledger

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/store"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// StealResult describes the outcome of a steal attempt.
type StealResult struct {
	// Stolen is false when the gift was locked and nothing changed.
	Stolen bool
	// Locked reports whether the gift is locked after the attempt.
	Locked bool
	// Gift is the gift as stored after the attempt.
	Gift world.Gift
}

// Message returns the outcome as shown to players.
func (r StealResult) Message() string {
	switch {
	case !r.Stolen:
		return "Gift cannot be stolen - it is locked"
	case r.Locked:
		return "Gift stolen successfully - Gift is now locked after 3 steals"
	default:
		return "Gift stolen successfully"
	}
}

// Ledger manages gifts over a store.
type Ledger struct {
	store  store.Store
	ids    io.Reader
	logger *logging.Logger
}

// New returns a Ledger over s. ids supplies the randomness for gift ids;
// nil uses crypto/rand.
func New(s store.Store, ids io.Reader, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Ledger{store: s, ids: ids, logger: logger}
}

func (l *Ledger) newID() (string, error) {
	if l.ids == nil {
		return uuid.NewString(), nil
	}
	id, err := uuid.NewRandomFromReader(l.ids)
	if err != nil {
		return "", errors.Wrap(err, "generate gift id")
	}
	return id.String(), nil
}

// Add creates a gift, optionally owned by owner.
func (l *Ledger) Add(ctx context.Context, name string, owner *int) (world.Gift, error) {
	name, err := world.CleanGiftName(name)
	if err != nil {
		return world.Gift{}, err
	}
	if owner != nil {
		if err := world.CheckParticipantID("owner", *owner); err != nil {
			return world.Gift{}, err
		}
	}

	id, err := l.newID()
	if err != nil {
		return world.Gift{}, err
	}
	g := world.Gift{
		ID:      id,
		Name:    name,
		History: []int{},
	}
	if owner != nil {
		g.Owner = world.IntPtr(*owner)
	}

	err = l.store.Update(ctx, func(st *world.State) error {
		st.Gifts = append(st.Gifts, cloneGift(g))
		return nil
	})
	if err != nil {
		return world.Gift{}, err
	}
	l.logger.Info("gift added", "gift_id", g.ID, "name", g.Name)
	return g, nil
}

// Steal moves a gift to newOwner. A locked gift is left untouched and
// reported with Stolen false.
func (l *Ledger) Steal(ctx context.Context, giftID string, newOwner int) (StealResult, error) {
	if err := world.CheckGiftID(giftID); err != nil {
		return StealResult{}, err
	}
	if err := world.CheckParticipantID("new_owner_id", newOwner); err != nil {
		return StealResult{}, err
	}

	res, err := store.Transact(ctx, l.store, func(st *world.State) (StealResult, error) {
		return Steal(st, giftID, newOwner)
	})
	if err != nil {
		return StealResult{}, err
	}

	switch {
	case !res.Stolen:
		l.logger.Info("steal rejected, gift locked", "gift_id", giftID, "new_owner_id", newOwner)
	case res.Locked:
		l.logger.Info("gift stolen and locked", "gift_id", giftID, "new_owner_id", newOwner, "steal_count", res.Gift.StealCount)
	default:
		l.logger.Info("gift stolen", "gift_id", giftID, "new_owner_id", newOwner, "steal_count", res.Gift.StealCount)
	}
	return res, nil
}

// ResetSteals clears a gift's steal count and lock. It returns false when
// the gift was already clean. The ownership history is kept.
func (l *Ledger) ResetSteals(ctx context.Context, giftID string) (bool, error) {
	if err := world.CheckGiftID(giftID); err != nil {
		return false, err
	}
	reset, err := store.Transact(ctx, l.store, func(st *world.State) (bool, error) {
		return ResetSteals(st, giftID)
	})
	if err != nil {
		return false, err
	}
	if reset {
		l.logger.Info("gift steals reset", "gift_id", giftID)
	}
	return reset, nil
}

// Rename changes a gift's name and nothing else.
func (l *Ledger) Rename(ctx context.Context, giftID, name string) (world.Gift, error) {
	if err := world.CheckGiftID(giftID); err != nil {
		return world.Gift{}, err
	}
	name, err := world.CleanGiftName(name)
	if err != nil {
		return world.Gift{}, err
	}
	return store.Transact(ctx, l.store, func(st *world.State) (world.Gift, error) {
		g, ok := st.Gift(giftID)
		if !ok {
			return world.Gift{}, errors.NewNotFoundError("gift", giftID)
		}
		g.Name = name
		return cloneGift(*g), nil
	})
}

// List returns every gift in stored order.
func (l *Ledger) List(ctx context.Context) ([]world.Gift, error) {
	st, err := l.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return st.Gifts, nil
}

// Get returns a single gift.
func (l *Ledger) Get(ctx context.Context, giftID string) (world.Gift, error) {
	st, err := l.store.ReadAll(ctx)
	if err != nil {
		return world.Gift{}, err
	}
	g, ok := st.Gift(giftID)
	if !ok {
		return world.Gift{}, errors.NewNotFoundError("gift", giftID)
	}
	return *g, nil
}

// Steal applies the steal protocol to the gift giftID in st.
func Steal(st *world.State, giftID string, newOwner int) (StealResult, error) {
	g, ok := st.Gift(giftID)
	if !ok {
		return StealResult{}, errors.NewNotFoundError("gift", giftID)
	}
	if g.Locked {
		return StealResult{Stolen: false, Locked: true, Gift: cloneGift(*g)}, store.ErrSkipWrite
	}

	if g.Owner != nil {
		g.History = append(g.History, *g.Owner)
	}
	g.Owner = world.IntPtr(newOwner)
	g.StealCount++
	if g.StealCount >= world.LockThreshold {
		g.Locked = true
	}
	return StealResult{Stolen: true, Locked: g.Locked, Gift: cloneGift(*g)}, nil
}

// ResetSteals clears the steal count and lock of giftID in st.
func ResetSteals(st *world.State, giftID string) (bool, error) {
	g, ok := st.Gift(giftID)
	if !ok {
		return false, errors.NewNotFoundError("gift", giftID)
	}
	if g.StealCount == 0 && !g.Locked {
		return false, store.ErrSkipWrite
	}
	g.StealCount = 0
	g.Locked = false
	return true, nil
}

func cloneGift(g world.Gift) world.Gift {
	g.History = append([]int{}, g.History...)
	if g.Owner != nil {
		g.Owner = world.IntPtr(*g.Owner)
	}
	return g
}
