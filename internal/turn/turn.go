// Package turn implements the game's phase machine and turn navigation.
//
// The phases are registration, active and completed. The turn order is a
// one-time snapshot of the participant ids in ascending order, taken the
// first time it is needed while still in registration; participants who
// register later are not added to it.
//
// Advance starts the game implicitly when called during registration.
// Previous does not: it fails with ErrNotStarted until a turn order
// exists. A current turn that is missing from the turn order is repaired
// by moving it to the first entry and logging a warning; it is never
// reported as an error.
package turn

import (
	"context"
	"slices"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/store"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// View is the externally visible turn state.
type View struct {
	Phase              world.Phase
	CurrentTurn        *int
	CurrentParticipant *world.Participant
	TurnOrder          []int
	TotalParticipants  int
}

// ViewOf builds a View from st.
func ViewOf(st *world.State) View {
	v := View{
		Phase:             st.Game.Phase,
		TurnOrder:         slices.Clone(st.Game.TurnOrder),
		TotalParticipants: len(st.Participants),
	}
	if st.Game.CurrentTurn != nil {
		v.CurrentTurn = world.IntPtr(*st.Game.CurrentTurn)
		if p, ok := st.Participant(*st.Game.CurrentTurn); ok {
			cp := *p
			v.CurrentParticipant = &cp
		}
	}
	return v
}

// Move is the outcome of Advance or Previous.
type Move struct {
	// Turn is the id the move landed on, or nil when the game completed
	// or could not go back further.
	Turn *int
	View View
}

// Machine runs turn operations as store transactions.
type Machine struct {
	store  store.Store
	logger *logging.Logger
}

// New returns a Machine over s.
func New(s store.Store, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Machine{store: s, logger: logger}
}

// Current returns the turn state, establishing the turn order first if
// participants are waiting in registration. It writes only when the order
// was established.
func (m *Machine) Current(ctx context.Context) (View, error) {
	return store.Transact(ctx, m.store, func(st *world.State) (View, error) {
		if !EnsureOrder(st) {
			return ViewOf(st), store.ErrSkipWrite
		}
		m.logger.Info("turn order established", "turn_order", st.Game.TurnOrder)
		return ViewOf(st), nil
	})
}

// Start moves the game from registration to active.
func (m *Machine) Start(ctx context.Context) (View, error) {
	v, err := store.Transact(ctx, m.store, func(st *world.State) (View, error) {
		if err := Start(st, m.logger); err != nil {
			return View{}, err
		}
		return ViewOf(st), nil
	})
	if err != nil {
		return View{}, err
	}
	m.logger.Info("game started", "turn_order", v.TurnOrder)
	return v, nil
}

// Advance moves to the next turn. Advancing a completed game writes
// nothing.
func (m *Machine) Advance(ctx context.Context) (Move, error) {
	var wasCompleted bool
	mv, err := store.Transact(ctx, m.store, func(st *world.State) (Move, error) {
		wasCompleted = st.Game.Phase == world.PhaseCompleted
		turn, err := Advance(st, m.logger)
		if err != nil {
			return Move{}, err
		}
		mv := Move{Turn: turn, View: ViewOf(st)}
		if wasCompleted {
			return mv, store.ErrSkipWrite
		}
		return mv, nil
	})
	if err != nil {
		return Move{}, err
	}
	if !wasCompleted && mv.View.Phase == world.PhaseCompleted {
		m.logger.Info("game completed")
	}
	return mv, nil
}

// Previous moves back one turn.
func (m *Machine) Previous(ctx context.Context) (Move, error) {
	return store.Transact(ctx, m.store, func(st *world.State) (Move, error) {
		turn, err := Previous(st, m.logger)
		if err != nil {
			return Move{}, err
		}
		mv := Move{Turn: turn, View: ViewOf(st)}
		if turn == nil {
			// Already at the first turn; nothing changed.
			return mv, store.ErrSkipWrite
		}
		return mv, nil
	})
}

// EnsureOrder snapshots the sorted participant ids as the turn order when
// none exists yet, participants are registered and the game is still in
// registration. It reports whether st changed.
func EnsureOrder(st *world.State) bool {
	if len(st.Game.TurnOrder) > 0 || len(st.Participants) == 0 || st.Game.Phase != world.PhaseRegistration {
		return false
	}
	st.Game.TurnOrder = st.ParticipantIDs()
	st.Game.CurrentTurn = world.IntPtr(st.Game.TurnOrder[0])
	return true
}

// Start activates the game.
func Start(st *world.State, logger *logging.Logger) error {
	if len(st.Participants) == 0 {
		return errors.NewGameError("start", errors.ErrNoParticipants)
	}
	if st.Game.Phase != world.PhaseRegistration {
		return errors.NewGameError("start", errors.ErrAlreadyStarted)
	}
	activate(st, logger, "start")
	return nil
}

// Advance moves st to the next turn and returns the new current id. In
// registration it only starts the game and returns the first id. After
// the last turn it completes the game and returns nil. A completed game
// stays completed.
func Advance(st *world.State, logger *logging.Logger) (*int, error) {
	if len(st.Participants) == 0 {
		return nil, errors.NewGameError("advance", errors.ErrNoParticipants)
	}

	switch st.Game.Phase {
	case world.PhaseRegistration:
		activate(st, logger, "advance")
		return copyTurn(st), nil
	case world.PhaseCompleted:
		return nil, nil
	}

	if len(st.Game.TurnOrder) == 0 {
		// Active without an order: the document was edited or written by
		// an older release. Take the snapshot now.
		st.Game.TurnOrder = st.ParticipantIDs()
	}

	idx := indexOfCurrent(st)
	if idx < 0 {
		heal(st, logger, "advance")
		return copyTurn(st), nil
	}
	if idx == len(st.Game.TurnOrder)-1 {
		st.Game.Phase = world.PhaseCompleted
		st.Game.CurrentTurn = nil
		return nil, nil
	}
	st.Game.CurrentTurn = world.IntPtr(st.Game.TurnOrder[idx+1])
	return copyTurn(st), nil
}

// Previous moves st back one turn and returns the new current id, or nil
// when already at the first turn. From completed it returns to the last
// turn and reactivates the game.
func Previous(st *world.State, logger *logging.Logger) (*int, error) {
	if len(st.Participants) == 0 {
		return nil, errors.NewGameError("previous", errors.ErrNoParticipants)
	}
	if len(st.Game.TurnOrder) == 0 {
		return nil, errors.NewGameError("previous", errors.ErrNotStarted)
	}

	order := st.Game.TurnOrder
	if st.Game.Phase == world.PhaseCompleted {
		st.Game.Phase = world.PhaseActive
		st.Game.CurrentTurn = world.IntPtr(order[len(order)-1])
		return copyTurn(st), nil
	}

	idx := indexOfCurrent(st)
	switch {
	case idx < 0:
		heal(st, logger, "previous")
		return copyTurn(st), nil
	case idx == 0:
		return nil, nil
	}
	st.Game.CurrentTurn = world.IntPtr(order[idx-1])
	return copyTurn(st), nil
}

// activate enters the active phase on a current turn that belongs to the
// turn order.
func activate(st *world.State, logger *logging.Logger, op string) {
	EnsureOrder(st)
	st.Game.Phase = world.PhaseActive
	if len(st.Game.TurnOrder) == 0 {
		return
	}
	switch {
	case st.Game.CurrentTurn == nil:
		st.Game.CurrentTurn = world.IntPtr(st.Game.TurnOrder[0])
	case indexOfCurrent(st) < 0:
		heal(st, logger, op)
	}
}

func indexOfCurrent(st *world.State) int {
	if st.Game.CurrentTurn == nil {
		return -1
	}
	return slices.Index(st.Game.TurnOrder, *st.Game.CurrentTurn)
}

func heal(st *world.State, logger *logging.Logger, op string) {
	var was any
	if st.Game.CurrentTurn != nil {
		was = *st.Game.CurrentTurn
	}
	st.Game.CurrentTurn = world.IntPtr(st.Game.TurnOrder[0])
	if logger != nil {
		logger.Warn("current turn not in turn order, reset to first",
			"op", op,
			"current_turn", was,
			"turn_order", st.Game.TurnOrder)
	}
}

func copyTurn(st *world.State) *int {
	if st.Game.CurrentTurn == nil {
		return nil
	}
	return world.IntPtr(*st.Game.CurrentTurn)
}
