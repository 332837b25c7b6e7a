package turn

import (
	"bytes"
	"context"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/giftswap/internal/bucket"
	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/store"
	"github.com/Iron-Ham/giftswap/internal/world"
)

var fixedNow = time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

func stateWith(ids ...int) *world.State {
	st := world.New(fixedNow)
	for _, id := range ids {
		st.Participants = append(st.Participants, world.Participant{ID: id, Name: "P"})
	}
	return st
}

func newMachine(t *testing.T, st *world.State) (*Machine, store.Store) {
	t.Helper()
	s, err := store.NewObjectStore(bucket.NewMemory(), "state")
	if err != nil {
		t.Fatal(err)
	}
	if st != nil {
		if err := s.WriteAll(context.Background(), st); err != nil {
			t.Fatal(err)
		}
	}
	return New(s, nil), s
}

func intp(v int) *int { return &v }

func eqTurn(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtTurn(p *int) string {
	if p == nil {
		return "nil"
	}
	return strconv.Itoa(*p)
}

func TestEnsureOrder(t *testing.T) {
	tests := []struct {
		name        string
		st          *world.State
		wantChanged bool
		wantOrder   []int
	}{
		{name: "snapshots sorted ids", st: stateWith(42, 7, 19), wantChanged: true, wantOrder: []int{7, 19, 42}},
		{name: "no participants", st: stateWith(), wantOrder: []int{}},
		{
			name: "already set",
			st: func() *world.State {
				s := stateWith(1, 2, 3)
				s.Game.TurnOrder = []int{1, 2}
				return s
			}(),
			wantOrder: []int{1, 2},
		},
		{
			name: "not in registration",
			st: func() *world.State {
				s := stateWith(1)
				s.Game.Phase = world.PhaseActive
				return s
			}(),
			wantOrder: []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnsureOrder(tt.st); got != tt.wantChanged {
				t.Errorf("EnsureOrder() = %v, want %v", got, tt.wantChanged)
			}
			if !slices.Equal(tt.st.Game.TurnOrder, tt.wantOrder) {
				t.Errorf("TurnOrder = %v, want %v", tt.st.Game.TurnOrder, tt.wantOrder)
			}
			if tt.wantChanged && !eqTurn(tt.st.Game.CurrentTurn, intp(tt.wantOrder[0])) {
				t.Errorf("CurrentTurn = %v, want %d", tt.st.Game.CurrentTurn, tt.wantOrder[0])
			}
		})
	}
}

func TestEnsureOrder_FrozenAfterSnapshot(t *testing.T) {
	st := stateWith(5, 3)
	EnsureOrder(st)
	st.Participants = append(st.Participants, world.Participant{ID: 1, Name: "Late"})
	EnsureOrder(st)
	if !slices.Equal(st.Game.TurnOrder, []int{3, 5}) {
		t.Errorf("TurnOrder = %v, want [3 5]", st.Game.TurnOrder)
	}
}

func TestStart(t *testing.T) {
	st := stateWith()
	if err := Start(st, nil); !errors.Is(err, errors.ErrNoParticipants) {
		t.Fatalf("Start(empty) error = %v, want ErrNoParticipants", err)
	}

	st = stateWith(9, 4)
	if err := Start(st, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if st.Game.Phase != world.PhaseActive {
		t.Errorf("Phase = %q, want active", st.Game.Phase)
	}
	if !eqTurn(st.Game.CurrentTurn, intp(4)) {
		t.Errorf("CurrentTurn = %s, want 4", fmtTurn(st.Game.CurrentTurn))
	}

	err := Start(st, nil)
	if !errors.Is(err, errors.ErrAlreadyStarted) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	if errors.Classify(err) != errors.ClassConflict {
		t.Errorf("Classify() = %q, want conflict", errors.Classify(err))
	}
}

func TestAdvance_Coverage(t *testing.T) {
	st := stateWith(30, 10, 20)
	if err := Start(st, nil); err != nil {
		t.Fatal(err)
	}

	// From active with N ids: the current id was visited on start, then
	// N-1 advances visit the rest in order and the Nth completes.
	visited := []int{*st.Game.CurrentTurn}
	for range 2 {
		got, err := Advance(st, nil)
		if err != nil {
			t.Fatal(err)
		}
		visited = append(visited, *got)
	}
	if !slices.Equal(visited, []int{10, 20, 30}) {
		t.Errorf("visited = %v, want [10 20 30]", visited)
	}

	got, err := Advance(st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil || st.Game.Phase != world.PhaseCompleted || st.Game.CurrentTurn != nil {
		t.Errorf("final Advance() = %s phase %q current %s, want nil completed nil",
			fmtTurn(got), st.Game.Phase, fmtTurn(st.Game.CurrentTurn))
	}

	got, err = Advance(st, nil)
	if err != nil || got != nil || st.Game.Phase != world.PhaseCompleted {
		t.Errorf("Advance(completed) = %s, %v; phase %q", fmtTurn(got), err, st.Game.Phase)
	}
}

func TestAdvance_SelfHeals(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.New(&logs, "DEBUG")

	st := stateWith(1, 2, 3)
	_ = Start(st, nil)
	st.Game.CurrentTurn = intp(77)

	got, err := Advance(st, logger)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if !eqTurn(got, intp(1)) || !eqTurn(st.Game.CurrentTurn, intp(1)) {
		t.Errorf("Advance() = %s, want 1", fmtTurn(got))
	}
	if !strings.Contains(logs.String(), "current turn not in turn order") {
		t.Errorf("expected self-heal warning, logs = %s", logs.String())
	}
}

// A registration document can carry a stale current turn that is not in
// its order; activating the game must not land on it.
func TestActivate_HealsStaleCurrentTurn(t *testing.T) {
	stale := func() *world.State {
		st := stateWith(1, 2)
		st.Game.TurnOrder = []int{1, 2}
		st.Game.CurrentTurn = intp(99)
		return st
	}

	tests := []struct {
		name string
		run  func(st *world.State, logger *logging.Logger) (*int, error)
	}{
		{
			name: "start",
			run: func(st *world.State, logger *logging.Logger) (*int, error) {
				err := Start(st, logger)
				return st.Game.CurrentTurn, err
			},
		},
		{
			name: "advance",
			run: func(st *world.State, logger *logging.Logger) (*int, error) {
				return Advance(st, logger)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			st := stale()
			got, err := tt.run(st, logging.New(&logs, "DEBUG"))
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if st.Game.Phase != world.PhaseActive {
				t.Errorf("Phase = %q, want active", st.Game.Phase)
			}
			if !eqTurn(st.Game.CurrentTurn, intp(1)) || !eqTurn(got, intp(1)) {
				t.Errorf("CurrentTurn = %s (returned %s), want 1", fmtTurn(st.Game.CurrentTurn), fmtTurn(got))
			}
			if !strings.Contains(logs.String(), "current turn not in turn order") {
				t.Errorf("expected self-heal warning, logs = %s", logs.String())
			}
		})
	}
}

func TestPrevious(t *testing.T) {
	tests := []struct {
		name      string
		setup     func() *world.State
		want      *int
		wantPhase world.Phase
		wantErr   error
	}{
		{
			name:    "no participants",
			setup:   func() *world.State { return stateWith() },
			wantErr: errors.ErrNoParticipants,
		},
		{
			name:    "never started",
			setup:   func() *world.State { return stateWith(1, 2) },
			wantErr: errors.ErrNotStarted,
		},
		{
			name: "at first turn",
			setup: func() *world.State {
				st := stateWith(1, 2)
				_ = Start(st, nil)
				return st
			},
			want:      nil,
			wantPhase: world.PhaseActive,
		},
		{
			name: "moves back",
			setup: func() *world.State {
				st := stateWith(1, 2, 3)
				_ = Start(st, nil)
				st.Game.CurrentTurn = intp(3)
				return st
			},
			want:      intp(2),
			wantPhase: world.PhaseActive,
		},
		{
			name: "un-completes",
			setup: func() *world.State {
				st := stateWith(1, 2, 3)
				_ = Start(st, nil)
				st.Game.Phase = world.PhaseCompleted
				st.Game.CurrentTurn = nil
				return st
			},
			want:      intp(3),
			wantPhase: world.PhaseActive,
		},
		{
			name: "self heals",
			setup: func() *world.State {
				st := stateWith(4, 8)
				_ = Start(st, nil)
				st.Game.CurrentTurn = intp(99)
				return st
			},
			want:      intp(4),
			wantPhase: world.PhaseActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.setup()
			got, err := Previous(st, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Previous() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Previous() error = %v", err)
			}
			if !eqTurn(got, tt.want) {
				t.Errorf("Previous() = %s, want %s", fmtTurn(got), fmtTurn(tt.want))
			}
			if st.Game.Phase != tt.wantPhase {
				t.Errorf("Phase = %q, want %q", st.Game.Phase, tt.wantPhase)
			}
		})
	}
}

func TestMachine_ScenarioSingleParticipant(t *testing.T) {
	ctx := context.Background()

	empty, _ := newMachine(t, nil)
	if _, err := empty.Advance(ctx); !errors.Is(err, errors.ErrNoParticipants) {
		t.Fatalf("Advance(no participants) error = %v, want ErrNoParticipants", err)
	}

	m, _ := newMachine(t, stateWith(12))

	mv, err := m.Advance(ctx)
	if err != nil {
		t.Fatalf("first Advance() error = %v", err)
	}
	if mv.View.Phase != world.PhaseActive || !eqTurn(mv.Turn, intp(12)) {
		t.Errorf("first Advance() = %s phase %q, want 12 active", fmtTurn(mv.Turn), mv.View.Phase)
	}

	mv, err = m.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mv.View.Phase != world.PhaseCompleted || mv.Turn != nil || mv.View.CurrentTurn != nil {
		t.Errorf("second Advance() = %+v, want completed with no turn", mv)
	}

	mv, err = m.Previous(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mv.View.Phase != world.PhaseActive || !eqTurn(mv.Turn, intp(12)) {
		t.Errorf("Previous() = %s phase %q, want 12 active", fmtTurn(mv.Turn), mv.View.Phase)
	}
	if mv.View.CurrentParticipant == nil || mv.View.CurrentParticipant.ID != 12 {
		t.Errorf("CurrentParticipant = %+v, want id 12", mv.View.CurrentParticipant)
	}
}

func TestMachine_PreviousAtFirstDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	st := stateWith(1, 2)
	_ = Start(st, nil)
	m, s := newMachine(t, st)

	before, _ := s.ReadAll(ctx)
	mv, err := m.Previous(ctx)
	if err != nil {
		t.Fatalf("Previous() error = %v", err)
	}
	if mv.Turn != nil {
		t.Errorf("Turn = %s, want nil", fmtTurn(mv.Turn))
	}
	if !eqTurn(mv.View.CurrentTurn, intp(1)) {
		t.Errorf("View.CurrentTurn = %s, want 1", fmtTurn(mv.View.CurrentTurn))
	}
	after, _ := s.ReadAll(ctx)
	if !after.Meta.LastUpdated.Equal(before.Meta.LastUpdated.Time) {
		t.Error("Previous() at first turn rewrote the document")
	}
}

func TestMachine_CurrentEstablishesOrder(t *testing.T) {
	ctx := context.Background()
	m, s := newMachine(t, stateWith(8, 3))

	v, err := m.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if !slices.Equal(v.TurnOrder, []int{3, 8}) || !eqTurn(v.CurrentTurn, intp(3)) {
		t.Errorf("Current() = %+v, want order [3 8] current 3", v)
	}
	if v.Phase != world.PhaseRegistration || v.TotalParticipants != 2 {
		t.Errorf("Current() = %+v, want registration with 2 participants", v)
	}

	st, _ := s.ReadAll(ctx)
	if !slices.Equal(st.Game.TurnOrder, []int{3, 8}) {
		t.Errorf("stored TurnOrder = %v, want [3 8]", st.Game.TurnOrder)
	}
}

func TestMachine_StartThenAdvance(t *testing.T) {
	ctx := context.Background()
	m, _ := newMachine(t, stateWith(2, 1, 3))

	v, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if v.Phase != world.PhaseActive || !eqTurn(v.CurrentTurn, intp(1)) {
		t.Errorf("Start() = %+v", v)
	}
	if _, err := m.Start(ctx); !errors.Is(err, errors.ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	mv, err := m.Advance(ctx)
	if err != nil || !eqTurn(mv.Turn, intp(2)) {
		t.Errorf("Advance() = %s, %v; want 2", fmtTurn(mv.Turn), err)
	}
}


func TestMachine_AdvanceCompletedDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	st := stateWith(4)
	st.Game.Phase = world.PhaseCompleted
	st.Game.TurnOrder = []int{4}
	m, s := newMachine(t, st)

	before, _ := s.ReadAll(ctx)
	mv, err := m.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if mv.Turn != nil || mv.View.Phase != world.PhaseCompleted {
		t.Errorf("Advance() = %+v, want completed with no turn", mv)
	}
	after, _ := s.ReadAll(ctx)
	if !after.Meta.LastUpdated.Equal(before.Meta.LastUpdated.Time) {
		t.Error("Advance() on a completed game rewrote the document")
	}
}
