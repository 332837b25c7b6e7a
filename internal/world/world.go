// Package world defines the game aggregate: participants, gifts and turn
// state, persisted and replaced as a single document.
package world

import (
	"slices"
	"time"
)

// Limits of the game.
const (
	// MaxParticipants is both the registry capacity and the highest slot id.
	MaxParticipants = 100
	// LockThreshold is the steal count at which a gift locks.
	LockThreshold = 3
	// FormatVersion tags every persisted document.
	FormatVersion = "1.0"
)

// Phase is the turn state machine's current state.
type Phase string

const (
	PhaseRegistration Phase = "registration"
	PhaseActive       Phase = "active"
	PhaseCompleted    Phase = "completed"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseRegistration, PhaseActive, PhaseCompleted:
		return true
	}
	return false
}

// Participant is a registered player occupying one slot.
type Participant struct {
	ID           int       `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	RegisteredAt Timestamp `json:"registration_timestamp" yaml:"registration_timestamp"`
}

// Gift is a wrapped present that changes hands by stealing.
type Gift struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	StealCount int    `json:"steal_count" yaml:"steal_count"`
	Locked     bool   `json:"is_locked" yaml:"is_locked"`
	Owner      *int   `json:"current_owner" yaml:"current_owner"`
	// History lists previous owners, oldest first.
	History []int `json:"steal_history" yaml:"steal_history"`
}

// GameState is the turn state machine's persisted data.
type GameState struct {
	CurrentTurn *int  `json:"current_turn" yaml:"current_turn"`
	TurnOrder   []int `json:"turn_order" yaml:"turn_order"`
	Phase       Phase `json:"game_phase" yaml:"game_phase"`
}

// Metadata describes the document itself.
type Metadata struct {
	LastUpdated Timestamp `json:"last_updated" yaml:"last_updated"`
	Version     string    `json:"version" yaml:"version"`
}

// State is the aggregate root. It is read, modified and written as a whole.
type State struct {
	Participants []Participant `json:"participants" yaml:"participants"`
	Gifts        []Gift        `json:"gifts" yaml:"gifts"`
	Game         GameState     `json:"game_state" yaml:"game_state"`
	Meta         Metadata      `json:"metadata" yaml:"metadata"`
}

// New returns an empty aggregate stamped with now.
func New(now time.Time) *State {
	return &State{
		Participants: []Participant{},
		Gifts:        []Gift{},
		Game: GameState{
			TurnOrder: []int{},
			Phase:     PhaseRegistration,
		},
		Meta: Metadata{
			LastUpdated: At(now),
			Version:     FormatVersion,
		},
	}
}

// normalize applies the per-field defaults for documents written by older
// or partial writers.
func (s *State) normalize() {
	if s.Participants == nil {
		s.Participants = []Participant{}
	}
	if s.Gifts == nil {
		s.Gifts = []Gift{}
	}
	for i := range s.Gifts {
		if s.Gifts[i].History == nil {
			s.Gifts[i].History = []int{}
		}
	}
	if s.Game.TurnOrder == nil {
		s.Game.TurnOrder = []int{}
	}
	if s.Game.Phase == "" {
		s.Game.Phase = PhaseRegistration
	}
	if s.Meta.Version == "" {
		s.Meta.Version = FormatVersion
	}
}

// Participant returns the participant with the given id.
func (s *State) Participant(id int) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

// Gift returns a pointer to the gift with the given id so callers can
// mutate it in place.
func (s *State) Gift(id string) (*Gift, bool) {
	for i := range s.Gifts {
		if s.Gifts[i].ID == id {
			return &s.Gifts[i], true
		}
	}
	return nil, false
}

// ParticipantIDs returns every participant id in ascending order.
func (s *State) ParticipantIDs() []int {
	ids := make([]int, len(s.Participants))
	for i, p := range s.Participants {
		ids[i] = p.ID
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Participants = slices.Clone(s.Participants)
	c.Gifts = make([]Gift, len(s.Gifts))
	for i, g := range s.Gifts {
		g.History = slices.Clone(g.History)
		if g.Owner != nil {
			g.Owner = IntPtr(*g.Owner)
		}
		c.Gifts[i] = g
	}
	c.Game.TurnOrder = slices.Clone(s.Game.TurnOrder)
	if s.Game.CurrentTurn != nil {
		c.Game.CurrentTurn = IntPtr(*s.Game.CurrentTurn)
	}
	return &c
}

// IntPtr returns a pointer to a copy of v.
func IntPtr(v int) *int {
	return &v
}
