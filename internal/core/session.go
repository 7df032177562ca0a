package core

import (
	"sync"
	"sync/atomic"

	"github.com/dotcommander/imaginator/internal/domain/story"
)

// State is a position in the guided decision flow
type State string

const (
	StateIdle                    State = "idle"
	StateAwaitingPremiseChoice   State = "awaiting_premise_choice"
	StateAwaitingCharacterChoice State = "awaiting_character_choice"
	StateResolved                State = "resolved"
)

// Session is the live handle on one story. All mutation goes through the Engine.
type Session struct {
	busy atomic.Bool

	mu       sync.RWMutex
	doc      *story.Document
	state    State
	decision *story.DecisionPoint
}

func newSession(doc *story.Document, state State) *Session {
	return &Session{doc: doc, state: state}
}

// Snapshot is a consistent copy of a session for the presentation layer
type Snapshot struct {
	StoryID  string               `json:"story_id"`
	State    State                `json:"state"`
	Decision *story.DecisionPoint `json:"decision,omitempty"`
	Health   story.Health         `json:"health"`
	Story    *story.Document      `json:"story"`
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ID
}

func (s *Session) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.OwnerID
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Busy reports whether an operation is in flight
func (s *Session) Busy() bool {
	return s.busy.Load()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		StoryID: s.doc.ID,
		State:   s.state,
		Health:  s.doc.Health,
		Story:   s.doc.Clone(),
	}
	if s.decision != nil {
		d := *s.decision
		d.Options = append([]story.DecisionOption(nil), s.decision.Options...)
		snap.Decision = &d
	}
	return snap
}

// acquire claims the session for one operation; false means another is in flight
func (s *Session) acquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) release() {
	s.busy.Store(false)
}

// stage returns a private copy of the document and the current decision to work on
func (s *Session) stage() (*story.Document, State, *story.DecisionPoint) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone(), s.state, s.decision
}

// commit installs a saved document and the next state together
func (s *Session) commit(doc *story.Document, state State, decision *story.DecisionPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.state = state
	s.decision = decision
}

// advance changes state without touching the document
func (s *Session) advance(state State, decision *story.DecisionPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.decision = decision
}
