// Package session holds the in-memory dialogue state for the guided
// contract flow. State is process-local and keyed by the chat user's
// Telegram id: it is deliberately not persisted, so a restart abandons any
// in-flight flow and the user restarts it with the start command.
//
// The store serializes all access per user. Concurrent messages from the
// same user during the flow each run their whole step (validate, persist,
// reply) under that user's slot lock, so a half-collected form can never be
// corrupted by interleaved writes.
package session

import (
	"errors"
	"sync"
)

// Step identifies the current position in the contract flow.
type Step int

const (
	// StepName waits for the user's full name.
	StepName Step = iota
	// StepPassport waits for the passport series/number.
	StepPassport
	// StepAgreement waits for the inline agreement action. Free text is
	// not a valid input in this step.
	StepAgreement
)

// String returns a short label for logs.
func (s Step) String() string {
	switch s {
	case StepName:
		return "awaiting_name"
	case StepPassport:
		return "awaiting_passport"
	case StepAgreement:
		return "awaiting_agreement"
	}
	return "unknown"
}

// State is the partially collected contract form for one chat user.
type State struct {
	ConversationID string
	Step           Step
	FullName       string
	Passport       string
}

// Action tells the store what to do with the slot after an Update callback.
type Action int

const (
	// Keep retains the session for further steps.
	Keep Action = iota
	// End deletes the session (terminal cleanup; the flow must be
	// restarted from the top to run again).
	End
)

// ErrNotFound is returned when the chat user has no active session.
var ErrNotFound = errors.New("session: not found")

// entry is one user's slot. Its mutex serializes whole steps, not just
// field writes.
type entry struct {
	mu    sync.Mutex
	state State
	dead  bool
}

// Store maps chat-user Telegram ids to their dialogue state.
// The zero value is not usable; construct with NewStore.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{entries: make(map[int64]*entry)}
}

// Begin creates (or replaces) the session for userID. Re-issuing the start
// command mid-flow discards the old form, matching the "each invocation
// starts fresh" routing rule for contract conversations.
func (s *Store) Begin(userID int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = &entry{state: st}
}

// Active reports whether userID currently has a session. The answer is a
// snapshot; use Update for anything that must act on live state.
func (s *Store) Active(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}

// Snapshot returns a copy of the user's state, if any.
func (s *Store) Snapshot(userID int64) (State, bool) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return State{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return State{}, false
	}
	return e.state, true
}

// Update runs fn with exclusive access to the user's state. When fn returns
// End the slot is removed; the deletion and fn's effects are atomic with
// respect to any other goroutine working on the same user. Returns
// ErrNotFound when no session exists.
func (s *Store) Update(userID int64, fn func(st *State) Action) error {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		// Lost a race with a concurrent End.
		return ErrNotFound
	}
	if fn(&e.state) == End {
		e.dead = true
		s.mu.Lock()
		// Only remove the slot we own; Begin may have replaced it.
		if cur, ok := s.entries[userID]; ok && cur == e {
			delete(s.entries, userID)
		}
		s.mu.Unlock()
	}
	return nil
}

// End removes the user's session outside of an Update callback.
func (s *Store) End(userID int64) {
	_ = s.Update(userID, func(*State) Action { return End })
}

// Len reports how many sessions are live (abandoned flows included; there
// is no expiry).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
