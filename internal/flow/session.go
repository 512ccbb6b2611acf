// Package flow implements the GymBro conversation engine: per-user sessions, the
// step-driven state machine, AI rate limiting and inactivity handling.
package flow

import (
	"log/slog"
	"sync"
	"time"
)

// Step identifies the current point of a user's active flow.
type Step string

const (
	StepIdle                  Step = "idle"
	StepCollectingName        Step = "collecting_name"
	StepCollectingAge         Step = "collecting_age"
	StepCollectingDay         Step = "collecting_day"
	StepCollectingHour        Step = "collecting_hour"
	StepCollectingClass       Step = "collecting_class"
	StepCollectingTrainer     Step = "collecting_trainer"
	StepConfirmingBooking     Step = "confirming_booking"
	StepListingServices       Step = "listing_services"
	StepAwaitingIDForStatus   Step = "awaiting_id_for_status"
	StepAwaitingIDForAIAccess Step = "awaiting_id_for_ai_access"
	StepAnsweringAIQuestion   Step = "answering_ai_question"
	StepCollectingPauseName   Step = "collecting_pause_name"
	StepCollectingPauseID     Step = "collecting_pause_id"
	StepCollectingPauseReason Step = "collecting_pause_reason"
)

// IsBooking reports whether the step belongs to the class booking flow.
func (s Step) IsBooking() bool {
	switch s {
	case StepCollectingName, StepCollectingAge, StepCollectingDay, StepCollectingHour,
		StepCollectingClass, StepCollectingTrainer, StepConfirmingBooking:
		return true
	}
	return false
}

// IsPause reports whether the step belongs to the membership pause flow.
func (s Step) IsPause() bool {
	switch s {
	case StepCollectingPauseName, StepCollectingPauseID, StepCollectingPauseReason:
		return true
	}
	return false
}

// BookingDraft holds the fields collected by the booking flow.
type BookingDraft struct {
	Name    string
	Age     int
	Day     string
	Hour    string
	Class   ClassType
	Trainer string
	Reason  string
}

// PauseDraft holds the fields collected by the pause flow.
type PauseDraft struct {
	Name     string
	IDNumber string
}

// Session is the per-user conversation state.
type Session struct {
	Step      Step
	Booking   BookingDraft
	Pause     PauseDraft
	MemberID  string
	Finalized bool
	UpdatedAt time.Time
}

// SessionStore maps user identifiers to sessions.
type SessionStore interface {
	Get(userID string) (Session, bool)
	Set(userID string, s Session)
	Delete(userID string)
	Len() int
}

// InMemorySessionStore is a SessionStore backed by a mutex-guarded map.
type InMemorySessionStore struct {
	sessions map[string]Session
	mu       sync.RWMutex
}

// NewInMemorySessionStore creates an empty session store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session)}
}

// Get returns a copy of the user's session.
func (s *InMemorySessionStore) Get(userID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Set stores the user's session, replacing any previous one.
func (s *InMemorySessionStore) Set(userID string, sess Session) {
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
	slog.Debug("InMemorySessionStore.Set: session stored", "userID", userID, "step", sess.Step, "finalized", sess.Finalized)
}

// Delete removes the user's session.
func (s *InMemorySessionStore) Delete(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	slog.Debug("InMemorySessionStore.Delete: session removed", "userID", userID)
}

// Len returns the number of stored sessions.
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
