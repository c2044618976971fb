// Package lifecycle holds the question state machine. Everything here is pure:
// no persistence, no notifications.
package lifecycle

import (
	"time"

	"questions/internal/models"
)

// State is the visible state of a question. The zero value means "no visible
// state" and is rendered as not_answered.
type State string

const (
	None        State = ""
	NotAnswered State = models.StateNotAnswered
	Evaluating  State = models.StateEvaluating
	Accepted    State = models.StateAccepted
	Rejected    State = models.StateRejected
	Withdrawn   State = models.StateWithdrawn
)

// ParseState converts a raw column value into a State
func ParseState(raw string) (State, bool) {
	switch State(raw) {
	case None, NotAnswered, Evaluating, Accepted, Rejected, Withdrawn:
		return State(raw), true
	}
	return None, false
}

// Source is where a question takes its state from. It is either Standalone
// or Emendation.
type Source interface {
	source()
}

// Standalone reads the question's own stored state behind the publish gate.
type Standalone struct {
	Stored           State
	StatePublishedAt *time.Time
}

// Emendation mirrors the state of the amendment that wraps the question.
type Emendation struct {
	AmendmentState State
}

func (Standalone) source() {}
func (Emendation) source() {}

// SourceOf builds the state source for a loaded question
func SourceOf(q *models.Question) Source {
	if q.Amendment != nil {
		return Emendation{AmendmentState: State(q.Amendment.State)}
	}
	return Standalone{Stored: State(q.StoredState()), StatePublishedAt: q.StatePublishedAt}
}

// Resolve returns the state visible to participants.
func Resolve(src Source) State {
	switch s := src.(type) {
	case Emendation:
		return s.AmendmentState
	case Standalone:
		if s.Stored == Withdrawn || s.StatePublishedAt != nil {
			return s.Stored
		}
		return None
	}
	return None
}

// Internal returns the state admins work with, ignoring the publish gate.
func Internal(src Source) State {
	switch s := src.(type) {
	case Emendation:
		return s.AmendmentState
	case Standalone:
		return s.Stored
	}
	return None
}

// PublishedState reports whether the state is visible to participants.
// Emendations always are.
func PublishedState(src Source) bool {
	switch s := src.(type) {
	case Emendation:
		return true
	case Standalone:
		return s.StatePublishedAt != nil
	}
	return false
}

// IsWithdrawn reports whether the author withdrew the question
func IsWithdrawn(src Source) bool {
	return Internal(src) == Withdrawn
}

// StateOf is a shortcut for Resolve(SourceOf(q))
func StateOf(q *models.Question) State {
	return Resolve(SourceOf(q))
}

// Display renders the state as shown in listings
func Display(s State) string {
	if s == None {
		return models.StateNotAnswered
	}
	return string(s)
}
