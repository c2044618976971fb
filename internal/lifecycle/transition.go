package lifecycle

import (
	"time"

	"questions/internal/models"
)

// Snapshot captures what participants could see before a command ran.
type Snapshot struct {
	PublishedState bool
	State          State
}

// Take records the snapshot of a question
func Take(q *models.Question) Snapshot {
	src := SourceOf(q)
	return Snapshot{PublishedState: PublishedState(src), State: Resolve(src)}
}

// ShouldNotify reports whether followers must hear about the change: the
// state must be visible now and differ from the one visible before.
func ShouldNotify(before Snapshot, after *models.Question) bool {
	src := SourceOf(after)
	if !PublishedState(src) {
		return false
	}
	return Resolve(src) != before.State
}

// ScoreDelta returns +1 when a question becomes accepted, -1 when it stops
// being accepted and 0 otherwise.
func ScoreDelta(previous, current State) int {
	switch {
	case current == Accepted && previous != Accepted:
		return 1
	case previous == Accepted && current != Accepted:
		return -1
	}
	return 0
}

// Answer is the answer payload applied to a question.
type Answer struct {
	State           State
	Text            models.Translations
	Cost            *float64
	CostReport      models.Translations
	ExecutionPeriod models.Translations
	Publish         bool
}

// ApplyAnswer mutates q with the answer and returns the recorded changes.
// The publish gate is only ever opened, never closed.
func ApplyAnswer(q *models.Question, a Answer, now time.Time) models.Changeset {
	changes := models.Changeset{}

	prevState := q.StoredState()
	changes.Add("state", prevState, string(a.State))
	state := string(a.State)
	q.State = &state

	changes.Add("answer", q.Answer, a.Text)
	q.Answer = a.Text

	prevAnswered := q.AnsweredAt
	q.AnsweredAt = &now
	changes.Add("answered_at", prevAnswered, q.AnsweredAt)

	changes.Add("cost", q.Cost, a.Cost)
	q.Cost = a.Cost
	changes.Add("cost_report", q.CostReport, a.CostReport)
	q.CostReport = a.CostReport
	changes.Add("execution_period", q.ExecutionPeriod, a.ExecutionPeriod)
	q.ExecutionPeriod = a.ExecutionPeriod

	if a.Publish && q.StatePublishedAt == nil {
		q.StatePublishedAt = &now
		changes.Add("state_published_at", nil, q.StatePublishedAt)
	}

	return changes
}

// PublishAnswer opens the publish gate and returns the recorded change.
func PublishAnswer(q *models.Question, now time.Time) models.Changeset {
	changes := models.Changeset{}
	if q.StatePublishedAt == nil {
		q.StatePublishedAt = &now
		changes.Add("state_published_at", nil, q.StatePublishedAt)
	}
	return changes
}

// Withdraw sets the stored state directly. It bypasses the publish gate.
func Withdraw(q *models.Question) models.Changeset {
	changes := models.Changeset{}
	changes.Add("state", q.StoredState(), models.StateWithdrawn)
	state := models.StateWithdrawn
	q.State = &state
	return changes
}

// SyncWithAmendment force-sets the stored state and publish gate of an
// emendation to its amendment state. Answer text and costs are left alone.
// The returned changes are informational; callers do not version them.
func SyncWithAmendment(q *models.Question, amendmentState State, now time.Time) models.Changeset {
	changes := models.Changeset{}
	changes.Add("state", q.StoredState(), string(amendmentState))
	state := string(amendmentState)
	q.State = &state
	if q.StatePublishedAt == nil {
		q.StatePublishedAt = &now
		changes.Add("state_published_at", nil, q.StatePublishedAt)
	}
	return changes
}
