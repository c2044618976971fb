// Package notify turns question events into outbox rows and delivers them.
package notify

import (
	"context"
	"slices"

	"questions/internal/lifecycle"
	"questions/internal/models"
)

// Event names
const (
	EventQuestionAccepted       = "questions.question_accepted"
	EventQuestionRejected       = "questions.question_rejected"
	EventQuestionEvaluating     = "questions.question_evaluating"
	EventQuestionUpdateScope    = "questions.question_update_scope"
	EventQuestionUpdateCategory = "questions.question_update_category"
	EventQuestionNoteCreated    = "questions.admin.question_note_created"
	EventQuestionPublished      = "questions.question_published"
)

// ResourceQuestion is the resource type of question events
const ResourceQuestion = "question"

// AnswerEvent returns the event raised when a question reaches state, or
// false when the state has no event
func AnswerEvent(state lifecycle.State) (string, bool) {
	switch state {
	case lifecycle.Accepted:
		return EventQuestionAccepted, true
	case lifecycle.Rejected:
		return EventQuestionRejected, true
	case lifecycle.Evaluating:
		return EventQuestionEvaluating, true
	}
	return "", false
}

// Event is a notification request raised by a command
type Event struct {
	Name            string
	ResourceType    string
	ResourceID      int64
	AffectedUserIDs []int64
	FollowerIDs     []int64
	Extra           map[string]any
}

// Outbox stores events for later delivery
type Outbox interface {
	Enqueue(ctx context.Context, e *models.NotificationEvent) error
}

// Publisher writes events to the outbox. It runs inside the caller's
// transaction so an event exists only if the change that raised it commits.
type Publisher struct {
	outbox Outbox
}

// NewPublisher creates a new publisher
func NewPublisher(outbox Outbox) *Publisher {
	return &Publisher{outbox: outbox}
}

// Publish enqueues e. Followers that are also affected are only notified
// once, as affected users. Events without recipients are dropped.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	affected := dedupe(e.AffectedUserIDs)
	followers := slices.DeleteFunc(dedupe(e.FollowerIDs), func(id int64) bool {
		return slices.Contains(affected, id)
	})
	if len(affected) == 0 && len(followers) == 0 {
		return nil
	}

	return p.outbox.Enqueue(ctx, &models.NotificationEvent{
		EventName:       e.Name,
		ResourceType:    e.ResourceType,
		ResourceID:      e.ResourceID,
		AffectedUserIDs: affected,
		FollowerIDs:     followers,
		Extra:           models.JSONMap(e.Extra),
	})
}

func dedupe(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
