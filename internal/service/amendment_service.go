package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"questions/internal/lifecycle"
	"questions/internal/logger"
)

// AmendmentService keeps emendations in line with their amendment
type AmendmentService struct {
	deps Deps
}

// NewAmendmentService creates a new amendment service
func NewAmendmentService(deps Deps) *AmendmentService {
	return &AmendmentService{deps: deps}
}

// ProcessStateChange moves the amendment wrapping the emendation to state
// and force-syncs the emendation's stored state and publish gate. The sync
// bypasses the answer flow: no version, no answer notification and no score
// change. Only an action log entry is kept. A drafted, unpublished answer on
// the emendation keeps its text and costs, and the entry flags the override.
func (s *AmendmentService) ProcessStateChange(ctx context.Context, emendationID int64, state string, userID int64) (err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "process_amendment_state_change",
		attribute.Int64("question_id", emendationID),
		attribute.String("state", state),
	)
	defer func() { end(err) }()

	target, ok := lifecycle.ParseState(state)
	switch {
	case !ok, target == lifecycle.None, target == lifecycle.NotAnswered:
		return invalid("state", "must be one of accepted, rejected, evaluating, withdrawn")
	}

	return s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		q, err := s.deps.Questions.GetByID(ctx, emendationID)
		if err != nil {
			return notFound(err)
		}
		if q.Amendment == nil {
			return invalid("question", "question %d is not an emendation", q.ID)
		}

		q.Amendment.State = string(target)
		if err := s.deps.Amendments.UpdateState(ctx, q.Amendment); err != nil {
			return err
		}

		extra := map[string]any{
			"amendment_id":   q.Amendment.ID,
			"state":          string(target),
			"previous_state": q.StoredState(),
		}
		if q.IsAnswered() && q.StatePublishedAt == nil {
			logger.FromContext(ctx).Warn("Amendment state overrides a drafted answer",
				"question_id", q.ID,
				"draft_state", q.StoredState(),
				"amendment_state", target,
			)
			extra["overrode_draft_answer"] = q.StoredState()
		}

		lifecycle.SyncWithAmendment(q, target, s.deps.now())
		if err := s.deps.Questions.Update(ctx, q); err != nil {
			return err
		}
		return s.deps.Trace.Record(ctx, Trace{
			Action:       "sync_amendment_state",
			ResourceType: resourceQuestion,
			ResourceID:   q.ID,
			ComponentID:  &q.ComponentID,
			UserID:       userID,
			Extra:        extra,
		})
	})
}
