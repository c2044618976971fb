package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"questions/internal/lifecycle"
	"questions/internal/logger"
	"questions/internal/models"
	"questions/internal/repository"
)

// AnswerForm is the admin answer payload
type AnswerForm struct {
	State           string              `json:"state" validate:"required,oneof=accepted rejected evaluating not_answered"`
	Answer          models.Translations `json:"answer"`
	Cost            *float64            `json:"cost,omitempty"`
	CostReport      models.Translations `json:"cost_report,omitempty"`
	ExecutionPeriod models.Translations `json:"execution_period,omitempty"`
	// Publish overrides the publish_answers_immediately setting when set
	Publish *bool `json:"publish,omitempty"`
}

// PublishAnswersResult reports a bulk answer publication
type PublishAnswersResult struct {
	Published []int64          `json:"published"`
	Failed    map[int64]string `json:"failed,omitempty"`
}

// AnswerService answers questions and releases answers
type AnswerService struct {
	deps     Deps
	notifier *answerNotifier
}

// NewAnswerService creates a new answer service
func NewAnswerService(deps Deps) *AnswerService {
	return &AnswerService{
		deps:     deps,
		notifier: deps.answerNotifier(),
	}
}

// Answer attaches an answer to a published question. The answer fields land
// in a single version, and the follower notification is raised in the same
// transaction when the visible state changed.
func (s *AnswerService) Answer(ctx context.Context, questionID, userID int64, form AnswerForm) (q *models.Question, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "answer",
		attribute.Int64("question_id", questionID),
		attribute.String("state", form.State),
	)
	defer func() { end(err) }()

	if err := validateForm(&form); err != nil {
		return nil, err
	}
	if form.State == string(lifecycle.Rejected) && form.Answer.Blank() {
		return nil, invalid("answer", "is required when rejecting")
	}

	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		q, err = s.deps.Questions.GetByID(ctx, questionID)
		if errors.Is(err, repository.ErrQuestionNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		settings := s.deps.Settings.For(q.ComponentID)
		if !settings.QuestionAnsweringEnabled {
			return ErrFeatureDisabled
		}
		if err := lifecycle.CanAnswer(guardContext(q, userID), true).Error(); err != nil {
			return invalid("question", "%s", err)
		}
		if settings.AnswersWithCosts && form.State == string(lifecycle.Accepted) {
			switch {
			case form.Cost == nil:
				return invalid("cost", "is required")
			case form.CostReport.Blank():
				return invalid("cost_report", "is required")
			case form.ExecutionPeriod.Blank():
				return invalid("execution_period", "is required")
			}
		}

		publish := settings.PublishAnswersImmediately
		if form.Publish != nil {
			publish = *form.Publish
		}

		before := lifecycle.Take(q)
		changes := lifecycle.ApplyAnswer(q, lifecycle.Answer{
			State:           lifecycle.State(form.State),
			Text:            form.Answer,
			Cost:            form.Cost,
			CostReport:      form.CostReport,
			ExecutionPeriod: form.ExecutionPeriod,
			Publish:         publish,
		}, s.deps.now())

		if err := s.deps.Questions.Update(ctx, q); err != nil {
			return err
		}
		err = s.deps.Trace.Record(ctx, Trace{
			Action:       "answer",
			ResourceType: resourceQuestion,
			ResourceID:   q.ID,
			ComponentID:  &q.ComponentID,
			UserID:       userID,
			Changes:      changes,
		})
		if err != nil {
			return err
		}
		return s.notifier.notify(ctx, q, before)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Question answered",
		"question_id", q.ID,
		"state", form.State,
		"state_published", q.StatePublishedAt != nil,
	)
	return q, nil
}

// PublishAnswers makes the drafted answers of the selected questions
// visible. Ids outside the component, or not published, answered and still
// unpublished, are ignored. Every question runs in its own transaction so a
// failure only loses that question.
func (s *AnswerService) PublishAnswers(ctx context.Context, componentID int64, ids []int64, userID int64) (result *PublishAnswersResult, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "publish_answers",
		attribute.Int64("component_id", componentID),
		attribute.Int("selected", len(ids)),
	)
	defer func() { end(err) }()

	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNothingToPublish
	}

	questions, err := s.deps.Questions.ListAnswerPublishable(ctx, componentID, ids)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNothingToPublish
	}

	log := logger.FromContext(ctx)
	result = &PublishAnswersResult{Published: []int64{}}
	for _, q := range questions {
		if err := s.publishAnswer(ctx, q, userID); err != nil {
			log.Error("Failed to publish answer", "question_id", q.ID, "error", err)
			if result.Failed == nil {
				result.Failed = make(map[int64]string)
			}
			result.Failed[q.ID] = err.Error()
			continue
		}
		result.Published = append(result.Published, q.ID)
	}

	log.Info("Published answers",
		"component_id", componentID,
		"published", len(result.Published),
		"failed", len(result.Failed),
	)
	return result, nil
}

func (s *AnswerService) publishAnswer(ctx context.Context, q *models.Question, userID int64) error {
	return s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		// Always a first publication, so nothing was visible before.
		before := lifecycle.Snapshot{}
		changes := lifecycle.PublishAnswer(q, s.deps.now())

		if err := s.deps.Questions.Update(ctx, q); err != nil {
			return err
		}
		err := s.deps.Trace.Record(ctx, Trace{
			Action:       "publish_answer",
			ResourceType: resourceQuestion,
			ResourceID:   q.ID,
			ComponentID:  &q.ComponentID,
			UserID:       userID,
			Changes:      changes,
		})
		if err != nil {
			return fmt.Errorf("question %d: %w", q.ID, err)
		}
		return s.notifier.notify(ctx, q, before)
	})
}
