package service

import (
	"context"
	"fmt"

	"questions/internal/lifecycle"
	"questions/internal/logger"
	"questions/internal/models"
	"questions/internal/notify"
	"questions/internal/repository"
)

// answerNotifier runs the follow-up of every visible state change: the
// follower notification and the accepted questions score
type answerNotifier struct {
	questions QuestionStore
	events    EventPublisher
	scores    ScoreStore
	locale    string
}

// notify compares q with the snapshot taken before the command. Nothing
// happens unless the state is published and the visible state changed.
func (n *answerNotifier) notify(ctx context.Context, q *models.Question, before lifecycle.Snapshot) error {
	if !lifecycle.ShouldNotify(before, q) {
		return nil
	}
	current := lifecycle.StateOf(q)

	if name, ok := notify.AnswerEvent(current); ok {
		followers, err := n.questions.FollowerIDs(ctx, q.ID)
		if err != nil {
			return err
		}
		err = n.events.Publish(ctx, notify.Event{
			Name:            name,
			ResourceType:    notify.ResourceQuestion,
			ResourceID:      q.ID,
			AffectedUserIDs: q.CoauthorUserIDs(),
			FollowerIDs:     followers,
			Extra: map[string]any{
				"question_title": q.Title.Default(n.locale),
				"question_path":  questionPath(q),
				"state":          string(current),
				"previous_state": string(before.State),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
	}

	delta := lifecycle.ScoreDelta(before.State, current)
	if delta == 0 {
		return nil
	}
	for _, c := range q.Coauthorships {
		if c.AuthorType != models.AuthorUser {
			continue
		}
		subjectType, subjectID := repository.SubjectUser, c.AuthorID
		if c.UserGroupID != nil {
			subjectType, subjectID = repository.SubjectUserGroup, *c.UserGroupID
		}
		if err := n.scores.Increment(ctx, subjectType, subjectID, badgeAcceptedQuestions, delta); err != nil {
			return fmt.Errorf("failed to update score: %w", err)
		}
	}

	logger.FromContext(ctx).Info("Question state change notified",
		"question_id", q.ID,
		"state", current,
		"previous_state", before.State,
		"score_delta", delta,
	)
	return nil
}
