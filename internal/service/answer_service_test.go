package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questions/internal/lifecycle"
	"questions/internal/models"
	"questions/internal/notify"
)

func answerSetup(t *testing.T) (*memDB, *AnswerService) {
	t.Helper()
	db := newMemDB()
	return db, NewAnswerService(newTestDeps(db))
}

func TestAnswerPublishedImmediately(t *testing.T) {
	db, svc := answerSetup(t)
	q := db.add(publishedQuestion(7))
	db.followers[q.ID] = []int64{7, 8}

	got, err := svc.Answer(context.Background(), q.ID, 1, AnswerForm{
		State:   "accepted",
		Answer:  models.Translations{"en": "Looks good"},
		Publish: ptr(true),
	})
	require.NoError(t, err)

	stored := db.question(q.ID)
	assert.Equal(t, "accepted", stored.StoredState())
	require.NotNil(t, stored.StatePublishedAt)
	assert.Equal(t, lifecycle.Accepted, lifecycle.StateOf(got))

	events := db.eventsNamed(notify.EventQuestionAccepted)
	require.Len(t, events, 1)
	assert.Equal(t, []int64{7}, events[0].AffectedUserIDs)
	assert.Equal(t, []int64{8}, events[0].FollowerIDs)
	assert.Equal(t, "accepted", events[0].Extra["state"])
	assert.Equal(t, "", events[0].Extra["previous_state"])
	assert.Len(t, db.events, 1)

	versions := db.versionsOf(resourceQuestion, q.ID)
	require.Len(t, versions, 1, "answer fields land in one revision")
	for _, attr := range []string{"state", "answer", "answered_at", "state_published_at"} {
		assert.Contains(t, versions[0].ObjectChanges, attr)
	}
	require.Len(t, db.logs, 1)
	assert.Equal(t, "answer", db.logs[0].Action)
	assert.Equal(t, versions[0].ID, *db.logs[0].VersionID)

	assert.Equal(t, 1, db.scores["user:7:accepted_questions"])
}

func TestAnswerThenBulkPublishNotifiesOnce(t *testing.T) {
	db, svc := answerSetup(t)
	q := db.add(publishedQuestion(7))

	_, err := svc.Answer(context.Background(), q.ID, 1, AnswerForm{
		State:   "accepted",
		Answer:  models.Translations{"en": "Looks good"},
		Publish: ptr(false),
	})
	require.NoError(t, err)
	assert.Nil(t, db.question(q.ID).StatePublishedAt)
	assert.Equal(t, lifecycle.None, lifecycle.StateOf(db.question(q.ID)), "draft answer stays hidden")
	assert.Empty(t, db.events)

	result, err := svc.PublishAnswers(context.Background(), testComponentID, []int64{q.ID}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{q.ID}, result.Published)
	assert.Empty(t, result.Failed)

	assert.NotNil(t, db.question(q.ID).StatePublishedAt)
	assert.Len(t, db.eventsNamed(notify.EventQuestionAccepted), 1)
	assert.Len(t, db.events, 1)
}

func TestAnswerValidation(t *testing.T) {
	tests := []struct {
		name     string
		question func() *models.Question
		form     AnswerForm
		field    string
	}{
		{
			name:     "rejected needs an answer",
			question: func() *models.Question { return publishedQuestion(7) },
			form:     AnswerForm{State: "rejected"},
			field:    "answer",
		},
		{
			name:     "withdrawn cannot be chosen",
			question: func() *models.Question { return publishedQuestion(7) },
			form:     AnswerForm{State: "withdrawn"},
			field:    "state",
		},
		{
			name: "drafts cannot be answered",
			question: func() *models.Question {
				q := publishedQuestion(7)
				q.PublishedAt = nil
				return q
			},
			form:  AnswerForm{State: "evaluating"},
			field: "question",
		},
		{
			name: "withdrawn questions cannot be answered",
			question: func() *models.Question {
				q := publishedQuestion(7)
				q.State = ptr(models.StateWithdrawn)
				return q
			},
			form:  AnswerForm{State: "accepted"},
			field: "question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, svc := answerSetup(t)
			q := db.add(tt.question())

			_, err := svc.Answer(context.Background(), q.ID, 1, tt.form)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Zero(t, db.writes)
			assert.Empty(t, db.versions)
			assert.Empty(t, db.events)
		})
	}
}

func TestAnswerWithCostsRequiresCostFields(t *testing.T) {
	db := newMemDB()
	deps := newTestDeps(db)
	settings := deps.Settings.(staticSettings)
	settings.settings.AnswersWithCosts = true
	deps.Settings = settings
	svc := NewAnswerService(deps)
	q := db.add(publishedQuestion(7))

	_, err := svc.Answer(context.Background(), q.ID, 1, AnswerForm{State: "accepted"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cost", ve.Field)

	_, err = svc.Answer(context.Background(), q.ID, 1, AnswerForm{
		State:           "accepted",
		Cost:            ptr(1200.0),
		CostReport:      models.Translations{"en": "Two trees"},
		ExecutionPeriod: models.Translations{"en": "Spring"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1200.0, *db.question(q.ID).Cost)
}

func TestAnswerDisabledForComponent(t *testing.T) {
	db := newMemDB()
	deps := newTestDeps(db)
	settings := deps.Settings.(staticSettings)
	settings.settings.QuestionAnsweringEnabled = false
	deps.Settings = settings
	svc := NewAnswerService(deps)
	q := db.add(publishedQuestion(7))

	_, err := svc.Answer(context.Background(), q.ID, 1, AnswerForm{State: "accepted"})
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestReanswerKeepsPublishGateAndNotifiesOnVisibleChange(t *testing.T) {
	db, svc := answerSetup(t)
	q := db.add(publishedQuestion(7))
	ctx := context.Background()

	_, err := svc.Answer(ctx, q.ID, 1, AnswerForm{State: "accepted", Publish: ptr(true)})
	require.NoError(t, err)
	publishedAt := *db.question(q.ID).StatePublishedAt

	// same visible state: no second notification
	_, err = svc.Answer(ctx, q.ID, 1, AnswerForm{State: "accepted", Publish: ptr(false)})
	require.NoError(t, err)
	assert.Len(t, db.events, 1)

	_, err = svc.Answer(ctx, q.ID, 1, AnswerForm{
		State:   "rejected",
		Answer:  models.Translations{"en": "Out of budget"},
		Publish: ptr(false),
	})
	require.NoError(t, err)

	stored := db.question(q.ID)
	assert.Equal(t, "rejected", stored.StoredState())
	assert.Equal(t, publishedAt, *stored.StatePublishedAt)
	assert.Len(t, db.eventsNamed(notify.EventQuestionRejected), 1)
	assert.Equal(t, 0, db.scores["user:7:accepted_questions"])
}

func TestAnswerScoresUserGroup(t *testing.T) {
	db, svc := answerSetup(t)
	q := publishedQuestion(7)
	q.Coauthorships[0].UserGroupID = ptr(int64(55))
	q = db.add(q)

	_, err := svc.Answer(context.Background(), q.ID, 1, AnswerForm{State: "accepted", Publish: ptr(true)})
	require.NoError(t, err)

	assert.Equal(t, 1, db.scores["user_group:55:accepted_questions"])
	assert.Zero(t, db.scores["user:7:accepted_questions"])
}

func TestPublishAnswersCommitsEachQuestionIndependently(t *testing.T) {
	db, svc := answerSetup(t)
	answered := testNow.Add(-30 * time.Minute)

	var ids []int64
	for range 3 {
		q := publishedQuestion(7)
		q.State = ptr(models.StateAccepted)
		q.AnsweredAt = &answered
		ids = append(ids, db.add(q).ID)
	}
	a, b, c := ids[0], ids[1], ids[2]
	db.failUpdate[b] = true

	result, err := svc.PublishAnswers(context.Background(), testComponentID, ids, 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{a, c}, result.Published)
	require.Contains(t, result.Failed, b)
	assert.Contains(t, result.Failed[b], "connection reset")

	assert.NotNil(t, db.question(a).StatePublishedAt)
	assert.Nil(t, db.question(b).StatePublishedAt)
	assert.NotNil(t, db.question(c).StatePublishedAt)

	assert.Len(t, db.events, 2)
	assert.Empty(t, db.versionsOf(resourceQuestion, b))
	assert.Len(t, db.versionsOf(resourceQuestion, a), 1)
}

func TestPublishAnswersSkipsNonMatchingIDs(t *testing.T) {
	db, svc := answerSetup(t)
	answered := testNow

	unanswered := db.add(publishedQuestion(7))
	other := publishedQuestion(7)
	other.ComponentID = 99
	other.State = ptr(models.StateRejected)
	other.AnsweredAt = &answered
	other = db.add(other)

	_, err := svc.PublishAnswers(context.Background(), testComponentID, []int64{unanswered.ID, other.ID, 4242}, 1)
	assert.ErrorIs(t, err, ErrNothingToPublish)

	_, err = svc.PublishAnswers(context.Background(), testComponentID, nil, 1)
	assert.ErrorIs(t, err, ErrNothingToPublish)
	assert.Zero(t, db.writes)
}
