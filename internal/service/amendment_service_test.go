package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questions/internal/lifecycle"
	"questions/internal/models"
	"questions/internal/notify"
)

func emendation(db *memDB, amendmentState string) *models.Question {
	q := publishedQuestion(7)
	q.ID = db.id()
	q.Amendment = &models.Amendment{ID: db.id(), AmendableID: 1, EmendationID: q.ID, AmenderID: 7, State: amendmentState}
	return db.add(q)
}

func TestEmendationStateFollowsAmendment(t *testing.T) {
	db := newMemDB()
	svc := NewAmendmentService(newTestDeps(db))
	q := emendation(db, "evaluating")
	db.questions[q.ID].State = ptr(models.StateRejected)

	assert.Equal(t, lifecycle.Evaluating, lifecycle.StateOf(db.question(q.ID)), "stored column is ignored")

	require.NoError(t, svc.ProcessStateChange(context.Background(), q.ID, "accepted", 7))

	stored := db.question(q.ID)
	assert.Equal(t, "accepted", stored.Amendment.State)
	assert.Equal(t, "accepted", stored.StoredState())
	assert.NotNil(t, stored.StatePublishedAt)
	assert.Equal(t, lifecycle.Accepted, lifecycle.StateOf(stored))

	assert.Empty(t, db.versionsOf(resourceQuestion, q.ID), "the sync is not versioned")
	assert.Empty(t, db.eventsNamed(notify.EventQuestionAccepted))
	assert.Zero(t, db.scores["user:7:accepted_questions"])

	require.Len(t, db.logs, 1)
	assert.Equal(t, "sync_amendment_state", db.logs[0].Action)
	assert.Nil(t, db.logs[0].VersionID)
	assert.Equal(t, "accepted", db.logs[0].Extra["state"])
}

func TestAmendmentSyncKeepsDraftAnswer(t *testing.T) {
	db := newMemDB()
	svc := NewAmendmentService(newTestDeps(db))
	q := emendation(db, "evaluating")
	answered := testNow
	db.questions[q.ID].State = ptr(models.StateAccepted)
	db.questions[q.ID].AnsweredAt = &answered
	db.questions[q.ID].Answer = models.Translations{"en": "Draft answer"}

	require.NoError(t, svc.ProcessStateChange(context.Background(), q.ID, "rejected", 1))

	stored := db.question(q.ID)
	assert.Equal(t, "Draft answer", stored.Answer["en"])
	assert.Equal(t, "rejected", stored.StoredState())
	require.NotEmpty(t, db.logs)
	assert.Equal(t, "accepted", db.logs[len(db.logs)-1].Extra["overrode_draft_answer"])
}

func TestAmendmentStateChangeValidation(t *testing.T) {
	db := newMemDB()
	svc := NewAmendmentService(newTestDeps(db))
	plain := db.add(publishedQuestion(7))
	ctx := context.Background()

	var ve *ValidationError
	assert.ErrorAs(t, svc.ProcessStateChange(ctx, plain.ID, "bogus", 1), &ve)
	assert.ErrorAs(t, svc.ProcessStateChange(ctx, plain.ID, "accepted", 1), &ve)
	assert.ErrorIs(t, svc.ProcessStateChange(ctx, 4242, "accepted", 1), ErrNotFound)
}
