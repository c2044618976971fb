package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questions/internal/lifecycle"
	"questions/internal/models"
	"questions/internal/notify"
	"questions/internal/repository"
)

func questionSetup(t *testing.T) (*memDB, *QuestionService) {
	t.Helper()
	db := newMemDB()
	svc := NewQuestionService(newTestDeps(db))
	db.scopes[20] = models.Scope{ID: 20, Name: models.Translations{"en": "Downtown"}}
	db.scopes[21] = models.Scope{ID: 21, Name: models.Translations{"en": "Harbour"}}
	db.categories[40] = models.Category{ID: 40, SpaceID: testSpaceID, Name: models.Translations{"en": "Mobility"}}
	db.categories[41] = models.Category{ID: 41, SpaceID: 999, Name: models.Translations{"en": "Elsewhere"}}
	return db, svc
}

func TestUpdateScopeErrorSignals(t *testing.T) {
	_, svc := questionSetup(t)
	ctx := context.Background()

	_, err := svc.UpdateScope(ctx, testComponentID, 0, []int64{1}, 1)
	assert.ErrorIs(t, err, ErrScopeRequired)

	_, err = svc.UpdateScope(ctx, testComponentID, 20, nil, 1)
	assert.ErrorIs(t, err, ErrNoQuestionsSelected)

	_, err = svc.UpdateScope(ctx, testComponentID, 404, []int64{1}, 1)
	assert.ErrorIs(t, err, ErrScopeNotFound)
}

func TestUpdateScopeReportsAlreadyMatchingAsErrored(t *testing.T) {
	db, svc := questionSetup(t)

	matching := publishedQuestion(7)
	matching.ScopeID = ptr(int64(20))
	matching = db.add(matching)
	moved := db.add(publishedQuestion(8))
	official := publishedQuestion(0)
	official.Coauthorships = nil
	official = db.add(official)

	result, err := svc.UpdateScope(context.Background(), testComponentID, 20,
		[]int64{matching.ID, moved.ID, official.ID}, 1)
	require.NoError(t, err)

	assert.Equal(t, "Downtown", result.Name)
	assert.Equal(t, []int64{moved.ID, official.ID}, result.Successful)
	assert.Equal(t, []int64{matching.ID}, result.Errored)

	assert.Equal(t, int64(20), *db.question(moved.ID).ScopeID)
	assert.Empty(t, db.versionsOf(resourceQuestion, matching.ID), "no revision for the matching question")
	assert.Len(t, db.versionsOf(resourceQuestion, moved.ID), 1)

	events := db.eventsNamed(notify.EventQuestionUpdateScope)
	require.Len(t, events, 1, "only questions with coauthors notify")
	assert.Equal(t, []int64{8}, events[0].AffectedUserIDs)
	assert.Equal(t, "Downtown", events[0].Extra["scope_name"])
}

func TestUpdateCategory(t *testing.T) {
	db, svc := questionSetup(t)
	q := db.add(publishedQuestion(7))
	ctx := context.Background()

	_, err := svc.UpdateCategory(ctx, testComponentID, 0, []int64{q.ID}, 1)
	assert.ErrorIs(t, err, ErrCategoryRequired)

	_, err = svc.UpdateCategory(ctx, testComponentID, 41, []int64{q.ID}, 1)
	assert.ErrorIs(t, err, ErrCategoryNotFound, "categories of other spaces are unknown")

	result, err := svc.UpdateCategory(ctx, testComponentID, 40, []int64{q.ID}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Mobility", result.Name)
	assert.Equal(t, []int64{q.ID}, result.Successful)
	assert.Len(t, db.eventsNamed(notify.EventQuestionUpdateCategory), 1)
}

func TestPublishDraft(t *testing.T) {
	db, svc := questionSetup(t)
	draft := publishedQuestion(7)
	draft.PublishedAt = nil
	draft = db.add(draft)
	ctx := context.Background()

	_, err := svc.Publish(ctx, draft.ID, 8)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	q, err := svc.Publish(ctx, draft.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, testNow, *q.PublishedAt)
	assert.False(t, db.question(draft.ID).IsDraft())
	assert.Len(t, db.eventsNamed(notify.EventQuestionPublished), 1)

	_, err = svc.Publish(ctx, draft.ID, 7)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestWithdraw(t *testing.T) {
	db, svc := questionSetup(t)
	ctx := context.Background()

	voted := publishedQuestion(7)
	voted.VotesCount = 1
	voted = db.add(voted)
	_, err := svc.Withdraw(ctx, voted.ID, 7)
	assert.ErrorIs(t, err, ErrHasSupports)
	assert.Equal(t, "", db.question(voted.ID).StoredState())

	q := db.add(publishedQuestion(7))
	_, err = svc.Withdraw(ctx, q.ID, 8)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	got, err := svc.Withdraw(ctx, q.ID, 7)
	require.NoError(t, err)
	assert.Nil(t, got.StatePublishedAt)
	assert.Equal(t, lifecycle.Withdrawn, lifecycle.StateOf(db.question(q.ID)), "withdrawal is visible right away")

	_, err = svc.Withdraw(ctx, q.ID, 7)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestWithdrawDraft(t *testing.T) {
	db, svc := questionSetup(t)
	draft := publishedQuestion(7)
	draft.PublishedAt = nil
	draft = db.add(draft)

	_, err := svc.Withdraw(context.Background(), draft.ID, 7)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "is a draft")
	assert.Equal(t, "", db.question(draft.ID).StoredState())
}

func TestWithdrawCopiedQuestion(t *testing.T) {
	db, svc := questionSetup(t)
	q := db.add(publishedQuestion(7))
	db.links["question:"+itoa(q.ID)+":"+repository.LinkCopiedFromComponent] = true

	_, err := svc.Withdraw(context.Background(), q.ID, 7)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestUpdateQuestionOnlyForOfficialQuestions(t *testing.T) {
	db, svc := questionSetup(t)
	ctx := context.Background()
	form := QuestionForm{
		Title:    models.Translations{"en": "Repaint the old library"},
		Body:     models.Translations{"en": "It needs colour"},
		ScopeID:  ptr(int64(21)),
		Latitude: ptr(41.38),
	}

	citizen := db.add(publishedQuestion(7))
	_, err := svc.UpdateQuestion(ctx, citizen.ID, 1, form)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	official := publishedQuestion(0)
	official.Coauthorships = []models.Coauthorship{{AuthorType: models.AuthorOrganization, AuthorID: testOrgID}}
	official = db.add(official)

	q, err := svc.UpdateQuestion(ctx, official.ID, 1, form)
	require.NoError(t, err)
	assert.Equal(t, "Repaint the old library", q.Title["en"])

	versions := db.versionsOf(resourceQuestion, official.ID)
	require.Len(t, versions, 1)
	assert.Contains(t, versions[0].ObjectChanges, "scope_id")
	assert.NotContains(t, versions[0].ObjectChanges, "address")

	short := form
	short.Title = models.Translations{"en": "Too short"}
	_, err = svc.UpdateQuestion(ctx, official.ID, 1, short)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
}

func TestCreateOfficial(t *testing.T) {
	db, svc := questionSetup(t)

	_, err := svc.CreateOfficial(context.Background(), testComponentID, 1, OfficialQuestionForm{})
	assert.ErrorIs(t, err, ErrFeatureDisabled, "creation is off by default")

	settings := svc.deps.Settings.(staticSettings)
	settings.settings.CreationEnabled = true
	svc.deps.Settings = settings

	q, err := svc.CreateOfficial(context.Background(), testComponentID, 1, OfficialQuestionForm{
		QuestionForm: QuestionForm{
			Title:      models.Translations{"en": "Extend the night bus network"},
			Body:       models.Translations{"en": "More lines after midnight"},
			CategoryID: ptr(int64(40)),
		},
	})
	require.NoError(t, err)

	stored := db.question(q.ID)
	assert.True(t, stored.OfficialOrigin())
	assert.NotNil(t, stored.PublishedAt)
	assert.Equal(t, "Q-1-2026-03-"+itoa(q.ID), stored.Reference)
	assert.Len(t, db.versionsOf(resourceQuestion, q.ID), 1)

	meeting, err := svc.CreateOfficial(context.Background(), testComponentID, 1, OfficialQuestionForm{
		QuestionForm: QuestionForm{
			Title: models.Translations{"en": "Questions raised at the assembly"},
			Body:  models.Translations{"en": "Collected in the meeting"},
		},
		MeetingID: ptr(int64(9)),
	})
	require.NoError(t, err)
	assert.True(t, db.question(meeting.ID).MeetingOrigin())
	assert.True(t, db.question(meeting.ID).CreatedInMeeting)
}
