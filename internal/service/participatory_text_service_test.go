package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questions/internal/models"
)

const document = `# Chapter one

Every neighbourhood gets a community garden.

## Funding

- The city pays for the soil
- Neighbours pay for the seeds

Gardens open at dawn.
`

func textSetup(t *testing.T) (*memDB, *ParticipatoryTextService) {
	t.Helper()
	db := newMemDB()
	deps := newTestDeps(db)
	settings := deps.Settings.(staticSettings)
	settings.settings.ParticipatoryTextsEnabled = true
	deps.Settings = settings
	return db, NewParticipatoryTextService(deps)
}

func TestParseDocument(t *testing.T) {
	blocks := parseDocument(document)

	require.Len(t, blocks, 5)
	assert.Equal(t, textBlock{level: models.LevelSection, text: "Chapter one"}, blocks[0])
	assert.Equal(t, textBlock{level: models.LevelArticle, text: "Every neighbourhood gets a community garden."}, blocks[1])
	assert.Equal(t, textBlock{level: models.LevelSubSection, text: "Funding"}, blocks[2])
	assert.Equal(t, textBlock{level: models.LevelArticle, text: "The city pays for the soil\nNeighbours pay for the seeds"}, blocks[3])
	assert.Equal(t, models.LevelArticle, blocks[4].level)
}

func TestImportCreatesOrderedDrafts(t *testing.T) {
	db, svc := textSetup(t)

	drafts, err := svc.Import(context.Background(), testComponentID, document, 1)
	require.NoError(t, err)
	require.Len(t, drafts, 5)

	for i, q := range drafts {
		stored := db.question(q.ID)
		assert.True(t, stored.IsDraft())
		assert.Equal(t, i+1, *stored.Position)
		assert.True(t, stored.OfficialOrigin())
	}
	assert.Equal(t, "Chapter one", drafts[0].Title["en"])
	assert.Equal(t, "2", drafts[1].Title["en"], "articles are titled by position")
	assert.Empty(t, db.versions, "imported drafts are not versioned")
}

func TestImportRejectsComponentsWithPublishedQuestions(t *testing.T) {
	db, svc := textSetup(t)
	db.add(publishedQuestion(7))

	_, err := svc.Import(context.Background(), testComponentID, document, 1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "document", ve.Field)
}

func TestUpdateOnlyTouchesArticleBodies(t *testing.T) {
	db, svc := textSetup(t)
	drafts, err := svc.Import(context.Background(), testComponentID, document, 1)
	require.NoError(t, err)
	section, article := drafts[0], drafts[1]
	writesBefore := db.writes

	err = svc.Update(context.Background(), testComponentID, []TextEdit{
		{ID: section.ID, Position: 1, Title: models.Translations{"en": "Chapter 1"}, Body: models.Translations{"en": "ignored"}},
		{ID: article.ID, Position: 2, Title: models.Translations{"en": "2"}, Body: models.Translations{"en": "Every street gets a garden."}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Chapter 1", db.question(section.ID).Title["en"])
	assert.Equal(t, "Chapter one", db.question(section.ID).Body["en"], "section body is a label")
	assert.Equal(t, "Every street gets a garden.", db.question(article.ID).Body["en"])
	assert.Equal(t, 3, db.writes-writesBefore, "unchanged positions are not written")
	assert.Empty(t, db.versions)
}

func TestUpdateRollsBackWhenAnyEditFails(t *testing.T) {
	db, svc := textSetup(t)
	drafts, err := svc.Import(context.Background(), testComponentID, document, 1)
	require.NoError(t, err)

	err = svc.Update(context.Background(), testComponentID, []TextEdit{
		{ID: drafts[0].ID, Position: 5, Title: models.Translations{"en": "Moved"}},
		{ID: drafts[1].ID, Position: 2, Title: models.Translations{"en": "2"}},
		{ID: drafts[2].ID, Position: 3},
		{ID: 4242, Position: 9, Title: models.Translations{"en": "ghost"}},
	})

	var failures EditFailures
	require.ErrorAs(t, err, &failures)
	assert.Len(t, failures, 3)
	assert.Equal(t, "body is required", failures[drafts[1].ID])
	assert.Contains(t, failures[drafts[2].ID], "title")
	assert.Contains(t, failures, int64(4242))

	first := db.question(drafts[0].ID)
	assert.Equal(t, 1, *first.Position, "successful edits are rolled back too")
	assert.Equal(t, "Chapter one", first.Title["en"])
}

func TestUpdateShiftsSiblingPositions(t *testing.T) {
	db, svc := textSetup(t)
	drafts, err := svc.Import(context.Background(), testComponentID, document, 1)
	require.NoError(t, err)

	err = svc.Update(context.Background(), testComponentID, []TextEdit{
		{ID: drafts[0].ID, Position: 3, Title: models.Translations{"en": "Chapter one"}},
	})
	require.NoError(t, err)

	positions := func() []int {
		out := make([]int, len(drafts))
		for i, q := range drafts {
			out[i] = *db.question(q.ID).Position
		}
		return out
	}
	assert.Equal(t, []int{3, 1, 2, 4, 5}, positions())

	err = svc.Update(context.Background(), testComponentID, []TextEdit{
		{ID: drafts[4].ID, Position: 1, Title: models.Translations{"en": "Last"}, Body: models.Translations{"en": "Now first."}},
		{ID: drafts[0].ID, Position: 99, Title: models.Translations{"en": "Chapter one"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2, 3, 4, 1}, positions(), "out of range targets go last")
}

func TestUpdateRequiresParticipatoryTexts(t *testing.T) {
	db := newMemDB()
	svc := NewParticipatoryTextService(newTestDeps(db))

	err := svc.Update(context.Background(), testComponentID, []TextEdit{
		{ID: 1, Position: 1, Title: models.Translations{"en": "Chapter 1"}},
	})
	assert.ErrorIs(t, err, ErrFeatureDisabled)

	_, err = svc.Publish(context.Background(), testComponentID, nil, 1)
	assert.ErrorIs(t, err, ErrFeatureDisabled)
	assert.Zero(t, db.writes)
}

func TestPublishWritesOneSyntheticVersion(t *testing.T) {
	db, svc := textSetup(t)
	drafts, err := svc.Import(context.Background(), testComponentID, document, 1)
	require.NoError(t, err)

	published, err := svc.Publish(context.Background(), testComponentID, []TextEdit{
		{ID: drafts[0].ID, Position: 1, Title: models.Translations{"en": "Chapter 1"}},
	}, 1)
	require.NoError(t, err)
	assert.Len(t, published, 5)

	for _, id := range published {
		assert.False(t, db.question(id).IsDraft())
		versions := db.versionsOf(resourceQuestion, id)
		require.Len(t, versions, 1)
		assert.Equal(t, models.Change{"", db.question(id).Title}, versions[0].ObjectChanges["title"])
		assert.Equal(t, models.Change{"", db.question(id).Body}, versions[0].ObjectChanges["body"])
	}

	_, err = svc.Publish(context.Background(), testComponentID, nil, 1)
	assert.ErrorIs(t, err, ErrNothingToPublish)
}

func TestDiscard(t *testing.T) {
	db, svc := textSetup(t)
	_, err := svc.Import(context.Background(), testComponentID, document, 1)
	require.NoError(t, err)

	deleted, err := svc.Discard(context.Background(), testComponentID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
	assert.Empty(t, db.questions)
}
