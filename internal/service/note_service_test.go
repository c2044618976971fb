package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questions/internal/models"
	"questions/internal/notify"
	"questions/internal/permissions"
)

// reverseEncrypter stands in for the Vault transit engine
type reverseEncrypter struct {
	fail bool
}

func (r reverseEncrypter) Encrypt(_ context.Context, plaintext string, aad map[string]string) (string, error) {
	if r.fail {
		return "", errBoom
	}
	return "enc:" + aad["question_id"] + ":" + reverse(plaintext), nil
}

func (r reverseEncrypter) Decrypt(_ context.Context, ciphertext string, aad map[string]string) (string, error) {
	prefix := "enc:" + aad["question_id"] + ":"
	if !strings.HasPrefix(ciphertext, prefix) {
		return "", errBoom
	}
	return reverse(strings.TrimPrefix(ciphertext, prefix)), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func noteSetup(t *testing.T, enc Encrypter) (*memDB, *NoteService, *models.Question) {
	t.Helper()
	db := newMemDB()
	svc := NewNoteService(newTestDeps(db), enc)
	db.roles[20] = models.SpaceRole{ID: 20, SpaceID: testSpaceID, UserID: 2, Role: models.RoleAdmin}
	db.roles[21] = models.SpaceRole{ID: 21, SpaceID: testSpaceID, UserID: 9, Role: models.RoleAdmin}
	db.roles[30] = models.SpaceRole{ID: 30, SpaceID: testSpaceID, UserID: 3, Role: models.RoleValuator}
	q := db.add(publishedQuestion(7))
	db.assignments[[2]int64{q.ID, 30}] = models.ValuationAssignment{ID: 1, QuestionID: q.ID, ValuatorRoleID: 30}
	return db, svc, q
}

func TestCreateNoteEncryptsAndNotifies(t *testing.T) {
	db, svc, q := noteSetup(t, reverseEncrypter{})
	admin := permissions.Actor{UserID: 2, SpaceRoles: []models.SpaceRole{db.roles[20]}}

	note, err := svc.Create(context.Background(), q.ID, admin, NoteForm{Body: "  Check the budget  "})
	require.NoError(t, err)
	assert.Equal(t, "Check the budget", note.Body)

	require.Len(t, db.notes, 1)
	assert.True(t, db.notes[0].Encrypted)
	assert.NotEqual(t, "Check the budget", db.notes[0].Body)

	events := db.eventsNamed(notify.EventQuestionNoteCreated)
	require.Len(t, events, 1)
	assert.Equal(t, []int64{3, 9}, events[0].AffectedUserIDs, "author is not notified")

	valuator := permissions.Actor{UserID: 3, SpaceRoles: []models.SpaceRole{db.roles[30]}}
	notes, err := svc.List(context.Background(), q.ID, valuator)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Check the budget", notes[0].Body)
}

func TestNotesRequireAdminOrAssignedValuator(t *testing.T) {
	_, svc, q := noteSetup(t, nil)
	stranger := permissions.Actor{UserID: 5}

	_, err := svc.Create(context.Background(), q.ID, stranger, NoteForm{Body: "hello"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.List(context.Background(), q.ID, stranger)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCreateNoteRollsBackWhenEncryptionFails(t *testing.T) {
	db, svc, q := noteSetup(t, reverseEncrypter{fail: true})

	_, err := svc.Create(context.Background(), q.ID, permissions.Actor{UserID: 1, Admin: true}, NoteForm{Body: "secret"})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, db.notes)
	assert.Empty(t, db.events)
}

func TestCreateNotePlainText(t *testing.T) {
	db, svc, q := noteSetup(t, nil)

	_, err := svc.Create(context.Background(), q.ID, permissions.Actor{UserID: 1, Admin: true}, NoteForm{Body: "plain"})
	require.NoError(t, err)
	assert.False(t, db.notes[0].Encrypted)
	assert.Equal(t, "plain", db.notes[0].Body)

	_, err = svc.Create(context.Background(), q.ID, permissions.Actor{UserID: 1, Admin: true}, NoteForm{Body: "   "})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
