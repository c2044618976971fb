package service

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"questions/internal/logger"
	"questions/internal/models"
	"questions/internal/notify"
	"questions/internal/permissions"
)

// NoteForm is the private note payload
type NoteForm struct {
	Body string `json:"body" validate:"required,max=5000"`
}

// NoteService handles the private notes admins and valuators leave on a
// question. Bodies are encrypted when an Encrypter is configured.
type NoteService struct {
	deps      Deps
	encrypter Encrypter
}

// NewNoteService creates a new note service. encrypter may be nil, in which
// case notes are stored as plain text.
func NewNoteService(deps Deps, encrypter Encrypter) *NoteService {
	return &NoteService{deps: deps, encrypter: encrypter}
}

// Create stores a note and tells the other admins and assigned valuators
func (s *NoteService) Create(ctx context.Context, questionID int64, actor permissions.Actor, form NoteForm) (note *models.QuestionNote, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "create_question_note", attribute.Int64("question_id", questionID))
	defer func() { end(err) }()

	form.Body = strings.TrimSpace(form.Body)
	if err := validateForm(&form); err != nil {
		return nil, err
	}

	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		q, component, valuators, err := s.load(ctx, questionID, actor)
		if err != nil {
			return err
		}

		note = &models.QuestionNote{QuestionID: q.ID, AuthorID: actor.UserID, Body: form.Body}
		if s.encrypter != nil {
			cipher, err := s.encrypter.Encrypt(ctx, form.Body, noteContext(q.ID))
			if err != nil {
				return err
			}
			note.Body = cipher
			note.Encrypted = true
		}
		if err := s.deps.Notes.Create(ctx, note); err != nil {
			return err
		}
		note.Body = form.Body

		changes := models.Changeset{}
		changes.Add("question_id", nil, q.ID)
		changes.Add("author_id", nil, actor.UserID)
		err = s.deps.Trace.Record(ctx, Trace{
			Action:       "create",
			ResourceType: resourceQuestionNote,
			ResourceID:   note.ID,
			ComponentID:  &q.ComponentID,
			UserID:       actor.UserID,
			Changes:      changes,
			Event:        "create",
			Extra:        map[string]any{"question_id": q.ID},
		})
		if err != nil {
			return err
		}

		admins, err := s.deps.Roles.UserIDsByRole(ctx, component.SpaceID, models.RoleAdmin)
		if err != nil {
			return err
		}
		recipients := slices.DeleteFunc(append(admins, valuators...), func(id int64) bool {
			return id == actor.UserID
		})
		return s.deps.Events.Publish(ctx, notify.Event{
			Name:            notify.EventQuestionNoteCreated,
			ResourceType:    notify.ResourceQuestion,
			ResourceID:      q.ID,
			AffectedUserIDs: recipients,
			Extra: map[string]any{
				"question_title": q.Title.Default(s.deps.locale()),
				"question_path":  questionPath(q),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Question note created",
		"question_id", questionID,
		"note_id", note.ID,
		"encrypted", note.Encrypted,
	)
	return note, nil
}

// List returns the notes of a question with decrypted bodies
func (s *NoteService) List(ctx context.Context, questionID int64, actor permissions.Actor) ([]models.QuestionNote, error) {
	if _, _, _, err := s.load(ctx, questionID, actor); err != nil {
		return nil, err
	}

	notes, err := s.deps.Notes.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	for i := range notes {
		if !notes[i].Encrypted {
			continue
		}
		if s.encrypter == nil {
			notes[i].Body = ""
			continue
		}
		plain, err := s.encrypter.Decrypt(ctx, notes[i].Body, noteContext(questionID))
		if err != nil {
			return nil, err
		}
		notes[i].Body = plain
	}
	return notes, nil
}

// load fetches the question and checks the actor is a space admin or one of
// its assigned valuators
func (s *NoteService) load(ctx context.Context, questionID int64, actor permissions.Actor) (*models.Question, *models.Component, []int64, error) {
	q, err := s.deps.Questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, nil, nil, notFound(err)
	}
	component, err := s.deps.Components.GetByID(ctx, q.ComponentID)
	if err != nil {
		return nil, nil, nil, notFound(err)
	}
	valuators, err := s.deps.Assignments.ValuatorUserIDs(ctx, q.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	if !actor.SpaceAdmin() && !slices.Contains(valuators, actor.UserID) {
		return nil, nil, nil, ErrPermissionDenied
	}
	return q, component, valuators, nil
}

func noteContext(questionID int64) map[string]string {
	return map[string]string{"question_id": strconv.FormatInt(questionID, 10)}
}
