package handlers

import (
	"context"
	"net/http"

	"questions/internal/models"
	"questions/internal/permissions"
	"questions/internal/service"
)

// Notes handles private question notes
type Notes interface {
	Create(ctx context.Context, questionID int64, actor permissions.Actor, form service.NoteForm) (*models.QuestionNote, error)
	List(ctx context.Context, questionID int64, actor permissions.Actor) ([]models.QuestionNote, error)
}

// NoteHandler handles private note requests
type NoteHandler struct {
	notes     Notes
	questions QuestionLookup
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes Notes, questions QuestionLookup) *NoteHandler {
	return &NoteHandler{notes: notes, questions: questions}
}

// Create adds a private note
// @Summary Create note
// @Description Leave a private note. Space admins and the valuators assigned to the question are notified.
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param questionID path int true "Question ID"
// @Param note body service.NoteForm true "Note"
// @Success 201 {object} models.QuestionNote
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Failure 422 {object} ErrorResponse "Invalid note"
// @Router /admin/components/{componentID}/questions/{questionID}/notes [post]
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	q, ok := loadQuestion(w, r, h.questions, ca.Component.ID)
	if !ok {
		return
	}

	var form service.NoteForm
	if !decodeJSON(w, r, maxBodyBytes, &form) {
		return
	}

	note, err := h.notes.Create(r.Context(), q.ID, ca.Actor, form)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, note)
}

// List returns the private notes of a question
// @Summary List notes
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param questionID path int true "Question ID"
// @Success 200 {array} models.QuestionNote
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Router /admin/components/{componentID}/questions/{questionID}/notes [get]
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	q, ok := loadQuestion(w, r, h.questions, ca.Component.ID)
	if !ok {
		return
	}

	notes, err := h.notes.List(r.Context(), q.ID, ca.Actor)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, notes)
}
