package handlers

import (
	"context"
	"net/http"
	"slices"

	"questions/internal/middleware"
	"questions/internal/models"
	"questions/internal/permissions"
	"questions/internal/service"
)

// Answerer answers questions and releases answers
type Answerer interface {
	Answer(ctx context.Context, questionID, userID int64, form service.AnswerForm) (*models.Question, error)
	PublishAnswers(ctx context.Context, componentID int64, ids []int64, userID int64) (*service.PublishAnswersResult, error)
}

// AssignmentLookup lists the valuator roles assigned to questions
type AssignmentLookup interface {
	AssignedRoleIDs(ctx context.Context, questionIDs []int64) (map[int64][]int64, error)
}

// AnswerHandler handles answer requests
type AnswerHandler struct {
	answers     Answerer
	questions   QuestionLookup
	assignments AssignmentLookup
}

// NewAnswerHandler creates a new answer handler
func NewAnswerHandler(answers Answerer, questions QuestionLookup, assignments AssignmentLookup) *AnswerHandler {
	return &AnswerHandler{
		answers:     answers,
		questions:   questions,
		assignments: assignments,
	}
}

// Answer answers one question
// @Summary Answer a question
// @Description Set the answer state and text of a question. Space admins and the valuators assigned to the question may answer.
// @Tags Answers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param questionID path int true "Question ID"
// @Param answer body service.AnswerForm true "Answer"
// @Success 200 {object} QuestionView
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Failure 404 {object} ErrorResponse "Question not found"
// @Failure 422 {object} ErrorResponse "Answer rejected"
// @Router /admin/components/{componentID}/questions/{questionID}/answer [post]
func (h *AnswerHandler) Answer(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	q, ok := loadQuestion(w, r, h.questions, ca.Component.ID)
	if !ok {
		return
	}

	assigned, err := assignedToActor(r.Context(), h.assignments, q.ID, ca)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if !permissions.Can(ca.Actor, permissions.ActionAnswer, permissions.Subject{AssignedToActor: assigned}) {
		respondWithError(w, http.StatusForbidden, ErrMsgPermissionDenied)
		return
	}

	var form service.AnswerForm
	if !decodeJSON(w, r, maxBodyBytes, &form) {
		return
	}

	answered, err := h.answers.Answer(r.Context(), q.ID, ca.Actor.UserID, form)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, adminView(answered))
}

// PublishAnswers releases the answers of the selected questions
// @Summary Publish answers
// @Description Publish the pending answers of the selected questions. Each question is published on its own; failures are reported per id.
// @Tags Answers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param selection body BulkRequest true "Selected questions"
// @Success 200 {object} service.PublishAnswersResult
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Failure 422 {object} ErrorResponse "Nothing to publish"
// @Router /admin/components/{componentID}/answers/publish [post]
func (h *AnswerHandler) PublishAnswers(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var req BulkRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}

	result, err := h.answers.PublishAnswers(r.Context(), ca.Component.ID, req.QuestionIDs, ca.Actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// assignedToActor reports whether one of the actor's valuator roles is
// assigned to the question
func assignedToActor(ctx context.Context, assignments AssignmentLookup, questionID int64, ca middleware.ComponentActor) (bool, error) {
	roleIDs := ca.Actor.ValuatorRoleIDs()
	if len(roleIDs) == 0 || ca.Actor.SpaceAdmin() {
		return false, nil
	}

	assigned, err := assignments.AssignedRoleIDs(ctx, []int64{questionID})
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(assigned[questionID], func(id int64) bool {
		return slices.Contains(roleIDs, id)
	}), nil
}
