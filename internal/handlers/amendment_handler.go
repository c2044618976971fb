package handlers

import (
	"context"
	"net/http"
)

// AmendmentStates applies amendment state changes to emendations
type AmendmentStates interface {
	ProcessStateChange(ctx context.Context, emendationID int64, state string, userID int64) error
}

// AmendmentStateRequest carries the new amendment state
type AmendmentStateRequest struct {
	State string `json:"state"`
}

// AmendmentHandler handles amendment requests
type AmendmentHandler struct {
	amendments AmendmentStates
	questions  QuestionLookup
}

// NewAmendmentHandler creates a new amendment handler
func NewAmendmentHandler(amendments AmendmentStates, questions QuestionLookup) *AmendmentHandler {
	return &AmendmentHandler{amendments: amendments, questions: questions}
}

// ChangeState moves an amendment to a new state and syncs its emendation
// @Summary Change amendment state
// @Description Accept, reject, evaluate or withdraw the amendment wrapping an emendation
// @Tags Amendments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param questionID path int true "Emendation ID"
// @Param state body AmendmentStateRequest true "New state"
// @Success 200 {object} QuestionView
// @Failure 404 {object} ErrorResponse "Emendation not found"
// @Failure 422 {object} ErrorResponse "Invalid state"
// @Router /admin/components/{componentID}/amendments/{questionID}/state [post]
func (h *AmendmentHandler) ChangeState(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	q, ok := loadQuestion(w, r, h.questions, ca.Component.ID)
	if !ok {
		return
	}

	var req AmendmentStateRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}

	if err := h.amendments.ProcessStateChange(r.Context(), q.ID, req.State, ca.Actor.UserID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	updated, err := h.questions.GetByID(r.Context(), q.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, adminView(updated))
}
