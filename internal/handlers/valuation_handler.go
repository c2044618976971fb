package handlers

import (
	"context"
	"net/http"

	"questions/internal/permissions"
	"questions/internal/service"
)

// Valuator assigns valuator roles to questions
type Valuator interface {
	Assign(ctx context.Context, componentID, valuatorRoleID int64, ids []int64, userID int64) (*service.AssignmentResult, error)
	Unassign(ctx context.Context, componentID, valuatorRoleID int64, ids []int64, actor permissions.Actor) (*service.UnassignmentResult, error)
}

// ValuationRequest selects questions and the valuator role to (un)assign
type ValuationRequest struct {
	ValuatorRoleID int64   `json:"valuator_role_id"`
	QuestionIDs    []int64 `json:"question_ids"`
}

// ValuationHandler handles valuation assignment requests
type ValuationHandler struct {
	valuations Valuator
}

// NewValuationHandler creates a new valuation handler
func NewValuationHandler(valuations Valuator) *ValuationHandler {
	return &ValuationHandler{valuations: valuations}
}

// Assign assigns a valuator role to the selected questions
// @Summary Assign valuator
// @Description Assign a valuator role to questions. Existing assignments are reported, not duplicated.
// @Tags Valuation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param assignment body ValuationRequest true "Assignment"
// @Success 200 {object} service.AssignmentResult
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Failure 422 {object} ErrorResponse "Invalid valuator role"
// @Router /admin/components/{componentID}/valuation_assignments [post]
func (h *ValuationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var req ValuationRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}

	result, err := h.valuations.Assign(r.Context(), ca.Component.ID, req.ValuatorRoleID, req.QuestionIDs, ca.Actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// Unassign removes a valuator role from the selected questions
// @Summary Unassign valuator
// @Description Remove a valuator role from questions. Valuators may remove their own role.
// @Tags Valuation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param assignment body ValuationRequest true "Assignment"
// @Success 200 {object} service.UnassignmentResult
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Router /admin/components/{componentID}/valuation_assignments [delete]
func (h *ValuationHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var req ValuationRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}

	result, err := h.valuations.Unassign(r.Context(), ca.Component.ID, req.ValuatorRoleID, req.QuestionIDs, ca.Actor)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
