package handlers

import (
	"context"
	"net/http"

	"questions/internal/models"
	"questions/internal/service"
)

// ParticipatoryTexts manages the drafts of a participatory text
type ParticipatoryTexts interface {
	Import(ctx context.Context, componentID int64, document string, userID int64) ([]*models.Question, error)
	Update(ctx context.Context, componentID int64, edits []service.TextEdit) error
	Publish(ctx context.Context, componentID int64, edits []service.TextEdit, userID int64) ([]int64, error)
	Discard(ctx context.Context, componentID, userID int64) (int64, error)
}

// ImportRequest carries a markdown document
type ImportRequest struct {
	Document string `json:"document"`
}

// TextEditsRequest carries the edited drafts
type TextEditsRequest struct {
	Edits []service.TextEdit `json:"edits"`
}

// ParticipatoryTextHandler handles participatory text requests
type ParticipatoryTextHandler struct {
	texts ParticipatoryTexts
}

// NewParticipatoryTextHandler creates a new participatory text handler
func NewParticipatoryTextHandler(texts ParticipatoryTexts) *ParticipatoryTextHandler {
	return &ParticipatoryTextHandler{texts: texts}
}

// Import replaces the drafts with the sections of a markdown document
// @Summary Import participatory text
// @Description Parse a markdown document into draft sections and articles. Rejected once the component has published questions.
// @Tags Participatory texts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param document body ImportRequest true "Markdown document"
// @Success 201 {array} QuestionView
// @Failure 403 {object} ErrorResponse "Participatory texts disabled"
// @Failure 422 {object} ErrorResponse "Import rejected"
// @Router /admin/components/{componentID}/participatory_texts/import [post]
func (h *ParticipatoryTextHandler) Import(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var req ImportRequest
	if !decodeJSON(w, r, maxDocumentBytes, &req) {
		return
	}

	drafts, err := h.texts.Import(r.Context(), ca.Component.ID, req.Document, ca.Actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, adminViews(drafts))
}

// Update saves edits to the drafts
// @Summary Update participatory text
// @Description Save positions, titles and article bodies. Any failing edit rolls back the whole batch.
// @Tags Participatory texts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param edits body TextEditsRequest true "Edits"
// @Success 204
// @Failure 422 {object} ErrorResponse "Per draft failures"
// @Router /admin/components/{componentID}/participatory_texts [put]
func (h *ParticipatoryTextHandler) Update(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var req TextEditsRequest
	if !decodeJSON(w, r, maxDocumentBytes, &req) {
		return
	}

	if err := h.texts.Update(r.Context(), ca.Component.ID, req.Edits); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Publish saves the edits and publishes every draft
// @Summary Publish participatory text
// @Tags Participatory texts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param edits body TextEditsRequest true "Last edits"
// @Success 200 {object} map[string][]int64 "Published ids"
// @Failure 422 {object} ErrorResponse "Nothing to publish"
// @Router /admin/components/{componentID}/participatory_texts/publish [post]
func (h *ParticipatoryTextHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var req TextEditsRequest
	if !decodeJSON(w, r, maxDocumentBytes, &req) {
		return
	}

	published, err := h.texts.Publish(r.Context(), ca.Component.ID, req.Edits, ca.Actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string][]int64{"published": published})
}

// Discard deletes every draft
// @Summary Discard participatory text
// @Tags Participatory texts
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Success 200 {object} map[string]int64 "Deleted drafts"
// @Router /admin/components/{componentID}/participatory_texts [delete]
func (h *ParticipatoryTextHandler) Discard(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	deleted, err := h.texts.Discard(r.Context(), ca.Component.ID, ca.Actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
