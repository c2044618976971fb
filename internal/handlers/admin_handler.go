package handlers

import (
	"context"
	"net/http"
	"time"

	"questions/internal/models"
	"questions/internal/service"
)

// MetricsReporter computes component metrics
type MetricsReporter interface {
	ForComponent(ctx context.Context, componentID int64, day time.Time) (*service.ComponentMetrics, error)
}

// ActionLogReader pages through the action log of a component
type ActionLogReader interface {
	GetByComponent(ctx context.Context, componentID int64, limit, offset int) ([]models.ActionLog, error)
}

// AdminHandler serves the admin dashboard reports
type AdminHandler struct {
	metrics MetricsReporter
	logs    ActionLogReader
	now     func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(metrics MetricsReporter, logs ActionLogReader) *AdminHandler {
	return &AdminHandler{metrics: metrics, logs: logs, now: time.Now}
}

// GetMetrics returns the per category metrics of a component
// @Summary Component metrics
// @Description Accepted questions and votes per category up to the end of a day
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param day query string false "Day as YYYY-MM-DD, defaults to today"
// @Success 200 {object} service.ComponentMetrics
// @Failure 400 {object} ErrorResponse "Invalid day"
// @Router /admin/components/{componentID}/metrics [get]
func (h *AdminHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	day := h.now().UTC()
	if v := r.URL.Query().Get("day"); v != "" {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid day")
			return
		}
		day = parsed
	}

	metrics, err := h.metrics.ForComponent(r.Context(), ca.Component.ID, day)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, metrics)
}

// GetActionLogs returns the action log of a component
// @Summary Component action log
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param page query int false "Page, from 1"
// @Param per_page query int false "Page size, at most 100"
// @Success 200 {array} models.ActionLog
// @Router /admin/components/{componentID}/logs [get]
func (h *AdminHandler) GetActionLogs(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	page := max(atoi(r.URL.Query().Get("page")), 1)
	perPage := atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 || perPage > 100 {
		perPage = 50
	}

	logs, err := h.logs.GetByComponent(r.Context(), ca.Component.ID, perPage, (page-1)*perPage)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, logs)
}
