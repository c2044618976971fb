package handlers

import (
	"net/http"

	"questions/internal/config"
	"questions/internal/middleware"
	"questions/internal/search"
)

// ConfigHandler handles configuration requests
type ConfigHandler struct {
	config     *config.Config
	components middleware.ComponentLookup
	settings   SettingsProvider
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, components middleware.ComponentLookup, settings SettingsProvider) *ConfigHandler {
	return &ConfigHandler{
		config:     cfg,
		components: components,
		settings:   settings,
	}
}

// ComponentSettingsResponse is the public view of a component's settings
type ComponentSettingsResponse struct {
	config.ComponentSettings
	AvailableOrders []search.Order `json:"available_orders"`
	DefaultOrder    search.Order   `json:"default_order"`
}

// GetAppConfig returns the public app configuration for the frontend
// @Summary Get app configuration
// @Tags Configuration
// @Produce json
// @Success 200 {object} map[string]any "App configuration"
// @Router /config/app [get]
func (h *ConfigHandler) GetAppConfig(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"name":           h.config.App.Name,
		"version":        h.config.App.Version,
		"default_locale": h.config.App.DefaultLocale,
	})
}

// GetComponentSettings returns the settings of a component
// @Summary Get component settings
// @Description Feature flags of a component and the listing orders it offers
// @Tags Configuration
// @Produce json
// @Param componentID path int true "Component ID"
// @Success 200 {object} ComponentSettingsResponse
// @Failure 404 {object} ErrorResponse "Component not found"
// @Router /components/{componentID}/settings [get]
func (h *ConfigHandler) GetComponentSettings(w http.ResponseWriter, r *http.Request) {
	componentID, err := pathID(r, middleware.ComponentIDParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid component ID")
		return
	}
	if _, err := h.components.GetByID(r.Context(), componentID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	settings := h.settings.For(componentID)
	respondWithJSON(w, http.StatusOK, ComponentSettingsResponse{
		ComponentSettings: settings,
		AvailableOrders:   search.AvailableOrders(settings),
		DefaultOrder:      search.DefaultOrder(settings),
	})
}
