package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vcheck/internal/service"
)

// SettingsHandler handles per-client check settings.
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// Get handles GET /api/v1/settings/:clientId. The first read creates the
// client's default settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Update handles PUT /api/v1/settings/:clientId.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req service.UpdateSettingsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	settings, err := h.settingsService.Update(c.Request.Context(), c.Param("clientId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
