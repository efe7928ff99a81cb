package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vcheck/internal/service"
)

// StatisticsHandler serves the per-client learning statistics.
type StatisticsHandler struct {
	statisticsService *service.StatisticsService
}

// NewStatisticsHandler creates a new statistics handler.
func NewStatisticsHandler(statisticsService *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

// Get handles GET /api/v1/statistics/:clientId. A client without analyzed
// videos gets {"stats": null}.
func (h *StatisticsHandler) Get(c *gin.Context) {
	stats, err := h.statisticsService.Get(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Recalculate handles POST /api/v1/statistics/:clientId/recalculate.
func (h *StatisticsHandler) Recalculate(c *gin.Context) {
	stats, err := h.statisticsService.Recalculate(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
