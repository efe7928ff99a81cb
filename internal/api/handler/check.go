package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vcheck/internal/service"
)

// CheckHandler handles video check endpoints.
type CheckHandler struct {
	checkService *service.CheckService
}

// NewCheckHandler creates a new check handler.
// Parameters:
//   - checkService: check service instance.
// Returns:
//   - *CheckHandler: initialized handler.
func NewCheckHandler(checkService *service.CheckService) *CheckHandler {
	return &CheckHandler{checkService: checkService}
}

// CheckVideo handles POST /api/v1/checks/videos/:videoId.
func (h *CheckHandler) CheckVideo(c *gin.Context) {
	result, err := h.checkService.CheckVideo(c.Request.Context(), c.Param("videoId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMatches handles GET /api/v1/checks/videos/:videoId/matches.
func (h *CheckHandler) ListMatches(c *gin.Context) {
	matches, err := h.checkService.ListMatches(c.Request.Context(), c.Param("videoId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"total":   len(matches),
	})
}

// RecordJudgement handles PUT /api/v1/checks/matches/:matchId/judgement.
func (h *CheckHandler) RecordJudgement(c *gin.Context) {
	var req service.RecordJudgementInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.Actor == "" {
		req.Actor = actor(c)
	}

	if err := h.checkService.RecordJudgement(c.Request.Context(), c.Param("matchId"), req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
