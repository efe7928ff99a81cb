package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vcheck/internal/service"
)

// VideoHandler handles the video lifecycle events.
type VideoHandler struct {
	videoService *service.VideoService
}

// NewVideoHandler creates a new video handler.
// Parameters:
//   - videoService: video service instance.
// Returns:
//   - *VideoHandler: initialized handler.
func NewVideoHandler(videoService *service.VideoService) *VideoHandler {
	return &VideoHandler{videoService: videoService}
}

// Register handles POST /api/v1/videos.
func (h *VideoHandler) Register(c *gin.Context) {
	var req service.RegisterVideoInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	video, err := h.videoService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

// SaveAnalysis handles PUT /api/v1/videos/:videoId/analysis.
func (h *VideoHandler) SaveAnalysis(c *gin.Context) {
	var req service.SaveAnalysisInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	analysis, err := h.videoService.SaveAnalysis(c.Request.Context(), c.Param("videoId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Delete handles DELETE /api/v1/videos/:videoId.
func (h *VideoHandler) Delete(c *gin.Context) {
	if err := h.videoService.DeleteVideo(c.Request.Context(), c.Param("videoId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
