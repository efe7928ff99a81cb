package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vcheck/internal/api/middleware"
	"github.com/timmy/vcheck/internal/logger"
	"github.com/timmy/vcheck/internal/service"
)

// FeedbackHandler handles feedback template endpoints.
type FeedbackHandler struct {
	feedbackService *service.FeedbackService
}

// NewFeedbackHandler creates a new feedback handler.
// Parameters:
//   - feedbackService: feedback template service.
// Returns:
//   - *FeedbackHandler: initialized handler.
func NewFeedbackHandler(feedbackService *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Register handles POST /api/v1/feedbacks.
func (h *FeedbackHandler) Register(c *gin.Context) {
	var req service.RegisterFeedbackInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = actor(c)
	}

	result, err := h.feedbackService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// List handles GET /api/v1/feedbacks.
func (h *FeedbackHandler) List(c *gin.Context) {
	templates, err := h.feedbackService.List(c.Request.Context(), service.ListFeedbackInput{
		ClientID:   c.Query("client_id"),
		Status:     c.Query("status"),
		Category:   c.Query("category"),
		Importance: c.Query("importance"),
		Keyword:    c.Query("keyword"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"feedbacks": templates,
		"total":     len(templates),
	})
}

// Get handles GET /api/v1/feedbacks/:id.
func (h *FeedbackHandler) Get(c *gin.Context) {
	t, err := h.feedbackService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Update handles PUT /api/v1/feedbacks/:id.
func (h *FeedbackHandler) Update(c *gin.Context) {
	var req service.UpdateFeedbackInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	t, err := h.feedbackService.Update(c.Request.Context(), c.Param("id"), req, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Archive handles POST /api/v1/feedbacks/:id/archive.
func (h *FeedbackHandler) Archive(c *gin.Context) {
	if err := h.feedbackService.Archive(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/feedbacks/:id.
func (h *FeedbackHandler) Delete(c *gin.Context) {
	if err := h.feedbackService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Similar handles GET /api/v1/feedbacks/:id/similar.
func (h *FeedbackHandler) Similar(c *gin.Context) {
	topK, ok := queryInt(c, "top_k", 0)
	if !ok {
		return
	}

	similar, err := h.feedbackService.FindSimilar(c.Request.Context(), c.Param("id"), topK)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": similar,
		"total":   len(similar),
	})
}

// regenerateRequest scopes a backfill run. Both fields are optional.
type regenerateRequest struct {
	ClientID string `json:"client_id"`
	Limit    int    `json:"limit" binding:"min=0"`
}

// Regenerate handles POST /api/v1/feedbacks/regenerate-embeddings.
// Templates embedded before a failure stay embedded.
func (h *FeedbackHandler) Regenerate(c *gin.Context) {
	var req regenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	result, err := h.feedbackService.RegenerateEmbeddings(c.Request.Context(), req.ClientID, req.Limit)
	if err != nil {
		if result != nil {
			middleware.GetLogger(c).WithFields(logger.Fields{
				"embedded": result.Embedded,
				"failed":   result.Failed,
			}).Warn("Embedding backfill stopped early")
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
