package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vcheck/internal/api/middleware"
	"github.com/timmy/vcheck/internal/domain"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeInvalidRequest       = "invalid_request"
	codeValidation           = "validation_failed"
	codeNotFound             = "not_found"
	codeCheckDisabled        = "check_disabled"
	codeAnalysisMissing      = "analysis_missing"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeIndexDisabled        = "index_disabled"
	codeInternal             = "internal_error"
)

// actorHeader names the caller for audit fields. Authentication happens
// upstream of this service.
const actorHeader = "X-Actor"

// respondError maps a service error onto a status code and a JSON body of
// the form {"error": msg, "code": code}.
func respondError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var upstream *domain.EmbeddingUnavailableError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  err.Error(),
			"code":   codeValidation,
			"fields": verr.Fields,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": codeNotFound})
	case errors.Is(err, domain.ErrCheckDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": codeCheckDisabled})
	case errors.Is(err, domain.ErrAnalysisMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": codeAnalysisMissing})
	case errors.As(err, &upstream):
		body := gin.H{"error": err.Error(), "code": codeEmbeddingUnavailable}
		if upstream.StatusCode != 0 {
			body["upstream_status"] = upstream.StatusCode
		}
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, domain.ErrIndexDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": codeIndexDisabled})
	default:
		middleware.GetLogger(c).WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": codeInternal})
	}
}

// respondBindError reports a malformed request body.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request: " + err.Error(),
		"code":  codeInvalidRequest,
	})
}

// queryInt parses an optional integer query parameter. Absent means def.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter '" + key + "' must be an integer",
			"code":  codeInvalidRequest,
		})
		return 0, false
	}
	return n, true
}

func actor(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(actorHeader))
}
