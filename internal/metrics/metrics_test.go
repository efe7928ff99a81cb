package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func familyNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestRecorders_NoopBeforeRegistration(t *testing.T) {
	embeddingRequestsTotal = nil
	embeddingRequestSeconds = nil
	checkRunsTotal = nil
	checkMatchesTotal = nil

	assert.NotPanics(t, func() {
		RecordEmbeddingRequest("gemini", "ok", time.Millisecond)
		IncCheckRun(CheckStatusMatched)
		IncCheckMatch("A")
	})
}

func TestRegisterEngineMetrics_Exposed(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterEngineMetrics(reg)

	RecordEmbeddingRequest("offline", "ok", 5*time.Millisecond)
	IncCheckRun(CheckStatusNoMatch)
	IncCheckMatch("B")

	names := familyNames(t, reg)
	assert.True(t, names["vcheck_embedding_requests_total"])
	assert.True(t, names["vcheck_embedding_request_duration_seconds"])
	assert.True(t, names["vcheck_check_runs_total"])
	assert.True(t, names["vcheck_check_matches_total"])
}

func TestHTTPMiddleware_RouteTemplateLabel(t *testing.T) {
	reg := prometheus.NewRegistry()

	r := gin.New()
	r.Use(HTTPMiddleware(reg))
	r.GET("/api/v1/feedbacks/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(Handler(reg)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/feedbacks/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `route="/api/v1/feedbacks/:id"`), body)
	assert.False(t, strings.Contains(body, "/api/v1/feedbacks/abc"))
}

func TestHTTPMiddleware_NilRegistry(t *testing.T) {
	r := gin.New()
	r.Use(HTTPMiddleware(nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
