package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/vcheck/internal/api/handler"
	"github.com/timmy/vcheck/internal/api/middleware"
	"github.com/timmy/vcheck/internal/logger"
	"github.com/timmy/vcheck/internal/metrics"
	"github.com/timmy/vcheck/internal/service"
)

// Services are the engine services exposed over HTTP.
type Services struct {
	Feedback   *service.FeedbackService
	Checks     *service.CheckService
	Settings   *service.SettingsService
	Videos     *service.VideoService
	Statistics *service.StatisticsService
}

// RouterConfig holds the transport-level options of the router.
type RouterConfig struct {
	Mode        string
	CORS        middleware.CORSConfig
	Logger      *logger.Logger
	DB          handler.Pinger       // optional, checked by /health
	Registry    *prometheus.Registry // nil disables /metrics
	MetricsPath string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc Services, cfg RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Registry != nil {
		r.Use(metrics.HTTPMiddleware(cfg.Registry))
	}

	// Create handlers
	healthHandler := handler.NewHealthHandler(cfg.DB)
	feedbackHandler := handler.NewFeedbackHandler(svc.Feedback)
	checkHandler := handler.NewCheckHandler(svc.Checks)
	settingsHandler := handler.NewSettingsHandler(svc.Settings)
	videoHandler := handler.NewVideoHandler(svc.Videos)
	statisticsHandler := handler.NewStatisticsHandler(svc.Statistics)

	// Health check
	r.GET("/health", healthHandler.Health)

	if cfg.Registry != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(metrics.Handler(cfg.Registry)))
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Feedback templates
		v1.POST("/feedbacks", feedbackHandler.Register)
		v1.GET("/feedbacks", feedbackHandler.List)
		v1.POST("/feedbacks/regenerate-embeddings", feedbackHandler.Regenerate)
		v1.GET("/feedbacks/:id", feedbackHandler.Get)
		v1.PUT("/feedbacks/:id", feedbackHandler.Update)
		v1.DELETE("/feedbacks/:id", feedbackHandler.Delete)
		v1.POST("/feedbacks/:id/archive", feedbackHandler.Archive)
		v1.GET("/feedbacks/:id/similar", feedbackHandler.Similar)

		// Checks
		v1.POST("/checks/videos/:videoId", checkHandler.CheckVideo)
		v1.GET("/checks/videos/:videoId/matches", checkHandler.ListMatches)
		v1.PUT("/checks/matches/:matchId/judgement", checkHandler.RecordJudgement)

		// Settings
		v1.GET("/settings/:clientId", settingsHandler.Get)
		v1.PUT("/settings/:clientId", settingsHandler.Update)

		// Videos
		v1.POST("/videos", videoHandler.Register)
		v1.PUT("/videos/:videoId/analysis", videoHandler.SaveAnalysis)
		v1.DELETE("/videos/:videoId", videoHandler.Delete)

		// Statistics
		v1.GET("/statistics/:clientId", statisticsHandler.Get)
		v1.POST("/statistics/:clientId/recalculate", statisticsHandler.Recalculate)
	}

	return r
}
