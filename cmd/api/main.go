package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/vcheck/internal/api"
	"github.com/timmy/vcheck/internal/api/middleware"
	"github.com/timmy/vcheck/internal/config"
	"github.com/timmy/vcheck/internal/logger"
	"github.com/timmy/vcheck/internal/metrics"
	"github.com/timmy/vcheck/internal/repository"
	"github.com/timmy/vcheck/internal/service"
	"github.com/timmy/vcheck/internal/storage"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	ctx := context.Background()

	embedding, err := service.NewEmbeddingProvider(&cfg.Embedding)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize embedding provider")
	}

	// Only hand the service a non-nil index; a typed nil would defeat its nil check
	var index service.TemplateIndex
	if cfg.Qdrant.Enabled {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
		}
		defer qdrantRepo.Close()

		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
		}
		index = qdrantRepo
	}

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewStorage(ctx, &cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := s3Storage.CheckBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Storage bucket is not reachable")
		}
		objectStorage = s3Storage
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = metrics.InitRegistry()
	}

	templateRepo := repository.NewFeedbackTemplateRepository(db)
	videoRepo := repository.NewVideoRepository(db)

	settingsService := service.NewSettingsService(repository.NewSettingsRepository(db), cfg.Check.DefaultThreshold)
	statisticsService := service.NewStatisticsService(videoRepo, repository.NewStatisticsRepository(db))
	services := api.Services{
		Feedback:   service.NewFeedbackService(templateRepo, embedding, index),
		Checks:     service.NewCheckService(videoRepo, templateRepo, repository.NewCheckResultRepository(db), settingsService, embedding),
		Settings:   settingsService,
		Videos:     service.NewVideoService(videoRepo, statisticsService, objectStorage),
		Statistics: statisticsService,
	}

	router := api.SetupRouter(services, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Logger:      appLogger,
		DB:          sqlDB,
		Registry:    registry,
		MetricsPath: cfg.Metrics.Path,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":               cfg.Server.Port,
			"mode":               cfg.Server.Mode,
			logger.FieldProvider: cfg.Embedding.Provider,
			"qdrant":             cfg.Qdrant.Enabled,
			"storage":            cfg.Storage.Enabled,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
