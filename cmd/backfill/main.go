package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/vcheck/internal/config"
	"github.com/timmy/vcheck/internal/logger"
	"github.com/timmy/vcheck/internal/repository"
	"github.com/timmy/vcheck/internal/service"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "vcheck-backfill",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	clientID := flag.String("client", "", "Restrict to one client (default: all clients)")
	limit := flag.Int("limit", 0, "Maximum number of templates to embed (0 = no limit)")
	recalculate := flag.Bool("recalculate", false, "Recalculate learning statistics for -client instead of embedding templates")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.SetComponent(ctx, "backfill")
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	if *recalculate {
		if *clientID == "" {
			appLogger.Fatal("-recalculate requires -client")
		}
		statisticsService := service.NewStatisticsService(
			repository.NewVideoRepository(db),
			repository.NewStatisticsRepository(db),
		)
		stats, err := statisticsService.Recalculate(ctx, *clientID)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to recalculate learning statistics")
		}
		if stats == nil {
			appLogger.WithField(logger.FieldClientID, *clientID).Info("Client has no analyzed videos, statistics removed")
			return
		}
		appLogger.WithFields(logger.Fields{
			logger.FieldClientID: *clientID,
			"videos":             stats.TotalVideosAnalyzed,
			"best_video_id":      stats.BestVideoID,
		}).Info("Statistics recalculated")
		return
	}

	embedding, err := service.NewEmbeddingProvider(&cfg.Embedding)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize embedding provider")
	}

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

	appLogger.WithFields(logger.Fields{
		logger.FieldClientID: *clientID,
		logger.FieldProvider: cfg.Embedding.Provider,
		"limit":              *limit,
	}).Info("Starting embedding backfill")

	feedbackService := service.NewFeedbackService(repository.NewFeedbackTemplateRepository(db), embedding, index)
	result, err := feedbackService.RegenerateEmbeddings(ctx, *clientID, *limit)
	if err != nil {
		entry := appLogger.WithError(err)
		if result != nil {
			entry = entry.WithFields(logger.Fields{
				"scanned":  result.Scanned,
				"embedded": result.Embedded,
				"failed":   result.Failed,
			})
		}
		entry.Fatal("Embedding backfill stopped")
	}
	appLogger.WithFields(logger.Fields{
		"scanned":  result.Scanned,
		"embedded": result.Embedded,
		"failed":   result.Failed,
	}).Info("Embedding backfill completed")
}
