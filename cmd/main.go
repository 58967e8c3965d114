package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apexscore/live-scoring/config"
	"github.com/apexscore/live-scoring/db"
	"github.com/apexscore/live-scoring/handlers"
	"github.com/apexscore/live-scoring/realtime"
	"github.com/apexscore/live-scoring/repositories"
	api "github.com/apexscore/live-scoring/routes"
	"github.com/apexscore/live-scoring/services"
	"github.com/apexscore/live-scoring/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
)

const (
	presenceSweepInterval = 15 * time.Second
	presenceTimeout       = 45 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Snapshot publishing to R2 is optional. With a nil uploader the
	// results service skips publishing.
	var uploader storage.FileUploader
	if cfg.SnapshotPublishingEnabled() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("scoreboard snapshot publishing disabled")
	}

	wsHub := realtime.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Stale admin presence entries are swept so a crashed client does not
	// stay listed as online forever.
	go func() {
		ticker := time.NewTicker(presenceSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			wsHub.SweepStalePresence(presenceTimeout)
		}
	}()

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	logger.Info("Repositories initialized")

	tournamentService := services.NewTournamentService(dbConn, tournamentRepo, teamRepo, eventRepo, wsHub, logger)
	scoringService := services.NewScoringService(dbConn, tournamentRepo, teamRepo, eventRepo, wsHub, logger)
	resultsService := services.NewResultsService(tournamentRepo, teamRepo, eventRepo, uploader, logger)
	activityService := services.NewActivityService(eventRepo)
	logger.Info("Services initialized")

	// Periodic scoreboard snapshot publishing for broadcast overlays that
	// poll the bucket instead of the API.
	if uploader != nil {
		c := cron.New()
		_, err := c.AddFunc(cfg.SnapshotCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			tournament, err := tournamentRepo.GetLatest(ctx)
			if err != nil {
				if !errors.Is(err, repositories.ErrTournamentNotFound) {
					logger.Error("snapshot publisher: failed to resolve latest tournament", slog.Any("error", err))
				}
				return
			}
			if err := resultsService.PublishSnapshot(ctx, tournament.ID); err != nil {
				logger.Error("snapshot publisher: failed to publish scoreboard",
					slog.Int("tournament_id", tournament.ID), slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("failed to schedule snapshot publisher", slog.Any("error", err))
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
		logger.Info("snapshot publisher scheduled", slog.String("cron", cfg.SnapshotCron))
	}

	authHandler := handlers.NewAuthHandler(cfg.JWTSecretKey, cfg.AdminPasswordHash)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	scoringHandler := handlers.NewScoringHandler(scoringService)
	resultsHandler := handlers.NewResultsHandler(resultsService, activityService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.JWTSecretKey)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authHandler,
		tournamentHandler,
		scoringHandler,
		resultsHandler,
		webSocketHandler,
		cfg.JWTSecretKey,
	)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shut down gracefully")
	}
}
