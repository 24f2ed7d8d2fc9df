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

	"github.com/gin-gonic/gin"
	"github.com/local/docqa/api/config"
	"github.com/local/docqa/api/db"
	"github.com/local/docqa/api/handlers"
	"github.com/local/docqa/api/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.Environment)
	log.Logger = logger

	// Initialize database
	database, err := db.Init(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}

	logger.Info().Str("db_path", cfg.DBPath).Msg("Database initialized")

	docs, err := services.NewDocumentService(cfg, database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create document service")
	}

	maintenance := services.NewMaintenance(docs, cfg.MaintenanceSchedule, 10*time.Minute, logger)
	if err := maintenance.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start maintenance")
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.New(docs, cfg), cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("embedding_provider", cfg.EmbeddingProvider).
			Str("qa_provider", cfg.QAProvider).
			Str("summary_provider", cfg.SummaryProvider).
			Msg("Starting PDF question answering server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Received termination signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Shutdown timeout exceeded, some requests may be lost")
	}
	maintenance.Stop(ctx)

	if err := docs.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close model clients")
	}

	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info().Msg("Server stopped")
}

func setupLogger(level, environment string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	if environment == "development" {
		// Pretty console output for development
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
