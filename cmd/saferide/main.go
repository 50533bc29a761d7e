package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saferide-service/internal/alert"
	"saferide-service/internal/assistant"
	"saferide-service/internal/capture"
	"saferide-service/internal/config"
	"saferide-service/internal/db"
	"saferide-service/internal/detector"
	httphandler "saferide-service/internal/http"
	"saferide-service/internal/llm"
	"saferide-service/internal/logger"
	"saferide-service/internal/pipeline"
	"saferide-service/internal/report"
	"saferide-service/internal/repository"
	"saferide-service/internal/service"
	"saferide-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	detectorClient := detector.NewClient(cfg.Detector.URL, cfg.Detector.Timeout)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := detectorClient.Ping(ctx)
		cancel()
		if err != nil {
			appLogger.Fatal().Err(err).Msg("detector backend is not available")
		}
	}

	s3Client, err := storage.NewS3Client(cfg.S3)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to initialize S3 client")
	}

	detectionRepo := repository.NewDetectionRepository(database)
	telegramAlerter := alert.NewTelegramAlerter(cfg.Telegram, appLogger)
	mailer := alert.NewMailer(cfg.SMTP, appLogger)

	pl := pipeline.New(detectorClient, detectionRepo, s3Client, telegramAlerter, appLogger)
	camera := capture.NewSnapshotCamera(cfg.Camera.SnapshotURL)
	liveRunner := pipeline.NewLiveRunner(pl, camera, cfg.TempDir, cfg.Camera.Interval, cfg.LiveThreshold, appLogger)

	detectionService := service.NewDetectionService(detectionRepo, mailer, report.Build, cfg.TempDir, appLogger)

	ollamaClient := llm.NewOllamaClient(cfg.Ollama)
	asst := assistant.New(detectionRepo, ollamaClient, appLogger)

	handler := httphandler.NewHandler(detectionService, pl, liveRunner, asst, cfg, appLogger)
	router := httphandler.NewRouter(handler, cfg.Environment, database, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting saferide service")

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server")

	liveRunner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server exited")
}
