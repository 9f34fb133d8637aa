package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"audio-transcriber/pkg/api"
	"audio-transcriber/pkg/config"
	"audio-transcriber/pkg/logging"
	"audio-transcriber/pkg/pipeline"
	"audio-transcriber/pkg/segmenter"
	"audio-transcriber/pkg/storage"
	"audio-transcriber/pkg/summarize"
	"audio-transcriber/pkg/transcribe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize storage
	memStore := storage.NewMemoryStore()
	diskStore, err := storage.NewDiskStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal("failed to initialize disk storage", zap.Error(err))
	}
	defer diskStore.Close()

	seg, err := segmenter.New(cfg.Segmenter.Kind, cfg.Segmenter.FFmpegPath, cfg.MaxDecodeBytes(), logger.Named("segmenter"))
	if err != nil {
		logger.Fatal("failed to build segmenter", zap.Error(err))
	}
	transcriber, err := transcribe.New(cfg.Transcriber, logger.Named("transcribe"))
	if err != nil {
		logger.Fatal("failed to build transcriber", zap.Error(err))
	}
	summarizer := summarize.New(cfg.Summarizer, cfg.Transcriber.MaxRetries, logger.Named("summarize"))

	pipelineManager := pipeline.NewManager(pipeline.Options{
		Config:      cfg.Pipeline,
		ChunkLength: cfg.ChunkLength(),
		ResultCache: cfg.ResultCache,
		CacheScope:  cfg.CacheScope(),
		Segmenter:   seg,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		MemStore:    memStore,
		DiskStore:   diskStore,
		Logger:      logger.Named("pipeline"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pipelineManager.Start(ctx); err != nil {
		logger.Fatal("failed to start pipeline", zap.Error(err))
	}

	handlers := api.NewHandlers(pipelineManager, memStore, cfg, logger.Named("http"))

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handlers.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting",
			zap.String("address", cfg.Server.Address),
			zap.String("transcriber", cfg.Transcriber.Backend),
			zap.String("segmenter", cfg.Segmenter.Kind),
			zap.String("version", cfg.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	pipelineManager.Stop()

	logger.Info("server exited")
}
