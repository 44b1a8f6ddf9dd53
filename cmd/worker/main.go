package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/HerbTrace/internal/config"
	"github.com/dharsanguruparan/HerbTrace/internal/logging"
	"github.com/dharsanguruparan/HerbTrace/internal/processing"
	"github.com/dharsanguruparan/HerbTrace/internal/s3storage"
	"github.com/dharsanguruparan/HerbTrace/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.RedisAddr == "" {
		logger.Fatal("HERBTRACE_REDIS_ADDR is required for the worker")
	}

	var archiver processing.Archiver = processing.LogArchiver{Log: logger}
	if cfg.S3Endpoint != "" {
		store, err := s3storage.New(cfg)
		if err != nil {
			logger.Fatalw("init storage", "error", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Fatalw("ensure bucket", "error", err)
		}
		archiver = store
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
	})
	processor := worker.NewProcessor(archiver, logger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Infow("worker started", "redis", cfg.RedisAddr, "concurrency", cfg.Workers)
	if err := server.Run(mux); err != nil {
		logger.Errorw("worker stopped", "error", err)
		os.Exit(1)
	}
}
