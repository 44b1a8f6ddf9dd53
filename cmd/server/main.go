// Command server runs the HerbTrace provenance ledger API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/HerbTrace/internal/config"
	"github.com/dharsanguruparan/HerbTrace/internal/database"
	"github.com/dharsanguruparan/HerbTrace/internal/ledger"
	"github.com/dharsanguruparan/HerbTrace/internal/logging"
	"github.com/dharsanguruparan/HerbTrace/internal/processing"
	"github.com/dharsanguruparan/HerbTrace/internal/queue"
	"github.com/dharsanguruparan/HerbTrace/internal/repository"
	"github.com/dharsanguruparan/HerbTrace/internal/s3storage"
	"github.com/dharsanguruparan/HerbTrace/internal/server"
	"github.com/dharsanguruparan/HerbTrace/internal/signing"
	"github.com/dharsanguruparan/HerbTrace/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	publisher, closePublisher := openPublisher(ctx, cfg, logger)
	defer closePublisher()

	signer := signing.NewSigner(cfg.SigningSecret, cfg.PublicURL, cfg.LabelTTL)
	l := ledger.New(store,
		ledger.WithPublisher(publisher),
		ledger.WithLinkSigner(signer),
		ledger.WithLogger(logger),
	)
	srv := server.New(cfg, l, signer, logger)
	if err := srv.Serve(ctx); err != nil {
		logger.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped cleanly")
}

// openStore returns the Postgres store when a database is configured and the
// process-lifetime memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (ledger.Store, func()) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory ledger store")
		return storage.NewMemoryStore(), func() {}
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("connect database", "error", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatalw("ensure schema", "error", err)
	}
	logger.Info("using postgres ledger store")
	return repository.NewLedgerRepository(pool), pool.Close
}

// openPublisher prefers the asynq queue and falls back to the in-process
// archive pool.
func openPublisher(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (ledger.Publisher, func()) {
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		logger.Infow("publishing events to asynq", "redis", cfg.RedisAddr)
		return queue.NewPublisher(client), func() { _ = client.Close() }
	}
	var archiver processing.Archiver = processing.LogArchiver{Log: logger}
	if cfg.S3Endpoint != "" {
		store, err := s3storage.New(cfg)
		if err != nil {
			logger.Fatalw("init archive storage", "error", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Fatalw("ensure archive bucket", "error", err)
		}
		archiver = store
	}
	pool := processing.New(archiver, cfg.Workers, logger)
	pool.Start(ctx)
	return pool, pool.Wait
}
