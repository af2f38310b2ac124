package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-workflow/internal/config"
	"github.com/hackgods/hospital-workflow/internal/db"
	"github.com/hackgods/hospital-workflow/internal/hospital"
	"github.com/hackgods/hospital-workflow/internal/logging"
	redisclient "github.com/hackgods/hospital-workflow/internal/redis"
	"github.com/hackgods/hospital-workflow/internal/storage"
)

const batchSize = 200

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "info", "expiry-worker")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "expiry-worker")
	if cfg.StoreDriver != config.StorePostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("expiry worker needs the postgres store")
	}
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("stale_after", cfg.StaleAfter).
		Msg("expiry worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, 2)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: 2,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := hospital.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDocumentLocker(rdb, cfg.LockTTL, cfg.LockWait)
	// expiry never touches report files
	svc := hospital.NewService(repo, locker, storage.NewMemory(""), logger)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.StaleAfter, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.StaleAfter, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *hospital.Service, staleAfter time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	cutoff := start.Add(-staleAfter)

	total := 0
	for {
		n, err := svc.ExpireStaleConsultations(runCtx, cutoff, batchSize)
		total += n
		if err != nil {
			logger.Error().Err(err).Int("expired", total).Msg("expiry run error")
			return
		}
		if n < batchSize {
			break
		}
	}

	logger.Info().
		Int("expired", total).
		Time("cutoff", cutoff).
		Dur("duration", time.Since(start)).
		Msg("expiry run complete")
}
