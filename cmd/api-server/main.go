package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/hospital-workflow/internal/api"
	"github.com/hackgods/hospital-workflow/internal/auth"
	"github.com/hackgods/hospital-workflow/internal/config"
	"github.com/hackgods/hospital-workflow/internal/db"
	"github.com/hackgods/hospital-workflow/internal/hospital"
	"github.com/hackgods/hospital-workflow/internal/logging"
	redisclient "github.com/hackgods/hospital-workflow/internal/redis"
	"github.com/hackgods/hospital-workflow/internal/storage"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "info", "api-server")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreDriver).
		Msg("api-server starting up")
	if cfg.DevJWTSecret {
		logger.Warn().Msg("JWT_SECRET not set, using the built-in dev secret")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo   hospital.Repository
		locker redisclient.Locker
		store  storage.ObjectStore
		pgPool *pgxpool.Pool
		rdb    *redis.Client
	)

	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		repo = hospital.NewMemoryRepository()
		locker = redisclient.NewLocalLocker()
		store = storage.NewMemory("http://localhost:" + cfg.HTTPPort + "/files")

	default:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		rdb, err = redisclient.NewRedisClient(redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
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

		minioCtx, cancelMinio := context.WithTimeout(rootCtx, 10*time.Second)
		mc, err := storage.NewMinIO(minioCtx, storage.MinIOOptions{
			Endpoint:   cfg.MinIOEndpoint,
			AccessKey:  cfg.MinIOAccessKey,
			SecretKey:  cfg.MinIOSecretKey,
			Bucket:     cfg.MinIOBucket,
			UseSSL:     cfg.MinIOUseSSL,
			PublicBase: cfg.MinIOPublicBase,
		})
		cancelMinio()
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage connection error")
		}
		logger.Info().Str("bucket", cfg.MinIOBucket).Msg("connected to object storage")

		repo = hospital.NewPgRepository(pgPool)
		locker = redisclient.NewRedisDocumentLocker(rdb, cfg.LockTTL, cfg.LockWait)
		store = mc
	}

	svc := hospital.NewService(repo, locker, store, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Store:          store,
		Tokens:         auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
		PgPool:         pgPool,
		Redis:          rdb,
		Logger:         logger,
		Env:            cfg.Env,
		Version:        version,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
			stop()
			os.Exit(1)
		}
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
