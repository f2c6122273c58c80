package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/cache"
	"github.com/DevOwais28/Expense-Tracker/internal/config"
	"github.com/DevOwais28/Expense-Tracker/internal/database"
	"github.com/DevOwais28/Expense-Tracker/internal/handlers"
	"github.com/DevOwais28/Expense-Tracker/internal/jobs"
	"github.com/DevOwais28/Expense-Tracker/internal/log"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
	"github.com/DevOwais28/Expense-Tracker/internal/server"
	"github.com/DevOwais28/Expense-Tracker/internal/service"
	"github.com/DevOwais28/Expense-Tracker/internal/session"
	"github.com/DevOwais28/Expense-Tracker/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(cfg.Postgres.DSN); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure avatar bucket failed")
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Params{
		Time:    cfg.Security.Argon2Time,
		Memory:  cfg.Security.Argon2Memory,
		Threads: cfg.Security.Argon2Threads,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init password hasher")
	}

	users := repository.NewUserRepository(dbPool)
	sessions := session.NewManager(session.NewRedisStore(redisClient), users, session.Options{
		Secret:      cfg.Security.SessionSecret,
		CookieName:  cfg.Security.SessionCookie,
		TTL:         cfg.Security.SessionTTL,
		MaxSessions: cfg.Security.MaxSessions,
		Secure:      cfg.IsProduction(),
	}, logger)

	if err := service.EnsureAdmin(ctx, users, hasher, service.BootstrapAdmin{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
		Name:     cfg.Bootstrap.AdminName,
	}, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap admin")
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, dbPool, redisClient, objectStore, sessions, hasher)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(users, sessions, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, handlerSet, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, handlerSet handlers.HandlerSet, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	handlerSet.Drain()

	scheduler.Stop(shutdownCtx)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
