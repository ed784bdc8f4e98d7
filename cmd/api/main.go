package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	httptransport "github.com/spec-kit/account-service/internal/api/http"
	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
	"github.com/spec-kit/account-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewFileRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	var revocationStore accesscontrol.RevocationStore
	if pool != nil {
		revocationStore = repository.NewRevocationRepository(pool)
	} else {
		logger.Warn("no postgres pool available; using in-memory revocation store")
		revocationStore = accesscontrol.NewMemoryRevocationStore()
	}

	var counterStore accesscontrol.CounterStore
	if err := redis.Ping(ctx); err == nil {
		counterStore = persistence.NewRedisCounterStore(redis)
	} else {
		logger.Warn("redis unreachable; using in-memory rate limit counters")
		counterStore = accesscontrol.NewMemoryCounterStore()
	}

	codec := accesscontrol.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	tokenService := accesscontrol.NewTokenService(codec, revocationStore, cfg.Auth.RefreshTokenTTL(), logger)
	limiter := accesscontrol.NewRateLimiter(counterStore, cfg.RateLimit.FailOpen, logger)
	facade := accesscontrol.NewFacade(tokenService, limiter, accesscontrol.FacadePolicies{
		APIKey: accesscontrol.TierPolicy{Limit: cfg.RateLimit.APIKeyLimit, Window: cfg.RateLimit.APIKeyWindow()},
		User:   accesscontrol.TierPolicy{Limit: cfg.RateLimit.UserLimit, Window: cfg.RateLimit.UserWindow()},
		IP:     accesscontrol.TierPolicy{Limit: cfg.RateLimit.IPLimit, Window: cfg.RateLimit.IPWindow()},
	})

	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokenService,
		Dispatcher: dispatcher,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	userService := service.NewUserService(userRepo, tokenService, dispatcher)
	fileService := service.NewFileService(fileRepo, userRepo, dispatcher)
	auditService := service.NewAuditService(auditRepo)

	worker.StartAuditWorker(dispatcher, auditService, logger)
	worker.StartRevocationSweeper(ctx, revocationStore, cfg.Auth.SweepInterval(), metrics, logger)

	authMiddleware := auth.NewMiddleware(facade)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Files:          handlers.NewFilesHandler(fileService),
		Audit:          handlers.NewAuditHandler(auditService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
