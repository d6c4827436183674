package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/botadmin/internal/api/http"
	"github.com/spec-kit/botadmin/internal/api/http/handlers"
	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/events"
	"github.com/spec-kit/botadmin/internal/observability"
	"github.com/spec-kit/botadmin/internal/persistence"
	"github.com/spec-kit/botadmin/internal/repository"
	"github.com/spec-kit/botadmin/internal/service"
	"github.com/spec-kit/botadmin/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
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

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	if cfg.Telegram.BotToken == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not provided; mini app verification will fail")
	}

	pool := pg.PoolHandle()
	adminRepo := repository.NewAdminUserRepository(pool)
	telegramRepo := repository.NewTelegramUserRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	auditService := service.NewAuditService(dispatcher, logger, 0)
	worker.StartAuditWorker(auditService)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	revoker := auth.NewRevoker(redis.Universal())
	limiter := auth.NewLoginLimiter(redis.Universal(), cfg.Auth.MaxLoginAttempts, cfg.Auth.LoginWindow())
	accountLimiter := auth.NewLoginLimiter(redis.Universal(), cfg.Auth.MaxAccountAttempts, cfg.Auth.LoginWindow())

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AdminRepo:      adminRepo,
		Tokens:         tokens,
		Revoker:        revoker,
		Limiter:        limiter,
		AccountLimiter: accountLimiter,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	miniAppService := service.NewMiniAppService(*cfg, service.MiniAppDependencies{
		UserRepo:   telegramRepo,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, revoker, adminRepo, cfg.Auth.CookieName)

	if pool != nil {
		if err := authService.SeedDefaultAdmin(ctx); err != nil {
			logger.Fatal("failed to seed default admin", zap.Error(err))
		}
	}

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService, authMiddleware, cfg.Auth),
		MiniApp:        handlers.NewMiniAppHandler(miniAppService),
		Admin:          handlers.NewAdminHandler(authService, auditService, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
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
