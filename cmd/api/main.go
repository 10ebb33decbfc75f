package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/telegram-auth-service/internal/api/http"
	"github.com/spec-kit/telegram-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/telegram-auth-service/internal/auth"
	"github.com/spec-kit/telegram-auth-service/internal/config"
	"github.com/spec-kit/telegram-auth-service/internal/events"
	"github.com/spec-kit/telegram-auth-service/internal/observability"
	"github.com/spec-kit/telegram-auth-service/internal/persistence"
	"github.com/spec-kit/telegram-auth-service/internal/repository"
	"github.com/spec-kit/telegram-auth-service/internal/service"
	"github.com/spec-kit/telegram-auth-service/internal/telegram/botapi"
	"github.com/spec-kit/telegram-auth-service/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.Pool
	userRepo := repository.NewUserRepository(pool)
	planRepo := repository.NewPlanRepository(pool)
	settingsRepo := repository.NewCachedSettingsRepository(
		repository.NewSettingsRepository(pool),
		redis,
		cfg.Telegram.SettingsCacheTTL(),
		logger,
	)

	bot := botapi.NewClient(cfg.Telegram.BotAPIBaseURL, cfg.Telegram.BotAPITimeout(), cfg.Telegram.BotAPIRPS)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	welcome := worker.NewWelcomeWorker(
		service.NewWelcomeSender(settingsRepo, bot),
		cfg.Telegram.WelcomeWorkers,
		cfg.Telegram.WelcomeQueueSize,
		logger,
	)
	welcome.Start(ctx)
	service.NewNotificationService(dispatcher, welcome, logger).RegisterHandlers()

	authService := service.NewAuthService(*cfg)
	resolver := service.NewTelegramResolver(*cfg, service.ResolverDependencies{
		UserRepo:     userRepo,
		PlanRepo:     planRepo,
		SettingsRepo: settingsRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	settingsService := service.NewTelegramSettingsService(settingsRepo, userRepo, bot, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Telegram: handlers.NewTelegramHandler(handlers.TelegramHandlerDeps{
			Resolver:  resolver,
			Settings:  settingsService,
			Sessions:  authService,
			Metrics:   metrics,
			Logger:    logger,
			PublicURL: cfg.App.PublicURL,
		}),
		AdminTelegram:  handlers.NewAdminTelegramHandler(settingsService, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	welcome.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
