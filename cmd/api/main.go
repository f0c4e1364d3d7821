package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-chat/internal/api/http"
	"github.com/spec-kit/support-chat/internal/api/http/handlers"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/chat"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/persistence"
	"github.com/spec-kit/support-chat/internal/realtime"
	"github.com/spec-kit/support-chat/internal/repository"
	"github.com/spec-kit/support-chat/internal/service"
	"github.com/spec-kit/support-chat/internal/worker"
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

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	checks := map[string]handlers.Pinger{"postgres": pg}

	hub := realtime.NewHub()
	var signals chat.SignalChannel = hub
	if cfg.Chat.SignalBackend == config.SignalBackendRedis {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		signals = realtime.NewRedisSignals(redis.Client, cfg.Chat.SignalPrefix, logger)
		checks["redis"] = redis
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, logger)

	var (
		feed          chat.ChangeFeed = hub
		stores        service.StoreFactory
		ticketService = service.NewTicketService(service.TicketDependencies{})
	)
	if pg.Enabled() {
		pool := pg.PoolHandle()
		feed = realtime.NewPGFeed(pool, logger)
		stores = func(viewer service.Viewer) chat.Store {
			viewerID := viewer.ID
			return repository.NewTranscriptStore(pool, viewer.Role, &viewerID)
		}
		ticketService = service.NewTicketService(service.TicketDependencies{
			TicketRepo:  repository.NewTicketRepository(pool),
			MessageRepo: repository.NewTicketMessageRepository(pool),
			HistoryRepo: repository.NewTicketHistoryRepository(pool),
		})
	}

	chatService := service.NewChatService(cfg.Chat, service.ChatDependencies{
		Stores:  stores,
		Feed:    feed,
		Signals: signals,
		Events:  dispatcher,
		Metrics: metrics,
		Logger:  logger,
	})
	reaperDone := worker.StartSessionReaper(ctx, chatService, time.Minute, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(cfg.Auth, tokens)
	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("AUTH_ADMIN_PASSWORD_HASH not set; admin login disabled")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	maxWait := cfg.App.RequestTimeout() - 5*time.Second
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks, chatService.Count),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewAdminTicketsHandler(ticketService),
		Chat:           handlers.NewChatHandler(chatService, maxWait),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-reaperDone
	if err := chatService.Shutdown(); err != nil {
		logger.Warn("closing ticket views", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
