package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/auth"
	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/integrationlog"
	"leadflow_backend/internal/leads"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/notification/relay"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/internal/webhook"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)
	startedAt := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	publisher := initRelay(ctx, cfg, log)

	registry, err := webhook.DefaultRegistry().WithAliases(cfg.GetWebhookAliases())
	if err != nil {
		log.Error("invalid webhook platform aliases", "error", err)
		panic("invalid webhook platform aliases: " + err.Error())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cfg, val, log)
	logModule := integrationlog.NewModule(pool)
	leadsModule, err := leads.NewModule(pool, eventBus, val, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}
	webhookModule := webhook.NewModule(logModule.Repository(), leadsModule.Repository(), registry, eventBus, cfg, log)

	// Notification module subscribes to domain events and serves realtime transports
	notificationModule := notification.New(
		eventBus,
		leadsModule.Repository(),
		authModule.Repository(),
		email.NewSender(cfg),
		publisher,
		val,
		log,
	)
	notificationModule.RegisterHandlers(eventBus)
	defer func() { _ = notificationModule.Close() }()

	// Without Redis the archival sweep runs in-process instead of in cmd/scheduler.
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; running archive sweep in-process")
		sweeper := scheduler.NewArchiveSweeper(leadsModule.Service(), log, cfg.GetLeadArchiveAfter(), cfg.GetLeadArchiveInterval())
		go sweeper.Run(ctx)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:    cfg,
		Logger:    log,
		Health:    db.NewPoolAdapter(pool),
		StartedAt: startedAt,
		EventBus:  eventBus,
		Modules: []apphttp.Module{
			authModule,
			leadsModule,
			webhookModule,
			logModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Realtime streams never finish on their own.
		notificationModule.Broadcaster().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown error", "error", err)
		}
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRelay(ctx context.Context, cfg config.RelayConfig, log *logger.Logger) relay.Publisher {
	if !cfg.IsRelayEnabled() {
		log.Info("RABBITMQ_URL not configured; event relay disabled")
		return relay.NoopPublisher{}
	}

	var publisher *relay.AMQPPublisher
	if err := withRetry(ctx, log, "rabbitmq connection", 5, 2*time.Second, func() error {
		p, err := relay.Dial(cfg.GetRabbitMQURL(), cfg.GetRabbitMQExchange())
		if err != nil {
			return err
		}
		publisher = p
		return nil
	}); err != nil {
		log.Error("event relay unavailable; continuing without it", "error", err)
		return relay.NoopPublisher{}
	}

	log.Info("event relay connected", "exchange", cfg.GetRabbitMQExchange())
	return publisher
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
