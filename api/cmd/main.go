package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/audit"
	"github.com/baechuer/real-time-ressys/booking-service/internal/config"
	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/catalog"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/postgres"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/rabbitmq"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/booking-service/internal/payment/stripe"
	"github.com/baechuer/real-time-ressys/booking-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/booking-service/internal/security"
	"github.com/baechuer/real-time-ressys/booking-service/internal/service"
	"github.com/baechuer/real-time-ressys/booking-service/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("service", "booking-service").
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLog := audit.New(logger.Logger)

	// ---- Storage ----
	var (
		events domain.EventCatalog
		ledger domain.Ledger
		repo   *postgres.Repository
	)
	switch cfg.Store {
	case config.StoreMemory:
		store := memory.NewStore()
		events, ledger = store, store
		log.Warn().Msg("using in-memory store; data is lost on restart")

	default:
		dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres pool create failed")
		}
		defer dbPool.Close()

		{
			pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
			err := dbPool.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Fatal().Err(err).Msg("postgres ping failed")
			}
			log.Info().Msg("postgres connected")
		}

		sqlDB, err := sql.Open("postgres", cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("catalog db open failed")
		}
		defer sqlDB.Close()
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)

		repo = postgres.New(dbPool)
		events, ledger = catalog.New(sqlDB), repo
	}

	// ---- Redis (rate limit) ----
	var limiter domain.RateLimiter
	if cfg.RLEnabled {
		cache := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		err := cache.Ping(pingCtx)
		cancel()
		if err != nil {
			// per-instance limiter is better than none
			log.Warn().Err(err).Msg("redis ping failed, using in-process rate limit")
			_ = cache.Close()
		} else {
			defer cache.Close()
			limiter = cache
			log.Info().Msg("redis connected")
		}
	}

	// ---- Payment provider ----
	stripeCfg := stripe.Config{
		SecretKey:     cfg.Payment.StripeSecretKey,
		WebhookSecret: cfg.Payment.StripeWebhookSecret,
		APIURL:        cfg.Payment.StripeAPIURL,
		Timeout:       cfg.Payment.ProviderTimeout,
	}

	// ---- Application services ----
	joins := service.NewJoinService(events, ledger, stripe.NewCheckout(stripeCfg), auditLog, service.PaymentOptions{
		Currency:   cfg.Payment.Currency,
		SuccessURL: cfg.Payment.SuccessURL,
		CancelURL:  cfg.Payment.CancelURL,
		IntentTTL:  cfg.Payment.IntentTTL,
	})
	eventSvc := service.NewEventService(events, auditLog)
	hooks := service.NewWebhookService(stripe.NewVerifier(stripeCfg), ledger, auditLog)

	service.StartIntentSweeper(rootCtx, ledger, cfg.Payment.SweepInterval, auditLog)
	log.Info().Dur("interval", cfg.Payment.SweepInterval).Msg("intent sweeper started")

	// ---- Outbox worker ----
	if repo != nil && cfg.OutboxEnabled {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		switch {
		case err != nil && cfg.AppEnv == "dev":
			log.Warn().Err(err).Msg("rabbitmq unavailable, outbox rows will queue until restart")
		case err != nil:
			log.Fatal().Err(err).Msg("rabbitmq connect failed")
		default:
			defer pub.Close()
			repo.StartOutboxWorker(rootCtx, pub, auditLog, 2*time.Second)
			log.Info().Msg("outbox worker started")
		}
	}

	// ---- Router ----
	httpHandler := rest.NewRouter(rest.RouterDeps{
		Handler:  rest.NewHandler(joins, eventSvc, hooks),
		Verifier: security.NewHS256Verifier(cfg.JWTSecret, cfg.JWTIssuer),
		Limiter:  limiter,
		RateLimit: rest.RateLimitOptions{
			Enabled: cfg.RLEnabled,
			Limit:   cfg.RLLimit,
			Window:  cfg.RLWindow,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// a join may wait on the provider for PAYMENT_PROVIDER_TIMEOUT
		WriteTimeout: cfg.Payment.ProviderTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
