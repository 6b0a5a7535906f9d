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

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/drivopay/payments/internal/api"
	"github.com/drivopay/payments/internal/config"
	"github.com/drivopay/payments/internal/events"
	"github.com/drivopay/payments/internal/gateway"
	"github.com/drivopay/payments/internal/handlers"
	"github.com/drivopay/payments/internal/interfaces"
	"github.com/drivopay/payments/internal/middleware"
	"github.com/drivopay/payments/internal/repository"
	"github.com/drivopay/payments/internal/service"
	"github.com/drivopay/payments/internal/signature"
	"github.com/drivopay/payments/internal/telemetry"
)

const serviceName = "drivopay-payments"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize telemetry
	if err := telemetry.InitTelemetry(serviceName, telemetry.Options{
		TracingEnabled: cfg.Telemetry.Enabled,
		JaegerEndpoint: cfg.Telemetry.JaegerEndpoint,
		Development:    !cfg.App.IsProduction(),
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting DrivoPay payments", zap.String("env", cfg.App.Env))

	// Saga store
	var sagas interfaces.PayoutSagaRepository
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		repo := repository.NewPayoutSagaRepository(db)
		if err := repo.InitDB(); err != nil {
			telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		sagas = repo
	} else {
		telemetry.Logger.Warn("DATABASE_URL not set, payout sagas are kept in memory")
		sagas = repository.NewMemoryPayoutSagaRepository()
	}

	// Locks and webhook dedup
	var (
		locker     interfaces.Locker
		eventStore interfaces.EventStore
	)
	if cfg.Redis.URL != "" {
		redisClient := redis.NewClient(redisOptions(cfg.Redis.URL))
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			telemetry.Logger.Warn("Redis not reachable at startup", zap.Error(err))
		}
		cancel()

		locker = repository.NewRedisLocker(redisClient)
		eventStore = repository.NewRedisEventStore(redisClient)
	} else {
		telemetry.Logger.Warn("REDIS_URL not set, using in-process locks and webhook dedup")
		locker = repository.NewMemoryLocker()
		eventStore = repository.NewMemoryEventStore()
	}

	// Payout state events
	var stateEvents interfaces.EventPublisher = events.NoopPublisher{}
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(brokers)
		defer kafkaPublisher.Close()
		stateEvents = kafkaPublisher
	}

	// Webhook fan-out
	var webhookEvents interfaces.EventPublisher = events.NoopPublisher{}
	if cfg.Nats.URL != "" {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		webhookEvents = events.NewNatsPublisher(nc)
	}

	if cfg.Razorpay.PayoutAccountNumber == "" {
		telemetry.Logger.Warn("RAZORPAYX_ACCOUNT_NUMBER not set, payouts will be rejected by the gateway")
	}

	gw := gateway.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.Timeout)
	verifier := signature.NewVerifier(cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)

	payouts := service.NewPayoutService(gw, sagas, locker, stateEvents, service.PayoutConfig{
		SourceAccount: cfg.Razorpay.PayoutAccountNumber,
		StateTopic:    cfg.Kafka.PayoutStateTopic,
	})
	dispatcher := service.NewWebhookDispatcher(verifier, eventStore, webhookEvents, service.WebhookConfig{
		SubjectPrefix: cfg.Nats.WebhookPrefix,
		DedupTTL:      cfg.Webhook.DedupTTL,
	})

	r, err := api.NewRouter(api.Handlers{
		Payments: handlers.NewPaymentHandler(
			service.NewOrderService(gw),
			service.NewQRService(gw),
			service.NewVerificationService(verifier),
		),
		Payouts:  handlers.NewPayoutHandler(payouts),
		Webhooks: handlers.NewWebhookHandler(dispatcher),
	}, middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, 10*time.Minute), cfg.App.TrustedProxies)
	if err != nil {
		return err
	}

	// Setup HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("DrivoPay payments starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
	return nil
}

// redisOptions accepts a redis:// URL or a bare host:port.
func redisOptions(url string) *redis.Options {
	if opts, err := redis.ParseURL(url); err == nil {
		return opts
	}
	return &redis.Options{Addr: url}
}
