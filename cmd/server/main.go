package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/kevin07696/payment-transactions/internal/adapters/adyen"
	"github.com/kevin07696/payment-transactions/internal/bootstrap"
	"github.com/kevin07696/payment-transactions/internal/config"
	adminHandler "github.com/kevin07696/payment-transactions/internal/handlers/admin"
	cronHandler "github.com/kevin07696/payment-transactions/internal/handlers/cron"
	paymentHandler "github.com/kevin07696/payment-transactions/internal/handlers/payment"
	"github.com/kevin07696/payment-transactions/internal/worker"
	"github.com/kevin07696/payment-transactions/pkg/logging"
	"github.com/kevin07696/payment-transactions/pkg/middleware"
	"github.com/kevin07696/payment-transactions/pkg/observability"
	"github.com/kevin07696/payment-transactions/pkg/shutdown"
)

func main() {
	configPath := kingpin.Flag("config", "Path to the application config file").Short('c').Default("").String()
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Encoding, cfg.Logger.Development)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger = logger.With(zap.String("service", cfg.Application))

	logger.Info("Starting payment transaction service",
		zap.Int("http_port", cfg.Server.HTTPPort),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	sm := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	sm.RegisterNoErr("database", deps.Close)

	if cfg.Database.PoolMonitorInterval > 0 {
		deps.DB.StartPoolMonitoring(ctx, cfg.Database.PoolMonitorInterval)
	}

	// Post-processing sweep, also triggered early by acquirer-confirmed refunds
	postProcessor := worker.NewPostProcessor(deps.Payments, cfg.PostProcessing.Interval, logger)
	deps.Payments.SetPostProcessingTrigger(postProcessor.Trigger)
	sweepWorker := shutdown.NewBackgroundWorker("post-processing", logger)
	sweepWorker.Start(postProcessor.Start)
	sm.Register("post-processing worker", sweepWorker.Shutdown)

	healthChecker := observability.NewHealthChecker(deps.DB)
	if pinger, ok := deps.Locker.(observability.Pinger); ok {
		healthChecker.AddCheck("redis", pinger)
	}
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	sm.Register("metrics server", func(context.Context) error {
		return observability.ShutdownMetricsServer(metricsServer)
	})

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
	sm.RegisterNoErr("rate limiter", rateLimiter.Shutdown)

	// Customer-facing endpoints are rate limited per client IP
	publicMux := http.NewServeMux()
	paymentHandler.NewHandler(deps.Payments, logger).Register(publicMux)

	mux := http.NewServeMux()
	mux.Handle("/payment/", rateLimiter.Middleware(publicMux))

	// Provider webhooks must never be throttled or Adyen keeps retrying
	verifier := adyen.NewVerifier(deps.DB.Store().Acquirers(), deps.Keyring, logger)
	paymentHandler.NewAdyenNotificationHandler(deps.Payments, verifier, logger).Register(mux)

	cronHandler.NewPostProcessingHandler(deps.Payments, logger, cfg.Cron.Secret).Register(mux)
	adminHandler.NewTransactionHandler(deps.Payments, logger, cfg.Admin.Secret).Register(mux)

	tracker := shutdown.NewInFlightTracker("http", logger)
	handler := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery(logger),
		observability.HTTPMetricsMiddleware,
		tracker.Middleware,
		middleware.Timeout(cfg.Server.WriteTimeout, logger),
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	sm.Register("http server", func(ctx context.Context) error {
		if err := tracker.Shutdown(ctx); err != nil {
			logger.Warn("In-flight requests did not drain", zap.Error(err))
		}
		return httpServer.Shutdown(ctx)
	})

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	sm.Wait(ctx)
	if err := sm.Shutdown(); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		os.Exit(1)
	}
}
