package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyalty-ledger/config"
	httpHandler "loyalty-ledger/internal/adapter/http/handler"
	boltStorage "loyalty-ledger/internal/adapter/storage/bolt"
	pgStorage "loyalty-ledger/internal/adapter/storage/postgres"
	redisStorage "loyalty-ledger/internal/adapter/storage/redis"
	"loyalty-ledger/internal/connectivity"
	"loyalty-ledger/internal/core/ports"
	"loyalty-ledger/internal/metrics"
	"loyalty-ledger/internal/service"
	"loyalty-ledger/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("api", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Loyalty Ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize the durable offline queue store
	queueStore, err := boltStorage.Open(cfg.Queue.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Queue.Path).Msg("Failed to open queue store")
	}
	defer queueStore.Close()

	// Initialize repositories
	serialRepo := pgStorage.NewSerialRepo(pool)
	benefitRepo := pgStorage.NewBenefitRepo(pool)
	accountRepo := pgStorage.NewAccountRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	suspiciousRepo := pgStorage.NewSuspiciousActivityRepo(pool)
	staffRepo := pgStorage.NewStaffRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	activityTracker := redisStorage.NewActivityTracker(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	appMetrics := metrics.New(registry)

	// Guardrail settings snapshot store
	settings := config.NewSettingsStore(cfg.Guardrails)

	// Health checkers and connectivity probing
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)
	monitor := connectivity.NewMonitor(true, logger.New("connectivity", cfg.Log.Level, cfg.Log.Pretty))
	prober := connectivity.NewProber(monitor, pgHealth, cfg.Connectivity.ProbeInterval,
		logger.New("connectivity", cfg.Log.Level, cfg.Log.Pretty))
	go prober.Run(ctx)

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(staffRepo, tokenSvc, logger.New("auth", cfg.Log.Level, cfg.Log.Pretty))
	ledgerSvc := service.NewLedgerService(
		serialRepo,
		benefitRepo,
		accountRepo,
		ledgerRepo,
		transactor,
		logger.New("ledger", cfg.Log.Level, cfg.Log.Pretty),
	)
	guardrailSvc := service.NewGuardrailService(
		activityTracker,
		suspiciousRepo,
		settings,
		logger.New("guardrails", cfg.Log.Level, cfg.Log.Pretty),
	)
	queueSvc := service.NewQueueService(
		ledgerSvc,
		queueStore,
		monitor,
		appMetrics,
		logger.New("queue", cfg.Log.Level, cfg.Log.Pretty),
	)
	go queueSvc.Run(ctx)
	facadeSvc := service.NewFacadeService(
		queueSvc,
		guardrailSvc,
		appMetrics,
		cfg.Loyalty.PointsPerVisit,
		logger.New("facade", cfg.Log.Level, cfg.Log.Pretty),
	)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		FacadeSvc:      facadeSvc,
		QueueSvc:       queueSvc,
		Monitor:        monitor,
		AccountRepo:    accountRepo,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Gatherer:       registry,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
