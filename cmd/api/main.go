package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/davidleathers/payment-fraud-backend/internal/api/rest"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/cache"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/config"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/database"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/repository"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/payment-fraud-backend/internal/metrics"
	"github.com/davidleathers/payment-fraud-backend/internal/service/fraud"
	"github.com/davidleathers/payment-fraud-backend/internal/service/mlscoring"
	"github.com/davidleathers/payment-fraud-backend/internal/service/profiling"
	"github.com/davidleathers/payment-fraud-backend/internal/service/rules"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		metricsAddr = flag.String("metrics-addr", ":9090", "Prometheus metrics listen address")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := telemetry.SetupLogger(cfg.LogLevel)

	provider, err := telemetry.Initialize(ctx, &telemetry.Config{
		ServiceName:    "fds-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create zap logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.Connect(ctx, &cfg.Database, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(&cfg.Redis, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	registry, err := metrics.NewRegistry("fds")
	if err != nil {
		log.Fatalf("Failed to create metrics registry: %v", err)
	}

	users := repository.NewUserRepository(db)
	transactions := repository.NewTransactionRepository(db)
	behaviors := repository.NewBehaviorRepository(db)
	alerts := repository.NewAlertRepository(db)

	aggregator := profiling.NewAggregator(transactions, behaviors, logger)
	worker := profiling.NewWorker(aggregator, 256, 4, logger)
	defer worker.Stop()

	scorer := mlscoring.NewNeuralScorer(cfg.ML.ModelPath, logger)

	svc := fraud.NewService(fraud.Deps{
		Users:        users,
		Transactions: transactions,
		Alerts:       alerts,
		Profiles:     aggregator,
		Scheduler:    worker,
		Velocity:     cache.NewVelocityTracker(redisClient, zapLogger),
		RuleEngine: rules.NewEngine(rules.Config{
			MaxTransactionAmount:   cfg.Fraud.MaxTransactionAmount,
			MaxTransactionsPerHour: cfg.Fraud.MaxTransactionsPerHour,
			MaxTransactionsPerDay:  cfg.Fraud.MaxTransactionsPerDay,
		}),
		Scorer:       scorer,
		Metrics:      registry,
		Logger:       logger,
		ModelTimeout: cfg.ML.ScoreTimeout,
	})

	go startMetricsServer(ctx, *metricsAddr, logger)

	server := rest.NewServer(cfg, svc, db, redisClient, registry, logger)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
