package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/dago-node-formula/internal/batch"
	"github.com/aescanero/dago-node-formula/internal/config"
	"github.com/aescanero/dago-node-formula/internal/eval/cel"
	"github.com/aescanero/dago-node-formula/internal/eval/template"
	"github.com/aescanero/dago-node-formula/internal/store"
	"github.com/aescanero/dago-node-formula/internal/worker"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting formula worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)

	// Log configuration (without sensitive data)
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	catalog, err := template.NewCatalog(template.NewEngine(), nil)
	if err != nil {
		logger.Fatal("failed to create message catalog", zap.Error(err))
	}

	service, err := batch.NewService(batch.Options{
		Limits:        cfg.FormulaLimits(),
		Concurrency:   cfg.BatchConcurrency,
		AdmissionRule: cfg.AdmissionRule,
		Rules:         cel.NewEvaluator(),
		Catalog:       catalog,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create batch service", zap.Error(err))
	}
	logger.Info("batch service initialized")

	// Redis is only needed for streams and stored results. The interface
	// stays nil when disabled so the HTTP server skips its checks.
	var (
		redisClient *redis.Client
		cmdable     redis.Cmdable
		results     *store.ResultStore
		w           *worker.Worker
	)
	if cfg.StreamsEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cmdable = redisClient

		// Test Redis connection
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

		results = store.NewResultStore(redisClient, cfg.ResultTTL, logger)

		w = worker.NewWorker(cfg, redisClient, service, results, logger)
		if err := w.Start(); err != nil {
			logger.Fatal("failed to start worker", zap.Error(err))
		}
	} else {
		logger.Warn("streams disabled, serving http only")
	}

	server := worker.NewServer(cfg.HTTPPort, cmdable, service, results, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("failed to start http server", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("formula worker running, press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutdown signal received, stopping worker")

	if err := server.Stop(); err != nil {
		logger.Error("failed to stop http server", zap.Error(err))
	}

	if w != nil {
		if err := w.Stop(); err != nil {
			logger.Error("failed to stop worker", zap.Error(err))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis connection", zap.Error(err))
		}
	}

	logger.Info("worker stopped gracefully")
}

// initLogger initializes the logger
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
