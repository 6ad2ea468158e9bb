package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/dao-indexer/internal/application/accounting"
	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
	"github.com/bimakw/dao-indexer/internal/infrastructure/database"
	"github.com/bimakw/dao-indexer/internal/infrastructure/ethereum"
	"github.com/bimakw/dao-indexer/internal/presentation/handlers"
	"github.com/bimakw/dao-indexer/internal/presentation/middleware"
)

func main() {
	backfillDao := flag.String("backfill-dao", "", "replay a block range for one DAO and exit")
	backfillFrom := flag.Int64("backfill-from", 0, "first block of the backfill range")
	backfillTo := flag.Int64("backfill-to", 0, "last block of the backfill range")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log)
	defer logger.Sync()

	daos, err := config.LoadDAOs(cfg.Indexer.DaoConfigPath)
	if err != nil {
		logger.Fatal("Failed to load DAO config", zap.Error(err))
	}
	registry := config.NewRegistry(daos)

	ids := make([]string, len(daos))
	for i, d := range daos {
		ids[i] = string(d.ID)
	}
	logger.Info("Starting dao-indexer",
		zap.Strings("daos", ids),
		zap.String("rpc_url", cfg.Ethereum.RPCURL),
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// Connect to Ethereum node
	ethClient, err := ethereum.NewClient(cfg.Ethereum, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Ethereum node", zap.Error(err))
	}
	defer ethClient.Close()

	metadata := ethereum.NewMetadataFetcher(ethClient, logger)
	for _, dao := range daos {
		if err := metadata.VerifyDAO(ctx, dao); err != nil {
			logger.Fatal("DAO config does not match the token contract", zap.String("dao", string(dao.ID)), zap.Error(err))
		}
	}

	fetcher, err := ethereum.NewFetcher(ethClient, daos, cfg.Indexer, logger)
	if err != nil {
		logger.Fatal("Failed to create fetcher", zap.Error(err))
	}

	// Redis is optional; the indexer only uses it to drop stale API responses
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, cache invalidation disabled", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	store := database.NewLedgerStore(db.DB())
	stateRepo := database.NewIndexerStateRepo(db.DB())

	processors := make([]*accounting.Processor, len(daos))
	for i, dao := range daos {
		processors[i] = accounting.NewProcessor(dao, store, logger)
	}

	indexerService := services.NewIndexerService(fetcher, processors, stateRepo, redisCache, cfg.Indexer, logger)

	if *backfillDao != "" {
		runBackfill(ctx, indexerService, *backfillDao, *backfillFrom, *backfillTo, logger)
		return
	}

	middleware.NewIndexerMetrics(indexerService.GetMetrics)

	// Start indexer
	if err := indexerService.Start(ctx); err != nil {
		logger.Fatal("Failed to start indexer", zap.Error(err))
	}

	// Start metrics server
	var cacheChecker handlers.HealthChecker
	if redisCache != nil {
		cacheChecker = redisCache
	}
	healthHandler := handlers.NewHealthHandler(db, cacheChecker, stateRepo, registry)
	metricsServer := newMetricsServer(cfg.Indexer.MetricsPort, healthHandler)
	go func() {
		logger.Info("Starting metrics server", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping indexer...")

	// Graceful shutdown
	indexerService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", zap.Error(err))
	}

	logger.Info("Indexer stopped")
}

func runBackfill(ctx context.Context, indexer *services.IndexerService, dao string, from, to int64, logger *zap.Logger) {
	daoID, err := entities.ParseDaoID(dao)
	if err != nil {
		logger.Fatal("Invalid backfill dao", zap.Error(err))
	}
	if from < 0 || to < from {
		logger.Fatal("Invalid backfill range", zap.Int64("from", from), zap.Int64("to", to))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting backfill", zap.String("dao", string(daoID)), zap.Int64("from", from), zap.Int64("to", to))
	if err := indexer.Backfill(ctx, daoID, from, to); err != nil {
		logger.Fatal("Backfill failed", zap.Error(err))
	}
	logger.Info("Backfill completed", zap.String("dao", string(daoID)))
}

func setupLogger(cfg config.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := zapConfig.Build()
	return logger
}

func newMetricsServer(port int, health *handlers.HealthHandler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", health.Health)
	mux.HandleFunc("/ready", health.Ready)
	mux.HandleFunc("/live", health.Live)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
