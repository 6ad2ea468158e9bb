package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
	"github.com/bimakw/dao-indexer/internal/infrastructure/database"
	"github.com/bimakw/dao-indexer/internal/presentation/handlers"
	"github.com/bimakw/dao-indexer/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting dao-indexer API",
		zap.Int("port", cfg.API.Port),
	)

	daos, err := config.LoadDAOs(cfg.Indexer.DaoConfigPath)
	if err != nil {
		logger.Fatal("Failed to load DAO config", zap.Error(err))
	}
	registry := config.NewRegistry(daos)

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis cache (optional)
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Create repositories
	tokenRepo := database.NewTokenRepo(db.DB())
	transferRepo := database.NewTransferRepo(db.DB())
	accountRepo := database.NewAccountRepo(db.DB())
	metricsRepo := database.NewMetricsRepo(db.DB())
	proposalRepo := database.NewProposalRepo(db.DB())
	stateRepo := database.NewIndexerStateRepo(db.DB())

	// Create services
	tokenService := services.NewTokenService(tokenRepo, registry, redisCache, logger)
	supplyService := services.NewSupplyService(tokenRepo, metricsRepo, accountRepo, registry, redisCache, logger)
	delegatesService := services.NewDelegatesService(accountRepo, registry, redisCache, logger)
	holdersService := services.NewHoldersService(accountRepo, registry, redisCache, logger)
	transferService := services.NewTransferService(transferRepo, registry, redisCache, logger)
	proposalService := services.NewProposalService(proposalRepo, registry, redisCache, logger)
	statsService := services.NewStatsService(transferRepo, accountRepo, registry, redisCache, logger)
	portfolioService := services.NewPortfolioService(accountRepo, transferRepo, registry, redisCache, logger)

	var cacheChecker handlers.HealthChecker
	if redisCache != nil {
		cacheChecker = redisCache
	}
	healthHandler := handlers.NewHealthHandler(db, cacheChecker, stateRepo, registry)

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)

	// Health endpoints (no rate limiting)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))

		handlers.NewTokenHandler(tokenService, logger).RegisterRoutes(r)
		handlers.NewSupplyHandler(supplyService, logger).RegisterRoutes(r)
		handlers.NewDelegatesHandler(delegatesService, logger).RegisterRoutes(r)
		handlers.NewHoldersHandler(holdersService, logger).RegisterRoutes(r)
		handlers.NewTransferHandler(transferService, logger).RegisterRoutes(r)
		handlers.NewProposalHandler(proposalService, logger).RegisterRoutes(r)
		handlers.NewStatsHandler(statsService, logger).RegisterRoutes(r)
		handlers.NewPortfolioHandler(portfolioService, logger).RegisterRoutes(r)
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
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

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := zapConfig.Build()
	return logger
}
