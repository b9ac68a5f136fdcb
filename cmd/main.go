package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"product-catalog-engine/internal/api"
	"product-catalog-engine/internal/cart"
	"product-catalog-engine/internal/catalog"
	"product-catalog-engine/internal/config"
	"product-catalog-engine/internal/domain"
	"product-catalog-engine/internal/engine"
	"product-catalog-engine/internal/loader"
	"product-catalog-engine/internal/metrics"
	"product-catalog-engine/internal/store"
)

const (
	defaultAppName = "ProductCatalogEngine"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found or failed to load, relying on system environment")
	}

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Error loading configuration: %v", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	logger.Info("starting service", zap.String("data_source", cfg.DataSource), zap.String("log_level", cfg.LogLevel))

	// --- Product Source ---
	source, closers, err := buildSource(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize product source", zap.Error(err))
	}

	// --- Engine ---
	catalogStore := catalog.NewStore(cfg.Catalog.DefaultPageSize, logger)
	cartAgg := cart.NewAggregator(logger)
	loads := loader.NewController(domain.NewValidator(), logger)
	eng := engine.New(catalogStore, cartAgg, loads, source, engine.Config{
		RecommendationLimit: cfg.Catalog.RecommendationLimit,
		VirtualizeThreshold: cfg.Catalog.VirtualizeThreshold,
	}, logger)

	// --- Initialize API Handlers ---
	httpAPIHandler := api.NewHTTPHandler(eng, logger)
	grpcAPIHandler := api.NewGRPCHandler(eng, logger)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger)
	httpRouter.Handle("/metrics", metrics.Handler())
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		logger.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(logger, grpcAPIHandler, eng)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		logger.Fatal("failed to listen for gRPC", zap.String("port", cfg.GrpcServer.Port), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatal("gRPC server Serve error", zap.Error(err))
		}
		logger.Info("gRPC server has stopped")
	}()

	// --- Initial Load ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Catalog.InitialLoadTimeout)
		defer cancel()
		if err := eng.LoadAll(ctx); err != nil {
			logger.Warn("initial load incomplete", zap.Error(err))
			return
		}
		logger.Info("initial load complete", zap.Int("items", eng.Catalog.ItemCount()))
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(logger, httpServer, grpcServer, closers, shutdownComplete)

	<-shutdownComplete
	logger.Info("service shutdown sequence finished")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.LogFormat == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level
	zapConfig.InitialFields = map[string]interface{}{
		"service":     defaultAppName,
		"environment": cfg.AppEnv,
	}
	return zapConfig.Build()
}

// buildSource opens the configured product source and, when REDIS_URL is
// set, fronts it with the Redis cache. The returned closers are released on
// shutdown.
func buildSource(cfg *config.Config, logger *zap.Logger) (store.ProductSource, []io.Closer, error) {
	var (
		source  store.ProductSource
		closers []io.Closer
	)

	switch cfg.DataSource {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("database connection established")
		pg := store.NewPostgresStore(db, logger)
		source = pg
		closers = append(closers, pg)
	default:
		source = store.NewMockSource(store.MockOptions{
			Count:                 cfg.Mock.ItemCount,
			Seed:                  cfg.Mock.Seed,
			CatalogLatency:        cfg.Mock.CatalogLatency,
			RecommendationLatency: cfg.Mock.RecommendationLatency,
			FailureRate:           cfg.Mock.FailureRate,
		}, logger)
		logger.Info("using generated product source", zap.Int("items", cfg.Mock.ItemCount), zap.Uint64("seed", cfg.Mock.Seed))
	}

	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, closers, err
		}
		rdb := redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache reads will fall back to the source", zap.Error(err))
		}
		source = store.NewCachedSource(source, rdb, cfg.Redis.CacheTTL, logger)
		closers = append(closers, rdb)
		logger.Info("catalog cache enabled", zap.Duration("ttl", cfg.Redis.CacheTTL))
	}
	return source, closers, nil
}

func setupBaseMiddleware(router *chi.Mux, logger *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Use(middleware.Timeout(60 * time.Second))
	logger.Info("base HTTP middleware registered")
}

func setupGRPCServer(logger *zap.Logger, grpcAPIHandler *api.GRPCHandler, eng *engine.Engine) *grpc.Server {
	s := grpc.NewServer()

	api.RegisterCatalogEngineServer(s, grpcAPIHandler)
	logger.Info("CatalogEngine gRPC service registered")

	hs := health.NewServer()
	api.WireHealth(hs, eng)
	grpc_health_v1.RegisterHealthServer(s, hs)
	logger.Info("gRPC health check service registered")

	reflection.Register(s)
	logger.Info("gRPC reflection service registered")

	return s
}

func waitForShutdown(
	logger *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	closers []io.Closer,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.Info("starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("error closing resource", zap.Error(err))
		}
	}

	logger.Info("graceful shutdown sequence completed")
}
