package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/stock-replenishment/internal/adapter/handler"
	"github.com/rl1809/stock-replenishment/internal/adapter/predictor"
	"github.com/rl1809/stock-replenishment/internal/adapter/storage"
	"github.com/rl1809/stock-replenishment/internal/config"
	"github.com/rl1809/stock-replenishment/internal/core/service"
	"github.com/rl1809/stock-replenishment/internal/logger"
	"github.com/rl1809/stock-replenishment/internal/metrics"
	"github.com/rl1809/stock-replenishment/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	if cfg.Tracing.Enabled {
		shutdown, err := setupTracing(cfg.Tracing)
		if err != nil {
			zl.Fatal("failed to set up tracing", zap.Error(err))
		}
		defer shutdown(context.Background())
		zl.Info("tracing enabled", zap.String("service", cfg.Tracing.ServiceName))
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		zl.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		zl.Fatal("failed to ping mysql", zap.Error(err))
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		zl.Fatal("failed to ensure schema", zap.Error(err))
	}
	zl.Info("connected to mysql")

	// Initialize Redis. Without it the catalog is read uncached and batch
	// uploads are not deduplicated.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	var (
		cache   port.CacheRepository
		catalog port.Catalog = mysqlAdapter
	)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.Redis.IdempotencyTTL)
	if err := redisAdapter.Ping(ctx); err != nil {
		zl.Warn("redis unavailable, running without cache", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		cache = redisAdapter
		catalog = storage.NewCachedCatalog(mysqlAdapter, redisAdapter, cfg.Redis.CatalogTTL, zl)
		zl.Info("connected to redis")
	}

	demandModel := loadPredictor(ctx, cfg.Model, zl)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	forecast := service.NewForecastService(mysqlAdapter, catalog, demandModel, m, nil, zl)
	svc := handler.Services{
		Inventory: service.NewInventoryService(mysqlAdapter, m, zl),
		Alerts:    service.NewAlertService(mysqlAdapter, catalog, zl),
		Forecast:  forecast,
		Reorder:   service.NewReorderService(mysqlAdapter, catalog, forecast, nil, zl),
		Batch:     service.NewBatchService(mysqlAdapter, cache, cfg.Batch, m, zl),
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogger(zl.Named("grpc"))))
	handler.RegisterAnalyticsService(grpcServer, handler.NewGRPCHandler(svc, zl))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(handler.AnalyticsServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		zl.Fatal("failed to listen", zap.String("addr", cfg.Server.GRPCAddr), zap.Error(err))
	}

	go func() {
		zl.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(svc, cfg.Server.MaxUploadBytes, zl)
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      handler.NewRouter(httpHandler, metricsHandler, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zl.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr), zap.Bool("model_loaded", forecast.ModelLoaded()))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			zl.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	zl.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	zl.Info("gRPC server stopped")

	rdb.Close()
	db.Close()
	zl.Info("connections closed")
}

// loadPredictor returns nil when the configured model cannot be loaded;
// forecast and reorder requests then report the model as unavailable.
func loadPredictor(ctx context.Context, cfg config.ModelConfig, zl *zap.Logger) port.Predictor {
	var (
		p   port.Predictor
		err error
	)
	switch cfg.Kind {
	case "remote":
		var remote *predictor.RemotePredictor
		remote, err = predictor.NewRemotePredictor(ctx, cfg.URL, cfg.Timeout, nil)
		if err == nil {
			p = remote
		}
	default:
		var linear *predictor.LinearModel
		linear, err = predictor.LoadLinearModel(cfg.ArtifactPath)
		if err == nil {
			p = linear
		}
	}
	if err != nil {
		zl.Warn("demand model not loaded, forecasting disabled",
			zap.String("kind", cfg.Kind),
			zap.Error(err))
		return nil
	}
	zl.Info("demand model loaded", zap.String("kind", cfg.Kind), zap.Int("features", len(p.Schema())))
	return p
}

func setupTracing(cfg config.TracingConfig) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
