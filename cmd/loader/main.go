package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/adapter/storage"
	"github.com/rl1809/stock-replenishment/internal/config"
	"github.com/rl1809/stock-replenishment/internal/core/service"
	"github.com/rl1809/stock-replenishment/internal/dataset"
	"github.com/rl1809/stock-replenishment/internal/logger"
	"github.com/rl1809/stock-replenishment/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ds, err := dataset.ReadDir(cfg.Loader.DataDir, time.Now)
	if err != nil {
		zl.Fatal("failed to read dataset", zap.String("dir", cfg.Loader.DataDir), zap.Error(err))
	}
	zl.Info("dataset read",
		zap.Int("products", len(ds.Products)),
		zap.Int("stores", len(ds.Stores)),
		zap.Int("inventory", len(ds.Inventory)))

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		zl.Fatal("failed to open mysql", zap.Error(err))
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		zl.Fatal("failed to ping mysql", zap.Error(err))
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		zl.Fatal("failed to ensure schema", zap.Error(err))
	}

	loader := service.NewLoaderService(mysqlAdapter, cfg.Loader, metrics.New(nil), zl)
	reports, err := loader.Load(ctx, ds)
	for _, r := range reports {
		zl.Info("collection loaded",
			zap.String("collection", string(r.Collection)),
			zap.Int("read", r.Read),
			zap.Int("inserted", r.Inserted),
			zap.Int("failed_batches", r.FailedBatches))
	}
	if err != nil {
		zl.Error("initial load aborted", zap.Error(err))
		os.Exit(1)
	}
}
