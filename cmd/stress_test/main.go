package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/adapter/storage"
	"github.com/rl1809/stock-replenishment/internal/config"
	"github.com/rl1809/stock-replenishment/internal/core/service"
	"github.com/rl1809/stock-replenishment/internal/metrics"
)

const (
	storeID       = "stress-store"
	productID     = "stress-product"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	// Reset the stress record to a known level
	if _, err := db.ExecContext(ctx, `DELETE FROM inventory WHERE store_id = ? AND product_id = ?`, storeID, productID); err != nil {
		log.Fatalf("failed to clear previous run: %v", err)
	}
	if _, err := mysqlAdapter.IncrementOrCreate(ctx, storeID, productID, initialStock); err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	inventory := service.NewInventoryService(mysqlAdapter, metrics.New(nil), zap.NewNop())

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for range totalRequests {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := inventory.RecordSale(ctx, storeID, productID, 1); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d sales succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	rec, err := mysqlAdapter.Get(ctx, storeID, productID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", rec.CurrentStock)

	if rec.CurrentStock == 0 {
		fmt.Println("PASS: Stock depleted to 0 and never negative")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", rec.CurrentStock)
	}
}
