package port

import (
	"context"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

type InventoryStore interface {
	// Get returns the most recently updated record for the pair, or domain.ErrNotFound
	Get(ctx context.Context, storeID, productID string) (*domain.InventoryRecord, error)

	// ConditionalDecrement atomically subtracts qty when current stock covers it
	ConditionalDecrement(ctx context.Context, storeID, productID string, qty int) (*domain.InventoryRecord, error)

	// IncrementOrCreate adds qty, creating the record when it does not exist
	IncrementOrCreate(ctx context.Context, storeID, productID string, qty int) (*domain.InventoryRecord, error)

	// BulkApply submits ops as one write, continuing past individual failures.
	// Returns *domain.BulkWriteError when only part of the ops were applied.
	BulkApply(ctx context.Context, ops []domain.StockOp) ([]domain.OpResult, error)

	List(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryRecord, error)
}

// BulkLoader performs the one-time drop-and-replace import.
type BulkLoader interface {
	Reset(ctx context.Context, collection domain.Collection) error
	InsertProducts(ctx context.Context, products []domain.Product) error
	InsertStores(ctx context.Context, stores []domain.Store) error
	InsertInventory(ctx context.Context, records []domain.InventoryRecord) error
}
