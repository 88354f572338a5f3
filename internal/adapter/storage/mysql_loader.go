package storage

import (
	"context"
	"fmt"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

const (
	insertProductQuery = `
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertStoreQuery = `INSERT INTO stores (store_id, region, name) VALUES (?, ?, ?)`

	insertInventoryQuery = `
		INSERT INTO inventory (` + inventoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// Reset empties the table backing collection.
func (m *MySQLAdapter) Reset(ctx context.Context, collection domain.Collection) error {
	table, ok := collectionTables[collection]
	if !ok {
		return fmt.Errorf("%w: unknown collection %q", domain.ErrInvalidInput, collection)
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return classify("reset "+table, err)
	}
	return nil
}

func (m *MySQLAdapter) InsertProducts(ctx context.Context, products []domain.Product) error {
	_, err := m.writeEach(ctx, len(products), func(i int) (string, []any) {
		p := products[i]
		return insertProductQuery, []any{p.ProductID, p.Name, p.Category, p.Price, p.Discount,
			p.MinReplenishTime, p.BaseSafetyStock, p.SupplierReliability}
	})
	return err
}

func (m *MySQLAdapter) InsertStores(ctx context.Context, stores []domain.Store) error {
	_, err := m.writeEach(ctx, len(stores), func(i int) (string, []any) {
		s := stores[i]
		return insertStoreQuery, []any{s.StoreID, s.Region, s.Name}
	})
	return err
}

func (m *MySQLAdapter) InsertInventory(ctx context.Context, records []domain.InventoryRecord) error {
	_, err := m.writeEach(ctx, len(records), func(i int) (string, []any) {
		r := records[i]
		return insertInventoryQuery, []any{r.StoreID, r.ProductID, r.CurrentStock, r.DailySalesSimulationBase,
			r.LastSoldQuantity, r.LastReceiptQuantity, r.LastUpdated}
	})
	return err
}
