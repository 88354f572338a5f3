// Package dataset reads the newline-delimited JSON exports used for the
// initial bulk load.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

const (
	ProductsFile  = "products.json"
	StoresFile    = "stores.json"
	InventoryFile = "inventory.json"

	maxLineBytes = 1 << 20
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type inventoryLine struct {
	StoreID                  string  `json:"store_id"`
	ProductID                string  `json:"product_id"`
	CurrentStock             *int    `json:"current_stock"`
	DailySalesSimulationBase *int    `json:"daily_sales_simulation_base"`
	LastUpdated              *string `json:"last_updated"`
}

// ReadDir loads all three exports from dir. Every file must exist.
func ReadDir(dir string, now func() time.Time) (domain.Dataset, error) {
	var ds domain.Dataset
	var err error

	if ds.Products, err = readFile(filepath.Join(dir, ProductsFile), decodeAs[domain.Product]); err != nil {
		return ds, err
	}
	if ds.Stores, err = readFile(filepath.Join(dir, StoresFile), decodeAs[domain.Store]); err != nil {
		return ds, err
	}
	ds.Inventory, err = readFile(filepath.Join(dir, InventoryFile), func(line []byte) (domain.InventoryRecord, error) {
		return decodeInventory(line, now)
	})
	return ds, err
}

func readFile[T any](path string, decode func([]byte) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	items, err := Read(f, decode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Read decodes one item per non-blank line.
func Read[T any](r io.Reader, decode func([]byte) (T, error)) ([]T, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var items []T
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		item, err := decode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeAs[T any](line []byte) (T, error) {
	var v T
	err := json.Unmarshal(line, &v)
	return v, err
}

// decodeInventory applies the import defaults: stock 0, a daily sales base
// of at least 1, and the load time when last_updated is absent or unparsable.
func decodeInventory(line []byte, now func() time.Time) (domain.InventoryRecord, error) {
	var in inventoryLine
	if err := json.Unmarshal(line, &in); err != nil {
		return domain.InventoryRecord{}, err
	}

	rec := domain.InventoryRecord{
		StoreID:                  in.StoreID,
		ProductID:                in.ProductID,
		DailySalesSimulationBase: 1,
		LastUpdated:              now(),
	}
	if in.CurrentStock != nil {
		rec.CurrentStock = *in.CurrentStock
	}
	if in.DailySalesSimulationBase != nil {
		rec.DailySalesSimulationBase = max(*in.DailySalesSimulationBase, 1)
	}
	if in.LastUpdated != nil {
		if t, ok := parseTimestamp(*in.LastUpdated); ok {
			rec.LastUpdated = t
		}
	}
	return rec, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
