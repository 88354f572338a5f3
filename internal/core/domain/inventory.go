package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryRecord is the stock position of one product at one store.
type InventoryRecord struct {
	StoreID                  string    `json:"store_id"`
	ProductID                string    `json:"product_id"`
	CurrentStock             int       `json:"current_stock"`
	DailySalesSimulationBase int       `json:"daily_sales_simulation_base"`
	LastUpdated              time.Time `json:"last_updated"`
	LastSoldQuantity         int       `json:"last_sold_quantity,omitempty"`
	LastReceiptQuantity      int       `json:"last_receipt_quantity,omitempty"`
}

type InventoryFilter struct {
	StoreID string
}

type Product struct {
	ProductID           string              `json:"product_id"`
	Name                string              `json:"name"`
	Category            string              `json:"category"`
	Price               decimal.NullDecimal `json:"price"`
	Discount            decimal.NullDecimal `json:"discount"`
	MinReplenishTime    *int                `json:"min_replenish_time,omitempty"`
	BaseSafetyStock     int                 `json:"base_safety_stock,omitempty"`
	SupplierReliability float64             `json:"supplier_category_reliability,omitempty"`
}

// LeadTime returns the replenishment lead time in days, or fallback when the
// product does not declare one.
func (p Product) LeadTime(fallback int) int {
	if p.MinReplenishTime == nil {
		return fallback
	}
	return *p.MinReplenishTime
}

// DisplayName falls back to a generated label for unnamed products.
func (p Product) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return "Product " + p.ProductID
}

type Store struct {
	StoreID string `json:"store_id"`
	Region  string `json:"region"`
	Name    string `json:"name"`
}

// Pricing is a catalog-wide average price and discount.
type Pricing struct {
	Price       float64
	HasPrice    bool
	Discount    float64
	HasDiscount bool
}
