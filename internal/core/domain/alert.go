package domain

import "time"

type AlertTier string

const (
	TierOutOfStock    AlertTier = "Critical: Out of Stock"
	TierBelowLeadTime AlertTier = "Critical: Below Replenishment Lead Time"
	TierApproaching   AlertTier = "Warning: Approaching Threshold"
)

type LowStockAlert struct {
	StoreID          string    `json:"store_id"`
	ProductID        string    `json:"product_id"`
	CurrentStock     int       `json:"current_stock"`
	DailyDemand      int       `json:"daily_demand_sim"`
	MinReplenishTime int       `json:"min_replenish_time"`
	DaysRemaining    float64   `json:"days_remaining"`
	Category         AlertTier `json:"alert_category"`
	Reason           string    `json:"alert_reason"`
	LastUpdated      time.Time `json:"last_updated"`
}

type OverstockAlert struct {
	StoreID             string    `json:"store_id"`
	ProductID           string    `json:"product_id"`
	ProductName         string    `json:"product_name"`
	CurrentStock        int       `json:"current_stock"`
	DailyDemand         int       `json:"daily_demand_sim"`
	DaysForDemand       int       `json:"days_for_demand"`
	ProjectedDemand     float64   `json:"projected_demand_for_X_days"`
	ThresholdMultiplier float64   `json:"threshold_multiplier"`
	OverstockRatio      *float64  `json:"overstock_ratio"`
	Reason              string    `json:"alert_reason"`
	LastUpdated         time.Time `json:"last_updated"`
}
