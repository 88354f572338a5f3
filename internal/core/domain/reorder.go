package domain

import (
	"encoding/json"
	"time"
)

type ReorderRecommendation struct {
	StoreID                string
	ProductID              string
	CurrentStock           int
	LeadTimeDays           int
	AverageDailyDemand     float64
	SafetyStock            int
	DemandDuringLeadTime   int
	ReorderPoint           int
	TargetInventoryLevel   int
	ReorderNeeded          bool
	SuggestedOrderQuantity int
	SuggestedOrderDate     time.Time
	SuggestedDeliveryDate  time.Time
	Notes                  string
}

func (r ReorderRecommendation) MarshalJSON() ([]byte, error) {
	needed := "No"
	if r.ReorderNeeded {
		needed = "Yes"
	}
	return json.Marshal(struct {
		StoreID                string  `json:"store_id"`
		ProductID              string  `json:"product_id"`
		CurrentStock           int     `json:"current_stock"`
		LeadTimeDays           int     `json:"min_replenish_time_days"`
		AverageDailyDemand     float64 `json:"average_daily_forecasted_demand"`
		SafetyStock            int     `json:"safety_stock_units"`
		DemandDuringLeadTime   int     `json:"demand_during_lead_time"`
		ReorderPoint           int     `json:"reorder_point_units"`
		TargetInventoryLevel   int     `json:"target_inventory_level"`
		ReorderNeeded          string  `json:"reorder_needed"`
		SuggestedOrderQuantity int     `json:"suggested_order_quantity"`
		SuggestedOrderDate     string  `json:"suggested_order_date"`
		SuggestedDeliveryDate  string  `json:"suggested_delivery_date"`
		Notes                  string  `json:"notes"`
	}{
		StoreID:                r.StoreID,
		ProductID:              r.ProductID,
		CurrentStock:           r.CurrentStock,
		LeadTimeDays:           r.LeadTimeDays,
		AverageDailyDemand:     r.AverageDailyDemand,
		SafetyStock:            r.SafetyStock,
		DemandDuringLeadTime:   r.DemandDuringLeadTime,
		ReorderPoint:           r.ReorderPoint,
		TargetInventoryLevel:   r.TargetInventoryLevel,
		ReorderNeeded:          needed,
		SuggestedOrderQuantity: r.SuggestedOrderQuantity,
		SuggestedOrderDate:     r.SuggestedOrderDate.Format(dateLayout),
		SuggestedDeliveryDate:  r.SuggestedDeliveryDate.Format(dateLayout),
		Notes:                  r.Notes,
	})
}
