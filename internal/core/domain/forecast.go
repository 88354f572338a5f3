package domain

import (
	"encoding/json"
	"time"
)

const dateLayout = "2006-01-02"

type ForecastPoint struct {
	Date            time.Time
	PredictedDemand int
	StoreID         string
	ProductID       string
}

func (p ForecastPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date            string `json:"date"`
		PredictedDemand int    `json:"predicted_demand"`
		StoreID         string `json:"store_id"`
		ProductID       string `json:"product_id"`
	}{
		Date:            p.Date.Format(dateLayout),
		PredictedDemand: p.PredictedDemand,
		StoreID:         p.StoreID,
		ProductID:       p.ProductID,
	})
}

// WhatIf holds caller supplied scenario values. A nil field keeps the
// baseline value; a set field applies to every day of the horizon.
type WhatIf struct {
	Discount        *float64
	Holiday         *string
	Weather         *string
	Price           *float64
	CompetitorPrice *float64
}

// SumDemand totals the predicted demand of points.
func SumDemand(points []ForecastPoint) int {
	total := 0
	for _, p := range points {
		total += p.PredictedDemand
	}
	return total
}
