package service

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/port"
)

const (
	DefaultDaysLeftThreshold   = 7
	DefaultThresholdMultiplier = 3.0
	DefaultDaysForDemand       = 30
)

// AlertService classifies inventory into understock and overstock alerts
// from the current snapshot alone. It never mutates the store.
type AlertService struct {
	store   port.InventoryStore
	catalog port.Catalog
	logger  *zap.Logger
}

func NewAlertService(store port.InventoryStore, catalog port.Catalog, logger *zap.Logger) *AlertService {
	return &AlertService{
		store:   store,
		catalog: catalog,
		logger:  logger.Named("alerts"),
	}
}

// ClassifyLowStock returns the alert tier for rec, or ok == false when the
// record has enough cover. daysRemaining is unrounded.
func ClassifyLowStock(rec domain.InventoryRecord, leadTime, threshold int) (tier domain.AlertTier, daysRemaining float64, ok bool) {
	switch {
	case rec.CurrentStock == 0:
		return domain.TierOutOfStock, 0, true
	case rec.DailySalesSimulationBase <= 0:
		return "", math.Inf(1), false
	}

	daysRemaining = float64(rec.CurrentStock) / float64(rec.DailySalesSimulationBase)
	switch {
	case daysRemaining > 0 && daysRemaining <= float64(leadTime):
		return domain.TierBelowLeadTime, daysRemaining, true
	case daysRemaining > 0 && daysRemaining <= float64(threshold):
		return domain.TierApproaching, daysRemaining, true
	}
	return "", daysRemaining, false
}

// ClassifyOverstock reports whether rec holds more than multiplier times the
// demand projected over daysForDemand. Records without projected demand never
// qualify.
func ClassifyOverstock(rec domain.InventoryRecord, multiplier float64, daysForDemand int) (ratio, projected float64, ok bool) {
	projected = float64(rec.DailySalesSimulationBase) * float64(daysForDemand)
	if projected <= 0 {
		return 0, projected, false
	}
	if float64(rec.CurrentStock) <= multiplier*projected {
		return 0, projected, false
	}
	return float64(rec.CurrentStock) / projected, projected, true
}

func (s *AlertService) LowStock(ctx context.Context, daysLeft int, storeID string) (alerts []domain.LowStockAlert, err error) {
	ctx, span := tracer.Start(ctx, "AlertService.LowStock")
	span.SetAttributes(attribute.Int("days_left", daysLeft), attribute.String("store_id", storeID))
	defer func() { endSpan(span, err) }()

	if daysLeft < 0 {
		return nil, fmt.Errorf("%w: days_left must be a non-negative integer", domain.ErrInvalidInput)
	}

	records, products, err := s.snapshot(ctx, storeID)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		alert domain.LowStockAlert
		days  float64
	}
	var found []ranked
	for _, rec := range records {
		lead := 0
		if p, ok := products[rec.ProductID]; ok {
			lead = p.LeadTime(0)
		}

		tier, days, ok := ClassifyLowStock(rec, lead, daysLeft)
		if !ok {
			continue
		}
		found = append(found, ranked{
			alert: domain.LowStockAlert{
				StoreID:          rec.StoreID,
				ProductID:        rec.ProductID,
				CurrentStock:     rec.CurrentStock,
				DailyDemand:      rec.DailySalesSimulationBase,
				MinReplenishTime: lead,
				DaysRemaining:    round2(days),
				Category:         tier,
				Reason:           lowStockReason(tier, days, lead, daysLeft),
				LastUpdated:      rec.LastUpdated,
			},
			days: days,
		})
	}

	slices.SortFunc(found, func(a, b ranked) int {
		return cmp.Or(
			cmp.Compare(a.days, b.days),
			cmp.Compare(a.alert.StoreID, b.alert.StoreID),
			cmp.Compare(a.alert.ProductID, b.alert.ProductID),
		)
	})

	alerts = make([]domain.LowStockAlert, 0, len(found))
	for _, f := range found {
		alerts = append(alerts, f.alert)
	}
	return alerts, nil
}

func (s *AlertService) Overstock(ctx context.Context, multiplier float64, daysForDemand int, storeID string) (alerts []domain.OverstockAlert, err error) {
	ctx, span := tracer.Start(ctx, "AlertService.Overstock")
	span.SetAttributes(attribute.Float64("threshold_multiplier", multiplier), attribute.Int("days_for_demand", daysForDemand))
	defer func() { endSpan(span, err) }()

	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil, fmt.Errorf("%w: threshold_multiplier must be a positive number", domain.ErrInvalidInput)
	}
	if daysForDemand <= 0 {
		return nil, fmt.Errorf("%w: days_for_demand must be a positive integer", domain.ErrInvalidInput)
	}

	records, products, err := s.snapshot(ctx, storeID)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		alert domain.OverstockAlert
		ratio float64
	}
	var found []ranked
	for _, rec := range records {
		ratio, projected, ok := ClassifyOverstock(rec, multiplier, daysForDemand)
		if !ok {
			continue
		}

		name := "Product " + rec.ProductID
		if p, ok := products[rec.ProductID]; ok {
			name = p.DisplayName()
		}
		shown := round2(ratio)
		found = append(found, ranked{
			alert: domain.OverstockAlert{
				StoreID:             rec.StoreID,
				ProductID:           rec.ProductID,
				ProductName:         name,
				CurrentStock:        rec.CurrentStock,
				DailyDemand:         rec.DailySalesSimulationBase,
				DaysForDemand:       daysForDemand,
				ProjectedDemand:     round2(projected),
				ThresholdMultiplier: multiplier,
				OverstockRatio:      &shown,
				Reason: fmt.Sprintf("Current stock (%d) is %s times the projected demand of %s units over %d days (threshold: %sx).",
					rec.CurrentStock, formatNum(shown), formatNum(round2(projected)), daysForDemand, formatNum(multiplier)),
				LastUpdated: rec.LastUpdated,
			},
			ratio: ratio,
		})
	}

	slices.SortFunc(found, func(a, b ranked) int {
		return cmp.Or(
			cmp.Compare(b.ratio, a.ratio),
			cmp.Compare(a.alert.StoreID, b.alert.StoreID),
			cmp.Compare(a.alert.ProductID, b.alert.ProductID),
		)
	})

	alerts = make([]domain.OverstockAlert, 0, len(found))
	for _, f := range found {
		alerts = append(alerts, f.alert)
	}
	return alerts, nil
}

// snapshot reads the inventory records and the product catalog keyed by id.
func (s *AlertService) snapshot(ctx context.Context, storeID string) ([]domain.InventoryRecord, map[string]domain.Product, error) {
	records, err := s.store.List(ctx, domain.InventoryFilter{StoreID: storeID})
	if err != nil {
		return nil, nil, fmt.Errorf("list inventory: %w", err)
	}

	list, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list products: %w", err)
	}
	products := make(map[string]domain.Product, len(list))
	for _, p := range list {
		products[p.ProductID] = p
	}

	s.logger.Debug("inventory snapshot loaded",
		zap.String("store_id", storeID),
		zap.Int("records", len(records)),
		zap.Int("products", len(products)))
	return records, products, nil
}

func lowStockReason(tier domain.AlertTier, days float64, lead, threshold int) string {
	switch tier {
	case domain.TierOutOfStock:
		return "Currently out of stock."
	case domain.TierBelowLeadTime:
		return fmt.Sprintf("Projected to run out in %s days, which is less than replenishment time of %d days.", formatNum(round2(days)), lead)
	default:
		return fmt.Sprintf("Projected to run out in %s days (within %d days limit).", formatNum(round2(days)), threshold)
	}
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
