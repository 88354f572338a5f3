package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/port"
)

const (
	SafetyStockDays     = 7
	TargetInventoryDays = 30
	DefaultLeadTimeDays = 7

	reorderNotes = "Recommendation based on ML demand forecast, lead time, and safety stock. Adjust parameters as needed."
)

// ReorderService turns two demand forecasts into a reorder recommendation.
type ReorderService struct {
	store    port.InventoryStore
	catalog  port.Catalog
	forecast *ForecastService
	clock    Clock
	logger   *zap.Logger
}

func NewReorderService(store port.InventoryStore, catalog port.Catalog, forecast *ForecastService, clock Clock, logger *zap.Logger) *ReorderService {
	return &ReorderService{
		store:    store,
		catalog:  catalog,
		forecast: forecast,
		clock:    clock,
		logger:   logger.Named("reorder"),
	}
}

func (s *ReorderService) Recommend(ctx context.Context, storeID, productID string) (rec *domain.ReorderRecommendation, err error) {
	ctx, span := tracer.Start(ctx, "ReorderService.Recommend")
	span.SetAttributes(attribute.String("store_id", storeID), attribute.String("product_id", productID))
	defer func() { endSpan(span, err) }()

	if !s.forecast.ModelLoaded() {
		return nil, domain.ErrModelUnavailable
	}
	if err := validateKey(storeID, productID); err != nil {
		return nil, err
	}

	inv, err := s.store.Get(ctx, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("inventory %s/%s: %w", storeID, productID, err)
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}

	lead := product.LeadTime(DefaultLeadTimeDays)
	horizon := max(1, lead+SafetyStockDays)

	var cover, target []domain.ForecastPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cover, err = s.forecast.Forecast(gctx, storeID, productID, horizon, domain.WhatIf{})
		return err
	})
	g.Go(func() error {
		var err error
		target, err = s.forecast.Forecast(gctx, storeID, productID, TargetInventoryDays, domain.WhatIf{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reorder forecast for %s/%s: %w", storeID, productID, err)
	}

	rec = Policy(*inv, lead, horizon, cover, target)
	rec.SuggestedOrderDate = s.clock.today()
	rec.SuggestedDeliveryDate = rec.SuggestedOrderDate.AddDate(0, 0, lead)

	s.logger.Debug("reorder recommendation computed",
		zap.String("store_id", storeID),
		zap.String("product_id", productID),
		zap.Int("reorder_point", rec.ReorderPoint),
		zap.Int("suggested_qty", rec.SuggestedOrderQuantity),
		zap.Bool("reorder_needed", rec.ReorderNeeded))
	return rec, nil
}

// Policy applies the reorder arithmetic to a lead-time-plus-safety forecast
// (cover, horizon days long) and a target-window forecast. Dates are left to
// the caller.
func Policy(inv domain.InventoryRecord, lead, horizon int, cover, target []domain.ForecastPoint) *domain.ReorderRecommendation {
	avgDaily := float64(inv.DailySalesSimulationBase)
	if horizon > 0 {
		avgDaily = float64(domain.SumDemand(cover)) / float64(horizon)
	}
	safety := roundHalfEven(avgDaily * SafetyStockDays)

	leadPoints := cover[:min(max(lead, 0), len(cover))]
	duringLead := domain.SumDemand(leadPoints)
	reorderPoint := max(0, duringLead+safety)

	targetLevel := domain.SumDemand(target) + safety
	qty := max(0, targetLevel-inv.CurrentStock)
	if inv.CurrentStock > reorderPoint && qty <= 0 {
		qty = 0
	}

	return &domain.ReorderRecommendation{
		StoreID:                inv.StoreID,
		ProductID:              inv.ProductID,
		CurrentStock:           inv.CurrentStock,
		LeadTimeDays:           lead,
		AverageDailyDemand:     round2(avgDaily),
		SafetyStock:            safety,
		DemandDuringLeadTime:   duringLead,
		ReorderPoint:           reorderPoint,
		TargetInventoryLevel:   targetLevel,
		ReorderNeeded:          inv.CurrentStock <= reorderPoint && qty > 0,
		SuggestedOrderQuantity: qty,
		Notes:                  reorderNotes,
	}
}
