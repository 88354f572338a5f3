package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/metrics"
	"github.com/rl1809/stock-replenishment/internal/port"
)

const (
	DefaultForecastDays = 30

	defaultPrice           = 10.0
	defaultDiscount        = 0.0
	defaultHoliday         = "No"
	defaultWeather         = "Clear"
	competitorPriceFactor  = 0.95
	unitsOrderedInForecast = 0
)

// ForecastService runs the autoregressive day-by-day demand simulation for
// one store and product.
type ForecastService struct {
	store     port.InventoryStore
	catalog   port.Catalog
	predictor port.Predictor
	metrics   *metrics.Metrics
	clock     Clock
	logger    *zap.Logger
}

// NewForecastService builds the engine. predictor may be nil when the model
// failed to load; every forecast then fails with domain.ErrModelUnavailable.
func NewForecastService(store port.InventoryStore, catalog port.Catalog, predictor port.Predictor, m *metrics.Metrics, clock Clock, logger *zap.Logger) *ForecastService {
	return &ForecastService{
		store:     store,
		catalog:   catalog,
		predictor: predictor,
		metrics:   m,
		clock:     clock,
		logger:    logger.Named("forecast"),
	}
}

// ModelLoaded reports whether forecasts can be served.
func (s *ForecastService) ModelLoaded() bool {
	return s.predictor != nil
}

// baseline is the state the daily loop starts from.
type baseline struct {
	inventory domain.InventoryRecord
	product   domain.Product
	store     domain.Store
	price     float64
	discount  float64
}

func (s *ForecastService) Forecast(ctx context.Context, storeID, productID string, numDays int, whatIf domain.WhatIf) (points []domain.ForecastPoint, err error) {
	ctx, span := tracer.Start(ctx, "ForecastService.Forecast")
	span.SetAttributes(
		attribute.String("store_id", storeID),
		attribute.String("product_id", productID),
		attribute.Int("num_days", numDays))
	defer func() { endSpan(span, err) }()

	if s.predictor == nil {
		return nil, domain.ErrModelUnavailable
	}
	if numDays <= 0 {
		return nil, fmt.Errorf("%w: num_days must be a positive integer", domain.ErrInvalidInput)
	}
	if err := validateKey(storeID, productID); err != nil {
		return nil, err
	}

	base, err := s.resolve(ctx, storeID, productID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.metrics.ForecastDuration.Observe(time.Since(start).Seconds()) }()

	return s.simulate(ctx, base, numDays, whatIf)
}

func (s *ForecastService) resolve(ctx context.Context, storeID, productID string) (*baseline, error) {
	rec, err := s.store.Get(ctx, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("inventory %s/%s: %w", storeID, productID, err)
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}
	store, err := s.catalog.GetStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", storeID, err)
	}

	base := &baseline{inventory: *rec, product: *product, store: *store}
	base.price, base.discount = s.pricing(ctx, product)
	return base, nil
}

// pricing resolves the baseline price and discount: the product's own values,
// then the catalog average, then fixed defaults. It never fails.
func (s *ForecastService) pricing(ctx context.Context, p *domain.Product) (price, discount float64) {
	price, discount = defaultPrice, defaultDiscount
	if p.Price.Valid {
		price = p.Price.Decimal.InexactFloat64()
	}
	if p.Discount.Valid {
		discount = p.Discount.Decimal.InexactFloat64()
	}
	if p.Price.Valid && p.Discount.Valid {
		return price, discount
	}

	avg, err := s.catalog.AveragePricing(ctx)
	if err != nil {
		s.logger.Warn("catalog average pricing unavailable, using defaults",
			zap.String("product_id", p.ProductID),
			zap.Error(err))
		return price, discount
	}
	if !p.Price.Valid && avg.HasPrice {
		price = avg.Price
	}
	if !p.Discount.Valid && avg.HasDiscount {
		discount = avg.Discount
	}
	return price, discount
}

func (s *ForecastService) simulate(ctx context.Context, base *baseline, numDays int, whatIf domain.WhatIf) ([]domain.ForecastPoint, error) {
	price := valueOr(whatIf.Price, base.price)
	discount := valueOr(whatIf.Discount, base.discount)
	competitor := valueOr(whatIf.CompetitorPrice, base.price*competitorPriceFactor)
	holiday := valueOr(whatIf.Holiday, defaultHoliday)
	weather := valueOr(whatIf.Weather, defaultWeather)

	category := base.product.Category
	if category == "" {
		category = domain.UnknownCategory
	}
	region := base.store.Region
	if region == "" {
		region = domain.UnknownCategory
	}

	schema := s.predictor.Schema()
	inventoryLevel := float64(base.inventory.CurrentStock)
	lastSold := float64(base.inventory.LastSoldQuantity)
	today := s.clock.today()

	points := make([]domain.ForecastPoint, 0, numDays)
	for i := range numDays {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("forecast stopped after %d of %d days: %w", i, numDays, err)
		}

		date := today.AddDate(0, 0, i)
		_, week := date.ISOWeek()
		row := domain.FeatureRow{
			StoreID:            base.inventory.StoreID,
			ProductID:          base.inventory.ProductID,
			Category:           category,
			Region:             region,
			InventoryLevel:     inventoryLevel,
			UnitsOrdered:       unitsOrderedInForecast,
			Price:              price,
			Discount:           discount,
			Weather:            weather,
			Holiday:            holiday,
			CompetitorPrice:    competitor,
			Seasonality:        domain.Season(int(date.Month())),
			Year:               date.Year(),
			Month:              int(date.Month()),
			Day:                date.Day(),
			DayOfWeek:          (int(date.Weekday()) + 6) % 7,
			WeekOfYear:         week,
			UnitsSoldLag1:      lastSold,
			InventoryLevelLag1: inventoryLevel,
		}

		raw, err := s.predictor.Predict(ctx, row.Vector(schema))
		s.metrics.PredictorCalls.WithLabelValues(resultLabel(err)).Inc()
		if err != nil {
			return nil, fmt.Errorf("predict day %d: %w", i, err)
		}
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return nil, fmt.Errorf("%w: predictor returned %v for day %d", domain.ErrUpstream, raw, i)
		}

		demand := max(0, roundHalfEven(raw))
		points = append(points, domain.ForecastPoint{
			Date:            date,
			PredictedDemand: demand,
			StoreID:         base.inventory.StoreID,
			ProductID:       base.inventory.ProductID,
		})
		lastSold = float64(demand)
	}
	return points, nil
}

func valueOr[T any](override *T, fallback T) T {
	if override != nil {
		return *override
	}
	return fallback
}

