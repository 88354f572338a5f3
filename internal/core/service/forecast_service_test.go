package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/port"
)

func forecastFixture(pred *funcPredictor, product domain.Product) (*ForecastService, *memCatalog) {
	store := newMemStore(domain.InventoryRecord{
		StoreID: "S1", ProductID: "P1", CurrentStock: 40, DailySalesSimulationBase: 5, LastSoldQuantity: 6,
	})
	catalog := newMemCatalog([]domain.Product{product}, []domain.Store{{StoreID: "S1", Region: "North"}})
	var p port.Predictor
	if pred != nil {
		p = pred
	}
	return NewForecastService(store, catalog, p, testMetrics(), fixedClock, testLogger()), catalog
}

func pricedProduct() domain.Product {
	return domain.Product{
		ProductID: "P1",
		Category:  "Toys",
		Price:     decimal.NewNullDecimal(decimal.RequireFromString("20")),
		Discount:  decimal.NewNullDecimal(decimal.RequireFromString("5")),
	}
}

func TestForecast_ModelUnavailable(t *testing.T) {
	svc, _ := forecastFixture(nil, pricedProduct())

	_, err := svc.Forecast(context.Background(), "S1", "P1", 0, domain.WhatIf{})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestForecast_InvalidDays(t *testing.T) {
	svc, _ := forecastFixture(constPredictor(3), pricedProduct())

	_, err := svc.Forecast(context.Background(), "S1", "P1", 0, domain.WhatIf{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestForecast_NotFound(t *testing.T) {
	svc, _ := forecastFixture(constPredictor(3), pricedProduct())

	_, err := svc.Forecast(context.Background(), "S1", "P404", 3, domain.WhatIf{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Forecast(context.Background(), "S404", "P1", 3, domain.WhatIf{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestForecast_LengthDatesAndClamp(t *testing.T) {
	preds := []float64{-3.2, 2.5, 3.5, 7.49}
	call := 0
	pred := &funcPredictor{
		schema: domain.DefaultFeatureSchema(),
		fn: func(map[string]any) (float64, error) {
			v := preds[call%len(preds)]
			call++
			return v, nil
		},
	}
	svc, _ := forecastFixture(pred, pricedProduct())

	points, err := svc.Forecast(context.Background(), "S1", "P1", 4, domain.WhatIf{})
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.Equal(t, []int{0, 2, 4, 7}, []int{points[0].PredictedDemand, points[1].PredictedDemand, points[2].PredictedDemand, points[3].PredictedDemand})
	for i, p := range points {
		assert.Equal(t, time.Date(2024, 3, 30+i, 0, 0, 0, 0, time.UTC), p.Date)
		assert.Equal(t, "S1", p.StoreID)
	}
}

func TestForecast_FeatureVectors(t *testing.T) {
	pred := constPredictor(4)
	svc, _ := forecastFixture(pred, pricedProduct())

	_, err := svc.Forecast(context.Background(), "S1", "P1", 3, domain.WhatIf{})
	require.NoError(t, err)
	require.Len(t, pred.seen, 3)

	first := pred.seen[0]
	assert.Equal(t, 40.0, first[domain.FeatureInventoryLevel])
	assert.Equal(t, 40.0, first[domain.FeatureInventoryLevelLag1])
	assert.Equal(t, 6.0, first[domain.FeatureUnitsSoldLag1])
	assert.Equal(t, 20.0, first[domain.FeaturePrice])
	assert.Equal(t, 5.0, first[domain.FeatureDiscount])
	assert.InDelta(t, 19.0, first[domain.FeatureCompetitorPrice], 1e-9)
	assert.Equal(t, 0.0, first[domain.FeatureUnitsOrdered])
	assert.Equal(t, "No", first[domain.FeatureHoliday])
	assert.Equal(t, "Clear", first[domain.FeatureWeather])
	assert.Equal(t, "Toys", first[domain.FeatureCategory])
	assert.Equal(t, "North", first[domain.FeatureRegion])
	assert.Equal(t, "Spring", first[domain.FeatureSeasonality])
	assert.Equal(t, "2024", first[domain.FeatureYear])
	assert.Equal(t, "3", first[domain.FeatureMonth])
	assert.Equal(t, "30", first[domain.FeatureDay])
	assert.Equal(t, "5", first[domain.FeatureDayOfWeek], "2024-03-30 is a Saturday")
	assert.Equal(t, "13", first[domain.FeatureWeekOfYear])

	second := pred.seen[1]
	assert.Equal(t, 4.0, second[domain.FeatureUnitsSoldLag1], "lag-1 sold follows the previous prediction")
	assert.Equal(t, 40.0, second[domain.FeatureInventoryLevel], "inventory level is held constant")
	assert.Equal(t, "6", second[domain.FeatureDayOfWeek])

	third := pred.seen[2]
	assert.Equal(t, "0", third[domain.FeatureDayOfWeek])
	assert.Equal(t, "Spring", third[domain.FeatureSeasonality])
	assert.Equal(t, "4", third[domain.FeatureMonth])
}

func TestForecast_WhatIfOverrides(t *testing.T) {
	pred := constPredictor(1)
	svc, _ := forecastFixture(pred, pricedProduct())

	discount, price, competitor := 15.0, 18.0, 17.5
	holiday, weather := "Yes", "Rainy"
	_, err := svc.Forecast(context.Background(), "S1", "P1", 2, domain.WhatIf{
		Discount: &discount, Price: &price, CompetitorPrice: &competitor, Holiday: &holiday, Weather: &weather,
	})
	require.NoError(t, err)

	for _, v := range pred.seen {
		assert.Equal(t, 15.0, v[domain.FeatureDiscount])
		assert.Equal(t, 18.0, v[domain.FeaturePrice])
		assert.Equal(t, 17.5, v[domain.FeatureCompetitorPrice])
		assert.Equal(t, "Yes", v[domain.FeatureHoliday])
		assert.Equal(t, "Rainy", v[domain.FeatureWeather])
	}
}

func TestForecast_PricingFallbacks(t *testing.T) {
	t.Run("catalog average", func(t *testing.T) {
		pred := constPredictor(1)
		svc, catalog := forecastFixture(pred, domain.Product{ProductID: "P1"})
		catalog.pricing = domain.Pricing{Price: 12.5, HasPrice: true, Discount: 2, HasDiscount: true}

		_, err := svc.Forecast(context.Background(), "S1", "P1", 1, domain.WhatIf{})
		require.NoError(t, err)
		assert.Equal(t, 12.5, pred.seen[0][domain.FeaturePrice])
		assert.Equal(t, 2.0, pred.seen[0][domain.FeatureDiscount])
		assert.Equal(t, domain.UnknownCategory, pred.seen[0][domain.FeatureCategory])
	})

	t.Run("catalog error uses defaults", func(t *testing.T) {
		pred := constPredictor(1)
		svc, catalog := forecastFixture(pred, domain.Product{ProductID: "P1"})
		catalog.pricingErr = errBoom

		_, err := svc.Forecast(context.Background(), "S1", "P1", 1, domain.WhatIf{})
		require.NoError(t, err)
		assert.Equal(t, 10.0, pred.seen[0][domain.FeaturePrice])
		assert.Equal(t, 0.0, pred.seen[0][domain.FeatureDiscount])
		assert.InDelta(t, 9.5, pred.seen[0][domain.FeatureCompetitorPrice], 1e-9)
	})

	t.Run("own price skips the catalog", func(t *testing.T) {
		svc, catalog := forecastFixture(constPredictor(1), pricedProduct())

		_, err := svc.Forecast(context.Background(), "S1", "P1", 1, domain.WhatIf{})
		require.NoError(t, err)
		assert.Zero(t, catalog.pricingHit)
	})
}

func TestForecast_SchemaDrift(t *testing.T) {
	pred := constPredictor(1)
	pred.schema = domain.FeatureSchema{
		{Name: domain.FeaturePrice, Kind: domain.Numerical},
		{Name: "Shelf Space", Kind: domain.Numerical},
		{Name: "Aisle", Kind: domain.Categorical},
	}
	svc, _ := forecastFixture(pred, pricedProduct())

	_, err := svc.Forecast(context.Background(), "S1", "P1", 1, domain.WhatIf{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		domain.FeaturePrice: 20.0,
		"Shelf Space":       0.0,
		"Aisle":             domain.UnknownCategory,
	}, pred.seen[0])
}

func TestForecast_PredictorFailure(t *testing.T) {
	pred := &funcPredictor{
		schema: domain.DefaultFeatureSchema(),
		fn:     func(map[string]any) (float64, error) { return 0, errBoom },
	}
	svc, _ := forecastFixture(pred, pricedProduct())

	_, err := svc.Forecast(context.Background(), "S1", "P1", 3, domain.WhatIf{})
	assert.ErrorIs(t, err, errBoom)

	pred.fn = func(map[string]any) (float64, error) { return math.NaN(), nil }
	_, err = svc.Forecast(context.Background(), "S1", "P1", 3, domain.WhatIf{})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestForecast_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pred := &funcPredictor{schema: domain.DefaultFeatureSchema()}
	pred.fn = func(map[string]any) (float64, error) {
		if len(pred.seen) == 2 {
			cancel()
		}
		return 1, nil
	}
	svc, _ := forecastFixture(pred, pricedProduct())

	_, err := svc.Forecast(ctx, "S1", "P1", 10, domain.WhatIf{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, pred.seen, 2)
}
