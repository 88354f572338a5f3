package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

func series(values ...int) []domain.ForecastPoint {
	points := make([]domain.ForecastPoint, len(values))
	for i, v := range values {
		points[i] = domain.ForecastPoint{PredictedDemand: v}
	}
	return points
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestPolicy_ReorderNeeded(t *testing.T) {
	inv := domain.InventoryRecord{StoreID: "S1", ProductID: "P1", CurrentStock: 40}
	rec := Policy(inv, 3, 10, series(repeat(4, 10)...), series(repeat(4, 30)...))

	assert.Equal(t, 4.0, rec.AverageDailyDemand)
	assert.Equal(t, 28, rec.SafetyStock)
	assert.Equal(t, 12, rec.DemandDuringLeadTime)
	assert.Equal(t, 40, rec.ReorderPoint)
	assert.Equal(t, 148, rec.TargetInventoryLevel)
	assert.Equal(t, 108, rec.SuggestedOrderQuantity)
	assert.True(t, rec.ReorderNeeded)
}

func TestPolicy_NoPhantomOrders(t *testing.T) {
	inv := domain.InventoryRecord{CurrentStock: 500}
	rec := Policy(inv, 3, 10, series(repeat(2, 10)...), series(repeat(2, 30)...))

	assert.Equal(t, 20, rec.ReorderPoint)
	assert.Equal(t, 0, rec.SuggestedOrderQuantity)
	assert.False(t, rec.ReorderNeeded)
}

func TestPolicy_AboveReorderPointButBelowTarget(t *testing.T) {
	inv := domain.InventoryRecord{CurrentStock: 50}
	rec := Policy(inv, 3, 10, series(repeat(4, 10)...), series(repeat(4, 30)...))

	assert.Equal(t, 98, rec.SuggestedOrderQuantity)
	assert.False(t, rec.ReorderNeeded, "stock above the reorder point never needs a reorder")
}

func TestPolicy_AverageUsesHalfEvenRounding(t *testing.T) {
	// 5 units over 2 days is 2.5 a day; 17.5 of safety stock rounds to 18.
	rec := Policy(domain.InventoryRecord{}, 1, 2, series(2, 3), series(1))
	assert.Equal(t, 2.5, rec.AverageDailyDemand)
	assert.Equal(t, 18, rec.SafetyStock)
	assert.Equal(t, 2, rec.DemandDuringLeadTime)
}

func TestPolicy_LeadLongerThanSeries(t *testing.T) {
	rec := Policy(domain.InventoryRecord{}, 20, 5, series(1, 1, 1, 1, 1), nil)
	assert.Equal(t, 5, rec.DemandDuringLeadTime)
}

func reorderFixture(pred *funcPredictor, lead *int) *ReorderService {
	store := newMemStore(domain.InventoryRecord{StoreID: "S1", ProductID: "P1", CurrentStock: 40, DailySalesSimulationBase: 5})
	catalog := newMemCatalog(
		[]domain.Product{{ProductID: "P1", Category: "Toys", MinReplenishTime: lead}},
		[]domain.Store{{StoreID: "S1", Region: "North"}},
	)
	forecast := NewForecastService(store, catalog, pred, testMetrics(), fixedClock, testLogger())
	return NewReorderService(store, catalog, forecast, fixedClock, testLogger())
}

func TestRecommend(t *testing.T) {
	pred := constPredictor(4)
	svc := reorderFixture(pred, intPtr(3))

	rec, err := svc.Recommend(context.Background(), "S1", "P1")
	require.NoError(t, err)

	assert.Equal(t, 3, rec.LeadTimeDays)
	assert.Equal(t, 40, rec.ReorderPoint)
	assert.Equal(t, 108, rec.SuggestedOrderQuantity)
	assert.True(t, rec.ReorderNeeded)
	assert.Equal(t, time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC), rec.SuggestedOrderDate)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), rec.SuggestedDeliveryDate)
	assert.NotEmpty(t, rec.Notes)
	assert.Len(t, pred.seen, 10+TargetInventoryDays)
}

func TestRecommend_DefaultLeadTime(t *testing.T) {
	pred := constPredictor(1)
	svc := reorderFixture(pred, nil)

	rec, err := svc.Recommend(context.Background(), "S1", "P1")
	require.NoError(t, err)
	assert.Equal(t, DefaultLeadTimeDays, rec.LeadTimeDays)
	assert.Len(t, pred.seen, DefaultLeadTimeDays+SafetyStockDays+TargetInventoryDays)
}

func TestRecommend_Errors(t *testing.T) {
	store := newMemStore()
	catalog := newMemCatalog(nil, nil)
	noModel := NewReorderService(store, catalog, NewForecastService(store, catalog, nil, testMetrics(), fixedClock, testLogger()), fixedClock, testLogger())

	_, err := noModel.Recommend(context.Background(), "S1", "P1")
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)

	svc := reorderFixture(constPredictor(1), intPtr(3))
	_, err = svc.Recommend(context.Background(), "S1", "P404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	failing := &funcPredictor{
		schema: domain.DefaultFeatureSchema(),
		fn:     func(map[string]any) (float64, error) { return 0, errBoom },
	}
	_, err = reorderFixture(failing, intPtr(3)).Recommend(context.Background(), "S1", "P1")
	assert.ErrorIs(t, err, errBoom)
}
