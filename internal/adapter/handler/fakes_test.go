package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/config"
	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/core/service"
	"github.com/rl1809/stock-replenishment/internal/metrics"
	"github.com/rl1809/stock-replenishment/internal/port"
)

func fixedClock() time.Time { return time.Date(2024, time.March, 30, 9, 0, 0, 0, time.UTC) }

type memStore struct {
	mu      sync.Mutex
	records map[[2]string]*domain.InventoryRecord
}

func newMemStore(records ...domain.InventoryRecord) *memStore {
	s := &memStore{records: make(map[[2]string]*domain.InventoryRecord)}
	for _, r := range records {
		s.records[[2]string{r.StoreID, r.ProductID}] = &r
	}
	return s
}

func (s *memStore) Get(ctx context.Context, storeID, productID string) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[[2]string{storeID, productID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ConditionalDecrement(ctx context.Context, storeID, productID string, qty int) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[[2]string{storeID, productID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.CurrentStock < qty {
		return nil, domain.ErrInsufficientStock
	}
	r.CurrentStock -= qty
	r.LastSoldQuantity = qty
	cp := *r
	return &cp, nil
}

func (s *memStore) IncrementOrCreate(ctx context.Context, storeID, productID string, qty int) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{storeID, productID}
	r, ok := s.records[key]
	if !ok {
		r = &domain.InventoryRecord{StoreID: storeID, ProductID: productID}
		s.records[key] = r
	}
	r.CurrentStock += qty
	r.LastReceiptQuantity = qty
	cp := *r
	return &cp, nil
}

func (s *memStore) BulkApply(ctx context.Context, ops []domain.StockOp) ([]domain.OpResult, error) {
	results := make([]domain.OpResult, len(ops))
	for i, op := range ops {
		var err error
		if op.Kind == domain.OpSale {
			_, err = s.ConditionalDecrement(ctx, op.StoreID, op.ProductID, op.Quantity)
		} else {
			_, err = s.IncrementOrCreate(ctx, op.StoreID, op.ProductID, op.Quantity)
		}
		results[i] = domain.OpResult{Matched: err == nil}
	}
	return results, nil
}

func (s *memStore) List(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InventoryRecord
	for _, r := range s.records {
		if filter.StoreID == "" || r.StoreID == filter.StoreID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreID != out[j].StoreID {
			return out[i].StoreID < out[j].StoreID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

type memCatalog struct {
	products map[string]domain.Product
	stores   map[string]domain.Store
}

func (c *memCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (c *memCatalog) GetStore(ctx context.Context, storeID string) (*domain.Store, error) {
	s, ok := c.stores[storeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (c *memCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	return out, nil
}

func (c *memCatalog) AveragePricing(ctx context.Context) (domain.Pricing, error) {
	return domain.Pricing{}, nil
}

type memCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memCache) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *memCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	return false, nil
}

func (m *memCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

type constPredictor float64

func (p constPredictor) Schema() domain.FeatureSchema { return domain.DefaultFeatureSchema() }

func (p constPredictor) Predict(ctx context.Context, features domain.FeatureVector) (float64, error) {
	return float64(p), nil
}

type fixture struct {
	store *memStore
	svc   Services
}

func intPtr(v int) *int { return &v }

// newFixture wires the engines over in-memory ports. A nil predictor leaves
// the model unloaded.
func newFixture(pred port.Predictor) *fixture {
	store := newMemStore(
		domain.InventoryRecord{StoreID: "S1", ProductID: "P1", CurrentStock: 0, DailySalesSimulationBase: 5},
		domain.InventoryRecord{StoreID: "S1", ProductID: "P2", CurrentStock: 100, DailySalesSimulationBase: 1},
		domain.InventoryRecord{StoreID: "S1", ProductID: "P3", CurrentStock: 40, DailySalesSimulationBase: 5},
	)
	catalog := &memCatalog{
		products: map[string]domain.Product{
			"P1": {ProductID: "P1", Name: "Widget", Category: "Toys"},
			"P2": {ProductID: "P2", Name: "Gadget", Category: "Toys"},
			"P3": {ProductID: "P3", Name: "Gizmo", Category: "Toys", MinReplenishTime: intPtr(3)},
		},
		stores: map[string]domain.Store{"S1": {StoreID: "S1", Region: "North"}},
	}
	m := metrics.New(nil)
	log := zap.NewNop()

	forecast := service.NewForecastService(store, catalog, pred, m, fixedClock, log)
	batchCfg := config.BatchConfig{ChunkSize: 2, MaxAttempts: 1}
	return &fixture{
		store: store,
		svc: Services{
			Inventory: service.NewInventoryService(store, m, log),
			Alerts:    service.NewAlertService(store, catalog, log),
			Forecast:  forecast,
			Reorder:   service.NewReorderService(store, catalog, forecast, fixedClock, log),
			Batch:     service.NewBatchService(store, &memCache{keys: map[string]bool{}}, batchCfg, m, log),
		},
	}
}

func (f *fixture) router() http.Handler {
	return NewRouter(NewHTTPHandler(f.svc, 1<<20, zap.NewNop()), nil, time.Minute)
}
