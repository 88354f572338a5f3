package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/metrics"
)

var testNow = time.Date(2024, time.March, 30, 15, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testMetrics() *metrics.Metrics { return metrics.New(nil) }

func testLogger() *zap.Logger { return zap.NewNop() }

func intPtr(v int) *int { return &v }

// memStore is an in-memory InventoryStore.
type memStore struct {
	mu      sync.Mutex
	records map[[2]string]*domain.InventoryRecord

	bulkCalls int
	bulkErrs  []error
}

func newMemStore(records ...domain.InventoryRecord) *memStore {
	s := &memStore{records: make(map[[2]string]*domain.InventoryRecord)}
	for _, r := range records {
		s.records[[2]string{r.StoreID, r.ProductID}] = &r
	}
	return s
}

func (s *memStore) stock(storeID, productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[[2]string{storeID, productID}]; ok {
		return r.CurrentStock
	}
	return -1
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
	return s.decrement(storeID, productID, qty)
}

func (s *memStore) decrement(storeID, productID string, qty int) (*domain.InventoryRecord, error) {
	r, ok := s.records[[2]string{storeID, productID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.CurrentStock < qty {
		return nil, domain.ErrInsufficientStock
	}
	r.CurrentStock -= qty
	r.LastSoldQuantity = qty
	r.LastUpdated = testNow
	cp := *r
	return &cp, nil
}

func (s *memStore) IncrementOrCreate(ctx context.Context, storeID, productID string, qty int) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increment(storeID, productID, qty), nil
}

func (s *memStore) increment(storeID, productID string, qty int) *domain.InventoryRecord {
	key := [2]string{storeID, productID}
	r, ok := s.records[key]
	if !ok {
		r = &domain.InventoryRecord{StoreID: storeID, ProductID: productID, DailySalesSimulationBase: 1}
		s.records[key] = r
	}
	r.CurrentStock += qty
	r.LastReceiptQuantity = qty
	r.LastUpdated = testNow
	cp := *r
	return &cp
}

// BulkApply pops one queued error per call; a nil entry applies the ops.
func (s *memStore) BulkApply(ctx context.Context, ops []domain.StockOp) ([]domain.OpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bulkCalls++
	if len(s.bulkErrs) > 0 {
		err := s.bulkErrs[0]
		s.bulkErrs = s.bulkErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	res := make([]domain.OpResult, len(ops))
	for i, op := range ops {
		if op.Kind == domain.OpReceipt {
			s.increment(op.StoreID, op.ProductID, op.Quantity)
			res[i].Matched = true
			continue
		}
		_, err := s.decrement(op.StoreID, op.ProductID, op.Quantity)
		res[i].Matched = err == nil
	}
	return res, nil
}

func (s *memStore) List(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InventoryRecord
	for _, r := range s.records {
		if filter.StoreID != "" && r.StoreID != filter.StoreID {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// memCatalog is an in-memory Catalog.
type memCatalog struct {
	products   map[string]domain.Product
	stores     map[string]domain.Store
	pricing    domain.Pricing
	pricingErr error
	pricingHit int
}

func newMemCatalog(products []domain.Product, stores []domain.Store) *memCatalog {
	c := &memCatalog{products: map[string]domain.Product{}, stores: map[string]domain.Store{}}
	for _, p := range products {
		c.products[p.ProductID] = p
	}
	for _, s := range stores {
		c.stores[s.StoreID] = s
	}
	return c
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
	c.pricingHit++
	return c.pricing, c.pricingErr
}

// memCache mirrors the Redis idempotency guard.
type memCache struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMemCache() *memCache {
	return &memCache{keys: make(map[string]bool)}
}

func (m *memCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
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

// funcPredictor predicts with fn and records every vector it saw.
type funcPredictor struct {
	mu     sync.Mutex
	schema domain.FeatureSchema
	fn     func(v map[string]any) (float64, error)
	seen   []map[string]any
}

func (p *funcPredictor) Schema() domain.FeatureSchema { return p.schema }

func (p *funcPredictor) Predict(ctx context.Context, v domain.FeatureVector) (float64, error) {
	m := v.Map()
	p.mu.Lock()
	p.seen = append(p.seen, m)
	p.mu.Unlock()
	return p.fn(m)
}

func constPredictor(v float64) *funcPredictor {
	return &funcPredictor{
		schema: domain.DefaultFeatureSchema(),
		fn:     func(map[string]any) (float64, error) { return v, nil },
	}
}

// mockLoader is a testify mock of port.BulkLoader.
type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Reset(ctx context.Context, collection domain.Collection) error {
	return m.Called(ctx, collection).Error(0)
}

func (m *mockLoader) InsertProducts(ctx context.Context, products []domain.Product) error {
	return m.Called(ctx, products).Error(0)
}

func (m *mockLoader) InsertStores(ctx context.Context, stores []domain.Store) error {
	return m.Called(ctx, stores).Error(0)
}

func (m *mockLoader) InsertInventory(ctx context.Context, records []domain.InventoryRecord) error {
	return m.Called(ctx, records).Error(0)
}

var errBoom = errors.New("boom")
