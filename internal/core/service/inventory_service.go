package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/metrics"
	"github.com/rl1809/stock-replenishment/internal/port"
)

type InventoryService struct {
	store   port.InventoryStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewInventoryService(store port.InventoryStore, m *metrics.Metrics, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		store:   store,
		metrics: m,
		logger:  logger.Named("inventory"),
	}
}

func (s *InventoryService) GetInventory(ctx context.Context, storeID, productID string) (*domain.InventoryRecord, error) {
	if err := validateKey(storeID, productID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, storeID, productID)
}

// RecordSale decrements stock by quantity. The sufficiency check and the
// decrement are one atomic store operation, so stock never goes negative.
func (s *InventoryService) RecordSale(ctx context.Context, storeID, productID string, quantity int) (rec *domain.InventoryRecord, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.RecordSale")
	span.SetAttributes(attribute.String("store_id", storeID), attribute.String("product_id", productID), attribute.Int("quantity", quantity))
	defer func() { endSpan(span, err) }()

	if err := validateMutation(storeID, productID, quantity); err != nil {
		return nil, err
	}

	rec, err = s.store.ConditionalDecrement(ctx, storeID, productID, quantity)
	s.metrics.StockMutations.WithLabelValues(string(domain.OpSale), resultLabel(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("record sale of %d for %s/%s: %w", quantity, storeID, productID, err)
	}

	s.logger.Debug("sale recorded",
		zap.String("store_id", storeID),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("new_stock", rec.CurrentStock))
	return rec, nil
}

// RecordReceipt increments stock by quantity, creating the record if needed.
func (s *InventoryService) RecordReceipt(ctx context.Context, storeID, productID string, quantity int) (rec *domain.InventoryRecord, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.RecordReceipt")
	span.SetAttributes(attribute.String("store_id", storeID), attribute.String("product_id", productID), attribute.Int("quantity", quantity))
	defer func() { endSpan(span, err) }()

	if err := validateMutation(storeID, productID, quantity); err != nil {
		return nil, err
	}

	rec, err = s.store.IncrementOrCreate(ctx, storeID, productID, quantity)
	s.metrics.StockMutations.WithLabelValues(string(domain.OpReceipt), resultLabel(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("record receipt of %d for %s/%s: %w", quantity, storeID, productID, err)
	}

	s.logger.Debug("receipt recorded",
		zap.String("store_id", storeID),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("new_stock", rec.CurrentStock))
	return rec, nil
}

func validateKey(storeID, productID string) error {
	if storeID == "" || productID == "" {
		return fmt.Errorf("%w: store_id and product_id are required", domain.ErrInvalidInput)
	}
	return nil
}

func validateMutation(storeID, productID string, quantity int) error {
	if err := validateKey(storeID, productID); err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", domain.ErrInvalidInput)
	}
	return nil
}
