package port

import (
	"context"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	GetStore(ctx context.Context, storeID string) (*domain.Store, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// AveragePricing returns the catalog-wide mean price and discount
	AveragePricing(ctx context.Context) (domain.Pricing, error)
}
