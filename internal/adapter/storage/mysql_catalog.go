package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

const productColumns = `product_id, name, category, price, discount, min_replenish_time,
	base_safety_stock, supplier_category_reliability`

func scanProduct(s scanner) (*domain.Product, error) {
	var (
		p    domain.Product
		lead sql.NullInt64
	)
	err := s.Scan(&p.ProductID, &p.Name, &p.Category, &p.Price, &p.Discount, &lead,
		&p.BaseSafetyStock, &p.SupplierReliability)
	if err != nil {
		return nil, err
	}
	if lead.Valid {
		v := int(lead.Int64)
		p.MinReplenishTime = &v
	}
	return &p, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = ?`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("query product", err)
	}
	return p, nil
}

func (m *MySQLAdapter) GetStore(ctx context.Context, storeID string) (*domain.Store, error) {
	var s domain.Store
	err := m.db.QueryRowContext(ctx, `SELECT store_id, region, name FROM stores WHERE store_id = ?`, storeID).
		Scan(&s.StoreID, &s.Region, &s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %s: %w", storeID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("query store", err)
	}
	return &s, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY product_id`)
	if err != nil {
		return nil, classify("list products", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, classify("scan product", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list products", err)
	}
	return products, nil
}

// AveragePricing averages price and discount over the products that carry
// them. A catalog without prices reports HasPrice == false.
func (m *MySQLAdapter) AveragePricing(ctx context.Context) (domain.Pricing, error) {
	var price, discount sql.NullFloat64
	err := m.db.QueryRowContext(ctx, `SELECT AVG(price), AVG(discount) FROM products`).Scan(&price, &discount)
	if err != nil {
		return domain.Pricing{}, classify("average pricing", err)
	}
	return domain.Pricing{
		Price:       price.Float64,
		HasPrice:    price.Valid,
		Discount:    discount.Float64,
		HasDiscount: discount.Valid,
	}, nil
}
