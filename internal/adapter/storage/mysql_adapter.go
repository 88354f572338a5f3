package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

//go:embed schema.sql
var schema string

const inventoryColumns = `store_id, product_id, current_stock, daily_sales_simulation_base,
	last_sold_quantity, last_receipt_quantity, last_updated`

const (
	decrementQuery = `
		UPDATE inventory
		SET current_stock = current_stock - ?, last_sold_quantity = ?, last_updated = ?
		WHERE store_id = ? AND product_id = ? AND current_stock >= ?`

	upsertQuery = `
		INSERT INTO inventory (store_id, product_id, current_stock, daily_sales_simulation_base, last_receipt_quantity, last_updated)
		VALUES (?, ?, ?, 1, ?, ?)
		ON DUPLICATE KEY UPDATE
			current_stock = current_stock + VALUES(current_stock),
			last_receipt_quantity = VALUES(last_receipt_quantity),
			last_updated = VALUES(last_updated)`
)

var collectionTables = map[domain.Collection]string{
	domain.CollectionProducts:  "products",
	domain.CollectionStores:    "stores",
	domain.CollectionInventory: "inventory",
}

// MySQLAdapter is the inventory store, the product and store catalog, and
// the bulk loader. Stock only changes through single conditional
// statements, so concurrent sales cannot drive it negative.
type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

// EnsureSchema creates the tables if they do not exist.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return classify("create schema", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Get(ctx context.Context, storeID, productID string) (*domain.InventoryRecord, error) {
	return getInventory(ctx, m.db, storeID, productID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getInventory(ctx context.Context, q queryer, storeID, productID string) (*domain.InventoryRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory WHERE store_id = ? AND product_id = ?
		ORDER BY last_updated DESC LIMIT 1`, storeID, productID)

	rec, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inventory %s/%s: %w", storeID, productID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("query inventory", err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInventory(s scanner) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	err := s.Scan(&rec.StoreID, &rec.ProductID, &rec.CurrentStock, &rec.DailySalesSimulationBase,
		&rec.LastSoldQuantity, &rec.LastReceiptQuantity, &rec.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *MySQLAdapter) ConditionalDecrement(ctx context.Context, storeID, productID string, qty int) (*domain.InventoryRecord, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin tx", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, decrementQuery, qty, qty, m.now(), storeID, productID, qty)
	if err != nil {
		return nil, classify("decrement inventory", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, classify("decrement inventory", err)
	}
	if rows == 0 {
		// Nothing matched: either the record is missing or its stock is short.
		if _, err := getInventory(ctx, tx, storeID, productID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("sale of %d for %s/%s: %w", qty, storeID, productID, domain.ErrInsufficientStock)
	}

	rec, err := getInventory(ctx, tx, storeID, productID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decrement: %w: %w", domain.ErrUpstream, err)
	}
	return rec, nil
}

func (m *MySQLAdapter) IncrementOrCreate(ctx context.Context, storeID, productID string, qty int) (*domain.InventoryRecord, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertQuery, storeID, productID, qty, qty, m.now()); err != nil {
		return nil, classify("upsert inventory", err)
	}

	rec, err := getInventory(ctx, tx, storeID, productID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit receipt: %w: %w", domain.ErrUpstream, err)
	}
	return rec, nil
}

// BulkApply runs every op in one transaction with one prepared statement
// per op kind. RowsAffected tells which sales found enough stock.
func (m *MySQLAdapter) BulkApply(ctx context.Context, ops []domain.StockOp) ([]domain.OpResult, error) {
	now := m.now()
	execs, err := m.writeEach(ctx, len(ops), func(i int) (string, []any) {
		op := ops[i]
		if op.Kind == domain.OpReceipt {
			return upsertQuery, []any{op.StoreID, op.ProductID, op.Quantity, op.Quantity, now}
		}
		return decrementQuery, []any{op.Quantity, op.Quantity, now, op.StoreID, op.ProductID, op.Quantity}
	})
	if execs == nil {
		return nil, err
	}

	results := make([]domain.OpResult, len(ops))
	for i, e := range execs {
		results[i] = domain.OpResult{Matched: e.err == nil && e.rows > 0, Err: e.err}
	}
	return results, err
}

func (m *MySQLAdapter) List(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryRecord, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory`
	var args []any
	if filter.StoreID != "" {
		query += ` WHERE store_id = ?`
		args = append(args, filter.StoreID)
	}
	query += ` ORDER BY store_id, product_id`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list inventory", err)
	}
	defer rows.Close()

	var records []domain.InventoryRecord
	for rows.Next() {
		rec, err := scanInventory(rows)
		if err != nil {
			return nil, classify("scan inventory", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list inventory", err)
	}
	return records, nil
}

type execResult struct {
	rows int64
	err  error
}

// writeEach runs one statement per item inside a single transaction and
// keeps going past statement errors. A connection failure rolls the whole
// transaction back and is returned alone, so the caller may safely retry.
// Statement errors are reported per item and summarized in a
// *domain.BulkWriteError.
func (m *MySQLAdapter) writeEach(ctx context.Context, n int, stmt func(i int) (string, []any)) ([]execResult, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin bulk write", err)
	}
	defer tx.Rollback()

	prepared := make(map[string]*sql.Stmt)
	results := make([]execResult, n)
	var errs []error
	for i := range n {
		query, args := stmt(i)
		s, ok := prepared[query]
		if !ok {
			s, err = tx.PrepareContext(ctx, query)
			if err != nil {
				return nil, classify("prepare bulk statement", err)
			}
			prepared[query] = s
		}

		res, err := s.ExecContext(ctx, args...)
		if err != nil {
			err = classify(fmt.Sprintf("bulk item %d", i), err)
			if errors.Is(err, domain.ErrConnection) || ctx.Err() != nil {
				return nil, err
			}
			results[i].err = err
			errs = append(errs, err)
			continue
		}
		results[i].rows, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk write: %w: %w", domain.ErrUpstream, err)
	}
	if len(errs) > 0 {
		return results, &domain.BulkWriteError{Applied: n - len(errs), Failed: len(errs), Cause: errors.Join(errs...)}
	}
	return results, nil
}

// classify wraps a driver error as a connection failure or a plain
// upstream failure. Context errors pass through unchanged.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConnection, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstream, err)
}
