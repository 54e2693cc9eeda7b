// Package masterdata is the read-side collaborator for the ledger engines.
// Entity CRUD lives upstream; this package only resolves the references the
// engines need (business headers, products, counterparties, stock totals).
package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/andino-erp/andino-erp/internal/shared"
)

// Repository provides PostgreSQL backed lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// BusinessHeader returns tenant display fields for report headers.
func (r *Repository) BusinessHeader(ctx context.Context, businessID int64) (name, address, ruc string, err error) {
	err = r.pool.QueryRow(ctx, `SELECT name, address, ruc FROM businesses WHERE id=$1`, businessID).
		Scan(&name, &address, &ruc)
	if errors.Is(err, pgx.ErrNoRows) {
		err = shared.ErrNotFound
	}
	return name, address, ruc, err
}

// ProductHeader returns product display fields for report headers.
func (r *Repository) ProductHeader(ctx context.Context, businessID, productID int64) (sku, name string, err error) {
	err = r.pool.QueryRow(ctx, `SELECT sku, name FROM products WHERE id=$1 AND business_id=$2`, productID, businessID).
		Scan(&sku, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		err = shared.ErrNotFound
	}
	return sku, name, err
}

// CurrentStock returns the product's real stock summed across warehouses.
// This is the anchor the kardex report reconstructs backward from.
func (r *Repository) CurrentStock(ctx context.Context, businessID, productID int64) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM product_stocks WHERE business_id=$1 AND product_id=$2`,
		businessID, productID).Scan(&qty)
	return qty, err
}

// CounterpartyExists checks a supplier/customer reference inside the tenant.
func (r *Repository) CounterpartyExists(ctx context.Context, businessID, counterpartyID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM counterparties WHERE id=$1 AND business_id=$2)`,
		counterpartyID, businessID).Scan(&exists)
	return exists, err
}

// StockTx exposes the stock mutation used by document commit workflows;
// stock totals belong to the product/warehouse entity, not the kardex log.
type StockTx interface {
	AddStock(ctx context.Context, businessID, productID, warehouseID int64, qty decimal.Decimal) error
}

type stockTx struct {
	tx pgx.Tx
}

// NewStockTx wraps a caller-owned transaction.
func NewStockTx(tx pgx.Tx) StockTx {
	return &stockTx{tx: tx}
}

func (s *stockTx) AddStock(ctx context.Context, businessID, productID, warehouseID int64, qty decimal.Decimal) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO product_stocks (business_id, product_id, warehouse_id, qty, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (business_id, product_id, warehouse_id) DO UPDATE SET qty = product_stocks.qty + EXCLUDED.qty, updated_at = NOW()`,
		businessID, productID, warehouseID, qty)
	return err
}
