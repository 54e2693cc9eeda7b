package procurement

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRepository exposes purchase persistence inside the commit transaction.
type TxRepository interface {
	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	InsertPurchaseLine(ctx context.Context, line PurchaseLine) (int64, error)
}

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for the commit transaction.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps a caller-owned transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (t *txRepository) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchases
(business_id, supplier_id, sequence, issue_date, subtotal, tax_amount, total, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		p.BusinessID, p.SupplierID, p.Sequence, p.IssueDate, p.Subtotal, p.TaxAmount, p.Total, p.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) InsertPurchaseLine(ctx context.Context, line PurchaseLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_lines
(purchase_id, product_id, warehouse_id, qty, unit_cost, tax_pct, subtotal, tax_amount, total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		line.PurchaseID, line.ProductID, line.WarehouseID, line.Qty, line.UnitCost, line.TaxPct,
		line.Subtotal, line.TaxAmount, line.Total).Scan(&id)
	return id, err
}
