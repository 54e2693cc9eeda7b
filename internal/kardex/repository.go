package kardex

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// NetMovement aggregates quantity and value over a slice of the log.
type NetMovement struct {
	Qty   decimal.Decimal
	Value decimal.Decimal
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	// NetOnOrAfter sums qty_in-qty_out and the signed value of movements
	// dated on or after from. Used for anchor-backward reconstruction.
	NetOnOrAfter(ctx context.Context, businessID, productID int64, from time.Time) (NetMovement, error)
	// NetBefore sums movements strictly before from, forward from the true
	// beginning of the log.
	NetBefore(ctx context.Context, businessID, productID int64, from time.Time) (NetMovement, error)
	// ListRange returns movements within [from, to] in chronological order,
	// ties broken by insertion id. The ordering is load-bearing.
	ListRange(ctx context.Context, businessID, productID int64, from, to time.Time) ([]Movement, error)
}

// TxRepository exposes the append operation inside a caller-owned document
// transaction.
type TxRepository interface {
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// Repository persists kardex movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps a caller-owned transaction so document commits can
// append movements atomically with the document itself.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *Repository) NetOnOrAfter(ctx context.Context, businessID, productID int64, from time.Time) (NetMovement, error) {
	var net NetMovement
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty_in - qty_out), 0), COALESCE(SUM(CASE WHEN qty_in > 0 THEN total_cost ELSE -total_cost END), 0)
FROM kardex_movements WHERE business_id=$1 AND product_id=$2 AND movement_date >= $3`,
		businessID, productID, from).Scan(&net.Qty, &net.Value)
	return net, err
}

func (r *Repository) NetBefore(ctx context.Context, businessID, productID int64, from time.Time) (NetMovement, error) {
	var net NetMovement
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty_in - qty_out), 0), COALESCE(SUM(CASE WHEN qty_in > 0 THEN total_cost ELSE -total_cost END), 0)
FROM kardex_movements WHERE business_id=$1 AND product_id=$2 AND movement_date < $3`,
		businessID, productID, from).Scan(&net.Qty, &net.Value)
	return net, err
}

func (r *Repository) ListRange(ctx context.Context, businessID, productID int64, from, to time.Time) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.business_id, m.product_id, m.warehouse_id, COALESCE(w.code, ''),
m.movement_date, m.qty_in, m.qty_out, m.unit_cost, m.total_cost, m.movement_type, m.reference, m.created_at
FROM kardex_movements m
LEFT JOIN warehouses w ON w.id = m.warehouse_id
WHERE m.business_id=$1 AND m.product_id=$2 AND m.movement_date BETWEEN $3 AND $4
ORDER BY m.movement_date ASC, m.id ASC`, businessID, productID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.ProductID, &m.WarehouseID, &m.WarehouseCode,
			&m.MovementDate, &m.QtyIn, &m.QtyOut, &m.UnitCost, &m.TotalCost, &m.MovementType, &m.Reference, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (t *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO kardex_movements
(business_id, product_id, warehouse_id, movement_date, qty_in, qty_out, unit_cost, total_cost, movement_type, reference, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW()) RETURNING id`,
		m.BusinessID, m.ProductID, m.WarehouseID, m.MovementDate, m.QtyIn, m.QtyOut,
		m.UnitCost, m.TotalCost, m.MovementType, m.Reference).Scan(&id)
	return id, err
}
