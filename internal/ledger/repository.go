package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andino-erp/andino-erp/internal/shared"
)

// Scope restricts every query to the caller's tenant and, for non-elevated
// callers, to accounts whose originating document they created. Kind pins
// lookups to the route's ledger side so a receivable account is not
// addressable through the payable routes.
type Scope struct {
	BusinessID int64
	CreatedBy  int64 // 0 means unrestricted (admin)
	Kind       Kind
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, scope Scope, id int64) (Account, error)
	ListAccounts(ctx context.Context, scope Scope, filter ListFilter) ([]Account, int, error)
	ListGrouped(ctx context.Context, scope Scope, filter ListFilter) ([]AccountSummary, int, error)
}

// TxRepository exposes the operations available inside one posting
// transaction. Accounts are always taken FOR UPDATE so two concurrent posts
// serialize on the read-modify-write of the transaction list.
type TxRepository interface {
	InsertAccount(ctx context.Context, acc Account) (int64, error)
	LockAccount(ctx context.Context, scope Scope, id int64) (Account, error)
	LockAccounts(ctx context.Context, scope Scope, ids []int64) ([]Account, error)
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	ListTransactions(ctx context.Context, accountID int64) ([]Transaction, error)
	UpdateDerived(ctx context.Context, accountID int64, d Derived) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository wraps a caller-owned transaction so document commit
// workflows can open accounts atomically with the document itself.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// WithTx wraps the callback in a repeatable-read transaction. Any error from
// the callback rolls the whole unit back before it returns.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const accountColumns = `a.id, a.kind, a.business_id, a.counterparty_id, a.document_id, a.document_seq,
a.total, a.balance, a.status, a.created_by, a.created_at, a.updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	err := row.Scan(&acc.ID, &acc.Kind, &acc.BusinessID, &acc.CounterpartyID, &acc.DocumentID, &acc.DocumentSeq,
		&acc.Total, &acc.Balance, &acc.Status, &acc.CreatedBy, &acc.CreatedAt, &acc.UpdatedAt)
	return acc, err
}

// GetAccount loads one account with its full transaction list.
func (r *Repository) GetAccount(ctx context.Context, scope Scope, id int64) (Account, error) {
	acc, err := scanAccount(r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM ledger_accounts a
WHERE a.id=$1 AND a.business_id=$2 AND ($3 = 0 OR a.created_by=$3) AND a.kind=$4`, accountColumns),
		id, scope.BusinessID, scope.CreatedBy, scope.Kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, &AccountNotFoundError{IDs: []int64{id}}
		}
		return Account{}, err
	}
	txs, err := listTransactions(ctx, r.pool, id)
	if err != nil {
		return Account{}, err
	}
	acc.Transactions = txs
	return acc, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listTransactions(ctx context.Context, q queryer, accountID int64) ([]Transaction, error) {
	// Insertion order is load-bearing: Recalculate folds in this order.
	rows, err := q.Query(ctx, `SELECT id, account_id, tx_type, amount, payment_method, reference, payment_details, notes, created_by, created_at
FROM ledger_transactions WHERE account_id=$1 ORDER BY id ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.PaymentMethod, &tx.Reference,
			&tx.PaymentDetails, &tx.Notes, &tx.CreatedBy, &tx.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ListAccounts returns a page of accounts plus the unpaginated total. The
// keyword matches the pre-folded counterparty search name, the counterparty
// document number, or the originating document sequence.
func (r *Repository) ListAccounts(ctx context.Context, scope Scope, filter ListFilter) ([]Account, int, error) {
	page := shared.PageRequest{Page: filter.Page, Limit: filter.Limit}.Normalize()
	keyword := "%" + shared.FoldKeyword(filter.Keyword) + "%"

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_accounts a
JOIN counterparties c ON c.id = a.counterparty_id
WHERE a.kind=$1 AND a.business_id=$2 AND ($3 = 0 OR a.created_by=$3)
  AND ($4 = 0 OR a.counterparty_id=$4)
  AND ($5 = '%%' OR c.search_name LIKE $5 OR c.doc_number ILIKE $5 OR a.document_seq ILIKE $5)`,
		filter.Kind, scope.BusinessID, scope.CreatedBy, filter.CounterpartyID, keyword).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM ledger_accounts a
JOIN counterparties c ON c.id = a.counterparty_id
WHERE a.kind=$1 AND a.business_id=$2 AND ($3 = 0 OR a.created_by=$3)
  AND ($4 = 0 OR a.counterparty_id=$4)
  AND ($5 = '%%%%' OR c.search_name LIKE $5 OR c.doc_number ILIKE $5 OR a.document_seq ILIKE $5)
ORDER BY a.id DESC LIMIT $6 OFFSET $7`, accountColumns),
		filter.Kind, scope.BusinessID, scope.CreatedBy, filter.CounterpartyID, keyword, page.Limit, page.Skip())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, total, rows.Err()
}

// ListGrouped aggregates sum(balance) per counterparty and paginates over
// counterparty groups, not over individual accounts.
func (r *Repository) ListGrouped(ctx context.Context, scope Scope, filter ListFilter) ([]AccountSummary, int, error) {
	page := shared.PageRequest{Page: filter.Page, Limit: filter.Limit}.Normalize()
	keyword := "%" + shared.FoldKeyword(filter.Keyword) + "%"

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT a.counterparty_id) FROM ledger_accounts a
JOIN counterparties c ON c.id = a.counterparty_id
WHERE a.kind=$1 AND a.business_id=$2 AND ($3 = 0 OR a.created_by=$3)
  AND ($4 = '%%' OR c.search_name LIKE $4 OR c.doc_number ILIKE $4)`,
		filter.Kind, scope.BusinessID, scope.CreatedBy, keyword).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT a.counterparty_id, c.name, c.doc_number, COUNT(*), COALESCE(SUM(a.balance), 0)
FROM ledger_accounts a
JOIN counterparties c ON c.id = a.counterparty_id
WHERE a.kind=$1 AND a.business_id=$2 AND ($3 = 0 OR a.created_by=$3)
  AND ($4 = '%%' OR c.search_name LIKE $4 OR c.doc_number ILIKE $4)
GROUP BY a.counterparty_id, c.name, c.doc_number
ORDER BY c.name ASC LIMIT $5 OFFSET $6`,
		filter.Kind, scope.BusinessID, scope.CreatedBy, keyword, page.Limit, page.Skip())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var groups []AccountSummary
	for rows.Next() {
		var g AccountSummary
		if err := rows.Scan(&g.CounterpartyID, &g.CounterpartyName, &g.CounterpartyDoc, &g.AccountCount, &g.TotalBalance); err != nil {
			return nil, 0, err
		}
		groups = append(groups, g)
	}
	return groups, total, rows.Err()
}

// --- transactional operations ---

// InsertAccount creates the account row. A document can only ever have one
// account per kind; the unique constraint surfaces as DocumentConflictError.
func (t *txRepo) InsertAccount(ctx context.Context, acc Account) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO ledger_accounts
(kind, business_id, counterparty_id, document_id, document_seq, total, balance, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		acc.Kind, acc.BusinessID, acc.CounterpartyID, acc.DocumentID, acc.DocumentSeq,
		acc.Total, acc.Balance, acc.Status, acc.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, &DocumentConflictError{Kind: acc.Kind, DocumentID: acc.DocumentID}
		}
		return 0, err
	}
	return id, nil
}

// LockAccount loads the account FOR UPDATE for the duration of the
// surrounding recalculate-and-persist.
func (t *txRepo) LockAccount(ctx context.Context, scope Scope, id int64) (Account, error) {
	acc, err := scanAccount(t.tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM ledger_accounts a
WHERE a.id=$1 AND a.business_id=$2 AND ($3 = 0 OR a.created_by=$3) AND a.kind=$4 FOR UPDATE`, accountColumns),
		id, scope.BusinessID, scope.CreatedBy, scope.Kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, &AccountNotFoundError{IDs: []int64{id}}
		}
		return Account{}, err
	}
	return acc, nil
}

// LockAccounts resolves and locks every requested account in ascending id
// order. Missing ids are reported together in one error before any mutation.
func (t *txRepo) LockAccounts(ctx context.Context, scope Scope, ids []int64) ([]Account, error) {
	rows, err := t.tx.Query(ctx, fmt.Sprintf(`SELECT %s FROM ledger_accounts a
WHERE a.id = ANY($1) AND a.business_id=$2 AND ($3 = 0 OR a.created_by=$3) AND a.kind=$4
ORDER BY a.id ASC FOR UPDATE`, accountColumns), ids, scope.BusinessID, scope.CreatedBy, scope.Kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[int64]bool, len(ids))
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		found[acc.ID] = true
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &AccountNotFoundError{IDs: missing}
	}
	return accounts, nil
}

func (t *txRepo) InsertTransaction(ctx context.Context, tx Transaction) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO ledger_transactions
(account_id, tx_type, amount, payment_method, reference, payment_details, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		tx.AccountID, tx.Type, tx.Amount, tx.PaymentMethod, tx.Reference, tx.PaymentDetails,
		tx.Notes, tx.CreatedBy, timeOrNow(tx.CreatedAt)).Scan(&id)
	return id, err
}

func (t *txRepo) ListTransactions(ctx context.Context, accountID int64) ([]Transaction, error) {
	return listTransactions(ctx, t.tx, accountID)
}

func (t *txRepo) UpdateDerived(ctx context.Context, accountID int64, d Derived) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ledger_accounts SET total=$2, balance=$3, status=$4, updated_at=NOW() WHERE id=$1`,
		accountID, d.Total, d.Balance, d.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return &AccountNotFoundError{IDs: []int64{accountID}}
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
