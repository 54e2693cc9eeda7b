package ledger

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andino-erp/andino-erp/internal/shared"
)

type memoryLedgerRepo struct {
	accounts     map[int64]Account
	transactions map[int64][]Transaction
	nextAccID    int64
	nextTxID     int64
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		accounts:     make(map[int64]Account),
		transactions: make(map[int64][]Transaction),
	}
}

func (r *memoryLedgerRepo) snapshot() *memoryLedgerRepo {
	cp := newMemoryLedgerRepo()
	cp.nextAccID = r.nextAccID
	cp.nextTxID = r.nextTxID
	for id, acc := range r.accounts {
		cp.accounts[id] = acc
	}
	for id, txs := range r.transactions {
		cp.transactions[id] = append([]Transaction(nil), txs...)
	}
	return cp
}

// WithTx mimics rollback: any error from the callback restores the state
// captured before it ran.
func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.accounts = saved.accounts
		r.transactions = saved.transactions
		r.nextAccID = saved.nextAccID
		r.nextTxID = saved.nextTxID
		return err
	}
	return nil
}

func (r *memoryLedgerRepo) visible(acc Account, scope Scope) bool {
	if acc.BusinessID != scope.BusinessID || acc.Kind != scope.Kind {
		return false
	}
	return scope.CreatedBy == 0 || acc.CreatedBy == scope.CreatedBy
}

func (r *memoryLedgerRepo) GetAccount(ctx context.Context, scope Scope, id int64) (Account, error) {
	acc, ok := r.accounts[id]
	if !ok || !r.visible(acc, scope) {
		return Account{}, &AccountNotFoundError{IDs: []int64{id}}
	}
	acc.Transactions = append([]Transaction(nil), r.transactions[id]...)
	return acc, nil
}

func (r *memoryLedgerRepo) ListAccounts(ctx context.Context, scope Scope, filter ListFilter) ([]Account, int, error) {
	var out []Account
	for _, acc := range r.accounts {
		if acc.Kind == filter.Kind && r.visible(acc, scope) {
			out = append(out, acc)
		}
	}
	return out, len(out), nil
}

func (r *memoryLedgerRepo) ListGrouped(ctx context.Context, scope Scope, filter ListFilter) ([]AccountSummary, int, error) {
	return nil, 0, nil
}

func (r *memoryLedgerRepo) InsertAccount(ctx context.Context, acc Account) (int64, error) {
	for _, existing := range r.accounts {
		if existing.BusinessID == acc.BusinessID && existing.Kind == acc.Kind && existing.DocumentID == acc.DocumentID {
			return 0, &DocumentConflictError{Kind: acc.Kind, DocumentID: acc.DocumentID}
		}
	}
	r.nextAccID++
	acc.ID = r.nextAccID
	r.accounts[acc.ID] = acc
	return acc.ID, nil
}

func (r *memoryLedgerRepo) LockAccount(ctx context.Context, scope Scope, id int64) (Account, error) {
	return r.GetAccount(ctx, scope, id)
}

func (r *memoryLedgerRepo) LockAccounts(ctx context.Context, scope Scope, ids []int64) ([]Account, error) {
	var accounts []Account
	var missing []int64
	for _, id := range ids {
		acc, ok := r.accounts[id]
		if !ok || !r.visible(acc, scope) {
			missing = append(missing, id)
			continue
		}
		accounts = append(accounts, acc)
	}
	if len(missing) > 0 {
		return nil, &AccountNotFoundError{IDs: missing}
	}
	return accounts, nil
}

func (r *memoryLedgerRepo) InsertTransaction(ctx context.Context, tx Transaction) (int64, error) {
	r.nextTxID++
	tx.ID = r.nextTxID
	r.transactions[tx.AccountID] = append(r.transactions[tx.AccountID], tx)
	return tx.ID, nil
}

func (r *memoryLedgerRepo) ListTransactions(ctx context.Context, accountID int64) ([]Transaction, error) {
	return append([]Transaction(nil), r.transactions[accountID]...), nil
}

func (r *memoryLedgerRepo) UpdateDerived(ctx context.Context, accountID int64, d Derived) error {
	acc, ok := r.accounts[accountID]
	if !ok {
		return &AccountNotFoundError{IDs: []int64{accountID}}
	}
	acc.Total = d.Total
	acc.Balance = d.Balance
	acc.Status = d.Status
	r.accounts[accountID] = acc
	return nil
}

type recordedMetrics struct {
	posts      int
	violations []string
}

func (m *recordedMetrics) RecordPost(kind Kind, txType TransactionType) { m.posts++ }
func (m *recordedMetrics) RecordViolation(reason string)                { m.violations = append(m.violations, reason) }

func authedCtx() context.Context {
	return shared.ContextWithAuth(context.Background(), shared.AuthContext{
		BusinessID:      1,
		UserID:          9,
		EstablishmentID: 1,
		Role:            shared.RoleAdmin,
	})
}

var nextTestDocID atomic.Int64

func openTestAccount(t *testing.T, svc *Service, principal string) Account {
	t.Helper()
	acc, err := svc.OpenAccount(authedCtx(), OpenAccountInput{
		Kind:           KindPayable,
		CounterpartyID: 10,
		DocumentID:     100 + nextTestDocID.Add(1),
		DocumentSeq:    "001-001-000000123",
		Principal:      dec(principal),
	})
	require.NoError(t, err)
	return acc
}

func TestOpenAccountCreatesInitialCharge(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	acc := openTestAccount(t, svc, "150")
	require.True(t, acc.Total.Equal(dec("150")))
	require.True(t, acc.Balance.Equal(dec("150")))
	require.Equal(t, StatusOpen, acc.Status)
	require.Len(t, acc.Transactions, 1)
	require.Equal(t, TypeCharge, acc.Transactions[0].Type)
}

func TestPostTransactionLifecycle(t *testing.T) {
	repo := newMemoryLedgerRepo()
	metrics := &recordedMetrics{}
	svc := NewService(repo, metrics)

	acc := openTestAccount(t, svc, "150")

	acc, err := svc.PostTransaction(authedCtx(), KindPayable, acc.ID, PostTransactionInput{
		Type: "PAYMENT", Amount: dec("50"), PaymentMethod: "CASH",
	})
	require.NoError(t, err)
	require.True(t, acc.Balance.Equal(dec("100")))
	require.Equal(t, StatusPartiallyPaid, acc.Status)

	acc, err = svc.PostTransaction(authedCtx(), KindPayable, acc.ID, PostTransactionInput{
		Type: "PAYMENT", Amount: dec("100"), PaymentMethod: "TRANSFER",
	})
	require.NoError(t, err)
	require.True(t, acc.Balance.IsZero())
	require.Equal(t, StatusPaid, acc.Status)
	require.Equal(t, 3, metrics.posts)
}

func TestPostTransactionOverpaymentRollsBack(t *testing.T) {
	repo := newMemoryLedgerRepo()
	metrics := &recordedMetrics{}
	svc := NewService(repo, metrics)

	acc := openTestAccount(t, svc, "150")

	_, err := svc.PostTransaction(authedCtx(), KindPayable, acc.ID, PostTransactionInput{
		Type: "PAYMENT", Amount: dec("150.01"), PaymentMethod: "CASH",
	})
	var viol *InvariantViolationError
	require.ErrorAs(t, err, &viol)
	require.Equal(t, ReasonOverpayment, viol.Reason)
	require.Equal(t, []string{ReasonOverpayment}, metrics.violations)

	// The rejected payment must leave no trace.
	after, err := svc.GetAccount(authedCtx(), KindPayable, acc.ID)
	require.NoError(t, err)
	require.True(t, after.Balance.Equal(dec("150")))
	require.Equal(t, StatusOpen, after.Status)
	require.Len(t, after.Transactions, 1)
}

func TestPostTransactionValidation(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	acc := openTestAccount(t, svc, "100")

	_, err := svc.PostTransaction(authedCtx(), KindPayable, acc.ID, PostTransactionInput{
		Type: "REFUND", Amount: dec("10"),
	})
	var bad *InvalidTransactionTypeError
	require.ErrorAs(t, err, &bad)

	_, err = svc.PostTransaction(authedCtx(), KindPayable, acc.ID, PostTransactionInput{
		Type: "CHARGE", Amount: dec("-10"),
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.PostTransaction(authedCtx(), KindPayable, acc.ID, PostTransactionInput{
		Type: "PAYMENT", Amount: dec("10"),
	})
	require.ErrorIs(t, err, ErrPaymentMethodRequired)
}

func TestPostTransactionRequiresAuthContext(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	_, err := svc.PostTransaction(context.Background(), KindPayable, 1, PostTransactionInput{
		Type: "CHARGE", Amount: dec("10"),
	})
	require.ErrorIs(t, err, shared.ErrAuthContextIncomplete)
}

func TestPostTransactionTenantIsolation(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	acc := openTestAccount(t, svc, "100")

	otherTenant := shared.ContextWithAuth(context.Background(), shared.AuthContext{
		BusinessID: 2, UserID: 9, EstablishmentID: 1, Role: shared.RoleAdmin,
	})
	_, err := svc.PostTransaction(otherTenant, KindPayable, acc.ID, PostTransactionInput{
		Type: "PAYMENT", Amount: dec("10"), PaymentMethod: "CASH",
	})
	var notFound *AccountNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestBulkPaymentsAppliesToAllAccounts(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	a := openTestAccount(t, svc, "100")
	b := openTestAccount(t, svc, "200")

	updated, err := svc.PostBulkPayments(authedCtx(), KindPayable, BulkPaymentInput{
		PaymentMethod: "TRANSFER",
		Items: []BulkPaymentItem{
			{AccountID: a.ID, Amount: dec("100")},
			{AccountID: b.ID, Amount: dec("50")},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated, 2)

	byID := map[int64]Account{}
	for _, acc := range updated {
		byID[acc.ID] = acc
	}
	require.Equal(t, StatusPaid, byID[a.ID].Status)
	require.True(t, byID[b.ID].Balance.Equal(dec("150")))
	require.Equal(t, StatusPartiallyPaid, byID[b.ID].Status)
}

func TestBulkPaymentsAllOrNothing(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	a := openTestAccount(t, svc, "100")
	b := openTestAccount(t, svc, "200")

	// Second item overpays account b, so nothing may apply to account a.
	_, err := svc.PostBulkPayments(authedCtx(), KindPayable, BulkPaymentInput{
		PaymentMethod: "CASH",
		Items: []BulkPaymentItem{
			{AccountID: a.ID, Amount: dec("100")},
			{AccountID: b.ID, Amount: dec("200.01")},
		},
	})
	var viol *InvariantViolationError
	require.ErrorAs(t, err, &viol)

	afterA, err := svc.GetAccount(authedCtx(), KindPayable, a.ID)
	require.NoError(t, err)
	require.True(t, afterA.Balance.Equal(dec("100")))
	require.Len(t, afterA.Transactions, 1)
	afterB, err := svc.GetAccount(authedCtx(), KindPayable, b.ID)
	require.NoError(t, err)
	require.True(t, afterB.Balance.Equal(dec("200")))
}

func TestBulkPaymentsCoalescesDuplicateAccounts(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	a := openTestAccount(t, svc, "100")

	updated, err := svc.PostBulkPayments(authedCtx(), KindPayable, BulkPaymentInput{
		PaymentMethod: "CASH",
		Items: []BulkPaymentItem{
			{AccountID: a.ID, Amount: dec("50")},
			{AccountID: a.ID, Amount: dec("25")},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	require.True(t, updated[0].Balance.Equal(dec("25")))

	after, err := svc.GetAccount(authedCtx(), KindPayable, a.ID)
	require.NoError(t, err)
	// One coalesced PAYMENT of 75, not two rows.
	require.Len(t, after.Transactions, 2)
	require.True(t, after.Transactions[1].Amount.Equal(dec("75")))
}

func TestBulkPaymentsReportsAllMissingAccounts(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	a := openTestAccount(t, svc, "100")

	_, err := svc.PostBulkPayments(authedCtx(), KindPayable, BulkPaymentInput{
		PaymentMethod: "CASH",
		Items: []BulkPaymentItem{
			{AccountID: a.ID, Amount: dec("10")},
			{AccountID: 888, Amount: dec("10")},
			{AccountID: 999, Amount: dec("10")},
		},
	})
	var notFound *AccountNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.ElementsMatch(t, []int64{888, 999}, notFound.IDs)
}

func TestBulkPaymentsEmptyAndMethodValidation(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	_, err := svc.PostBulkPayments(authedCtx(), KindPayable, BulkPaymentInput{PaymentMethod: "CASH"})
	require.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.PostBulkPayments(authedCtx(), KindPayable, BulkPaymentInput{
		Items: []BulkPaymentItem{{AccountID: 1, Amount: dec("10")}},
	})
	require.ErrorIs(t, err, ErrPaymentMethodRequired)
}

func TestCoalesceItemsRejectsNonPositiveNet(t *testing.T) {
	_, _, err := coalesceItems([]BulkPaymentItem{
		{AccountID: 1, Amount: dec("10")},
		{AccountID: 1, Amount: dec("-10")},
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestOperatorSeesOnlyOwnAccounts(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	acc := openTestAccount(t, svc, "100")

	operator := shared.ContextWithAuth(context.Background(), shared.AuthContext{
		BusinessID: 1, UserID: 77, EstablishmentID: 1, Role: shared.RoleOperator,
	})
	_, err := svc.GetAccount(operator, KindPayable, acc.ID)
	var notFound *AccountNotFoundError
	require.ErrorAs(t, err, &notFound)

	// The creating user, even as operator, still sees it.
	creator := shared.ContextWithAuth(context.Background(), shared.AuthContext{
		BusinessID: 1, UserID: 9, EstablishmentID: 1, Role: shared.RoleOperator,
	})
	got, err := svc.GetAccount(creator, KindPayable, acc.ID)
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
}

func TestOpenAccountRejectsDuplicateDocument(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)

	input := OpenAccountInput{
		Kind:           KindPayable,
		CounterpartyID: 10,
		DocumentID:     500,
		DocumentSeq:    "001-001-000000500",
		Principal:      dec("100"),
	}
	_, err := svc.OpenAccount(authedCtx(), input)
	require.NoError(t, err)

	_, err = svc.OpenAccount(authedCtx(), input)
	var conflict *DocumentConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, KindPayable, conflict.Kind)
	require.Equal(t, int64(500), conflict.DocumentID)

	// The same document may still back an account on the other side.
	input.Kind = KindReceivable
	_, err = svc.OpenAccount(authedCtx(), input)
	require.NoError(t, err)
}

func TestAccountNotReachableThroughWrongKind(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	acc := openTestAccount(t, svc, "100")

	var notFound *AccountNotFoundError
	_, err := svc.GetAccount(authedCtx(), KindReceivable, acc.ID)
	require.ErrorAs(t, err, &notFound)

	_, err = svc.PostTransaction(authedCtx(), KindReceivable, acc.ID, PostTransactionInput{
		Type: "PAYMENT", Amount: dec("10"), PaymentMethod: "CASH",
	})
	require.ErrorAs(t, err, &notFound)

	_, err = svc.PostBulkPayments(authedCtx(), KindReceivable, BulkPaymentInput{
		PaymentMethod: "CASH",
		Items:         []BulkPaymentItem{{AccountID: acc.ID, Amount: dec("10")}},
	})
	require.ErrorAs(t, err, &notFound)

	got, err := svc.GetAccount(authedCtx(), KindPayable, acc.ID)
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
}
