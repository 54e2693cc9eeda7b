package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andino-erp/andino-erp/internal/shared"
)

// MetricsPort records ledger domain metrics. Implementations must tolerate
// being nil-checked away in tests.
type MetricsPort interface {
	RecordPost(kind Kind, txType TransactionType)
	RecordViolation(reason string)
}

// Service coordinates ledger postings and queries.
type Service struct {
	repo    RepositoryPort
	metrics MetricsPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, metrics: metrics}
}

func (s *Service) scope(ctx context.Context, kind Kind) (shared.AuthContext, Scope, error) {
	auth := shared.AuthFromContext(ctx)
	if !auth.Complete() {
		return auth, Scope{}, shared.ErrAuthContextIncomplete
	}
	scope := Scope{BusinessID: auth.BusinessID, Kind: kind}
	if !auth.IsAdmin() {
		scope.CreatedBy = auth.UserID
	}
	return auth, scope, nil
}

// PostTransaction appends one typed transaction to an account and refolds its
// derived fields, all inside one persistence transaction. Any invariant
// violation rolls the whole post back; nothing partially applied is ever
// observable.
func (s *Service) PostTransaction(ctx context.Context, kind Kind, accountID int64, input PostTransactionInput) (Account, error) {
	auth, scope, err := s.scope(ctx, kind)
	if err != nil {
		return Account{}, err
	}
	txType, err := ParseTransactionType(input.Type)
	if err != nil {
		return Account{}, err
	}
	if !validAmount(txType, input.Amount) {
		return Account{}, ErrInvalidAmount
	}
	if txType == TypePayment && strings.TrimSpace(input.PaymentMethod) == "" {
		return Account{}, ErrPaymentMethodRequired
	}

	var refreshed Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.LockAccount(ctx, scope, accountID)
		if err != nil {
			return err
		}
		if _, err := tx.InsertTransaction(ctx, Transaction{
			AccountID:      acc.ID,
			Type:           txType,
			Amount:         input.Amount,
			PaymentMethod:  strings.TrimSpace(input.PaymentMethod),
			Reference:      input.Reference,
			PaymentDetails: input.PaymentDetails,
			Notes:          input.Notes,
			CreatedBy:      auth.UserID,
		}); err != nil {
			return err
		}
		refreshed, err = s.refold(ctx, tx, acc)
		return err
	})
	if err != nil {
		s.recordViolation(err)
		return Account{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordPost(refreshed.Kind, txType)
	}
	return refreshed, nil
}

// PostBulkPayments applies one payment method across many accounts
// atomically. Amounts referencing the same account are coalesced before
// validation; a failure on any account aborts the entire batch.
func (s *Service) PostBulkPayments(ctx context.Context, kind Kind, input BulkPaymentInput) ([]Account, error) {
	auth, scope, err := s.scope(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, ErrEmptyBatch
	}
	method := strings.TrimSpace(input.PaymentMethod)
	if method == "" {
		return nil, ErrPaymentMethodRequired
	}

	coalesced, order, err := coalesceItems(input.Items)
	if err != nil {
		return nil, err
	}

	var refreshed []Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.LockAccounts(ctx, scope, order)
		if err != nil {
			return err
		}
		refreshed = refreshed[:0]
		for _, acc := range accounts {
			if _, err := tx.InsertTransaction(ctx, Transaction{
				AccountID:     acc.ID,
				Type:          TypePayment,
				Amount:        coalesced[acc.ID],
				PaymentMethod: method,
				Notes:         input.Notes,
				CreatedBy:     auth.UserID,
			}); err != nil {
				return err
			}
			view, err := s.refold(ctx, tx, acc)
			if err != nil {
				return err
			}
			refreshed = append(refreshed, view)
		}
		return nil
	})
	if err != nil {
		s.recordViolation(err)
		return nil, err
	}
	if s.metrics != nil {
		for _, acc := range refreshed {
			s.metrics.RecordPost(acc.Kind, TypePayment)
		}
	}
	return refreshed, nil
}

// OpenAccount creates the ledger account for a committed originating document
// together with its initial CHARGE.
func (s *Service) OpenAccount(ctx context.Context, input OpenAccountInput) (Account, error) {
	auth, _, err := s.scope(ctx, input.Kind)
	if err != nil {
		return Account{}, err
	}
	var acc Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err = OpenAccountInTx(ctx, tx, auth, input)
		return err
	})
	if err != nil {
		s.recordViolation(err)
		return Account{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordPost(acc.Kind, TypeCharge)
	}
	return acc, nil
}

// OpenAccountInTx runs the account-opening inside a caller-owned transaction.
// Document commit workflows use this to keep the document, its ledger account
// and its inventory movements in one atomic unit.
func OpenAccountInTx(ctx context.Context, tx TxRepository, auth shared.AuthContext, input OpenAccountInput) (Account, error) {
	if input.Kind != KindPayable && input.Kind != KindReceivable {
		return Account{}, &InvalidTransactionTypeError{Value: string(input.Kind)}
	}
	if !input.Principal.IsPositive() {
		return Account{}, ErrInvalidAmount
	}
	acc := Account{
		Kind:           input.Kind,
		BusinessID:     auth.BusinessID,
		CounterpartyID: input.CounterpartyID,
		DocumentID:     input.DocumentID,
		DocumentSeq:    input.DocumentSeq,
		Status:         StatusOpen,
		CreatedBy:      auth.UserID,
	}
	id, err := tx.InsertAccount(ctx, acc)
	if err != nil {
		return Account{}, err
	}
	acc.ID = id
	if _, err := tx.InsertTransaction(ctx, Transaction{
		AccountID: id,
		Type:      TypeCharge,
		Amount:    input.Principal,
		Reference: input.DocumentSeq,
		Notes:     input.Notes,
		CreatedBy: auth.UserID,
	}); err != nil {
		return Account{}, err
	}
	txs, err := tx.ListTransactions(ctx, id)
	if err != nil {
		return Account{}, err
	}
	derived, err := Recalculate(id, txs)
	if err != nil {
		return Account{}, err
	}
	if err := tx.UpdateDerived(ctx, id, derived); err != nil {
		return Account{}, err
	}
	acc.Total = derived.Total
	acc.Balance = derived.Balance
	acc.Status = derived.Status
	acc.Transactions = txs
	return acc, nil
}

// refold reloads the full transaction list, recomputes the derived fields and
// persists them, returning the refreshed account view.
func (s *Service) refold(ctx context.Context, tx TxRepository, acc Account) (Account, error) {
	txs, err := tx.ListTransactions(ctx, acc.ID)
	if err != nil {
		return Account{}, err
	}
	derived, err := Recalculate(acc.ID, txs)
	if err != nil {
		return Account{}, err
	}
	if err := tx.UpdateDerived(ctx, acc.ID, derived); err != nil {
		return Account{}, err
	}
	acc.Total = derived.Total
	acc.Balance = derived.Balance
	acc.Status = derived.Status
	acc.Transactions = txs
	return acc, nil
}

func (s *Service) recordViolation(err error) {
	if s.metrics == nil {
		return
	}
	if viol, ok := err.(*InvariantViolationError); ok {
		s.metrics.RecordViolation(viol.Reason)
	}
}

// GetAccount returns one account with its transaction log.
func (s *Service) GetAccount(ctx context.Context, kind Kind, id int64) (Account, error) {
	_, scope, err := s.scope(ctx, kind)
	if err != nil {
		return Account{}, err
	}
	return s.repo.GetAccount(ctx, scope, id)
}

// ListAccounts returns a page of accounts matching the filter.
func (s *Service) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, shared.Pagination, error) {
	_, scope, err := s.scope(ctx, filter.Kind)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	accounts, total, err := s.repo.ListAccounts(ctx, scope, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return accounts, shared.NewPagination(shared.PageRequest{Page: filter.Page, Limit: filter.Limit}, total), nil
}

// ListGrouped aggregates balances per counterparty, paginated over groups.
func (s *Service) ListGrouped(ctx context.Context, filter ListFilter) ([]AccountSummary, shared.Pagination, error) {
	_, scope, err := s.scope(ctx, filter.Kind)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	groups, total, err := s.repo.ListGrouped(ctx, scope, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return groups, shared.NewPagination(shared.PageRequest{Page: filter.Page, Limit: filter.Limit}, total), nil
}

// coalesceItems sums duplicate account references, preserving first-seen
// order, and validates the summed amounts.
func coalesceItems(items []BulkPaymentItem) (map[int64]decimal.Decimal, []int64, error) {
	coalesced := make(map[int64]decimal.Decimal, len(items))
	var order []int64
	for _, item := range items {
		if item.AccountID <= 0 {
			return nil, nil, &AccountNotFoundError{IDs: []int64{item.AccountID}}
		}
		if _, seen := coalesced[item.AccountID]; !seen {
			order = append(order, item.AccountID)
		}
		coalesced[item.AccountID] = coalesced[item.AccountID].Add(item.Amount)
	}
	for _, id := range order {
		if !coalesced[id].IsPositive() {
			return nil, nil, ErrInvalidAmount
		}
	}
	return coalesced, order, nil
}
