package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind selects which side of the ledger an account lives on. Payable and
// receivable accounts are structurally identical, mirrored for supplier-owed
// versus customer-owed money.
type Kind string

const (
	KindPayable    Kind = "PAYABLE"
	KindReceivable Kind = "RECEIVABLE"
)

// ParseKind normalizes a kind string from the route.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindPayable:
		return KindPayable, true
	case KindReceivable:
		return KindReceivable, true
	}
	return "", false
}

// AccountStatus is derived from the transaction log, never set directly.
type AccountStatus string

const (
	StatusOpen          AccountStatus = "OPEN"
	StatusPartiallyPaid AccountStatus = "PARTIALLY_PAID"
	StatusPaid          AccountStatus = "PAID"
)

// TransactionType enumerates the typed movements an account accepts.
type TransactionType string

const (
	TypeCharge     TransactionType = "CHARGE"
	TypePayment    TransactionType = "PAYMENT"
	TypeCreditNote TransactionType = "CREDIT_NOTE"
	TypeAdjustment TransactionType = "ADJUSTMENT"
)

// ParseTransactionType normalizes a caller-supplied type string. Matching is
// case-insensitive and trimmed; anything outside the closed set fails.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeCharge:
		return TypeCharge, nil
	case TypePayment:
		return TypePayment, nil
	case TypeCreditNote:
		return TypeCreditNote, nil
	case TypeAdjustment:
		return TypeAdjustment, nil
	}
	return "", &InvalidTransactionTypeError{Value: s}
}

// Account is a running-balance record derived from its transaction log.
// Total, Balance and Status are recomputed from the full log on every post;
// there is no incrementally-updated counter that can drift.
type Account struct {
	ID             int64
	Kind           Kind
	BusinessID     int64
	CounterpartyID int64
	DocumentID     int64
	DocumentSeq    string
	Total          decimal.Decimal
	Balance        decimal.Decimal
	Status         AccountStatus
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Transactions []Transaction
}

// Transaction is one immutable, append-only entry on an account.
type Transaction struct {
	ID             int64
	AccountID      int64
	Type           TransactionType
	Amount         decimal.Decimal
	PaymentMethod  string
	Reference      string
	PaymentDetails string
	Notes          string
	CreatedBy      int64
	CreatedAt      time.Time
}

// AccountSummary is a grouped listing row: one counterparty with the sum of
// open balances across its accounts.
type AccountSummary struct {
	CounterpartyID   int64
	CounterpartyName string
	CounterpartyDoc  string
	AccountCount     int
	TotalBalance     decimal.Decimal
}

// --- Input DTOs ---

// PostTransactionInput carries a single-transaction post.
type PostTransactionInput struct {
	Type           string
	Amount         decimal.Decimal
	PaymentMethod  string
	Reference      string
	PaymentDetails string
	Notes          string
}

// BulkPaymentItem references one account inside a bulk payment.
type BulkPaymentItem struct {
	AccountID int64
	Amount    decimal.Decimal
}

// BulkPaymentInput carries a payment applied to many accounts atomically.
type BulkPaymentInput struct {
	PaymentMethod string
	Notes         string
	Items         []BulkPaymentItem
}

// OpenAccountInput creates the ledger account for a committed document, with
// its initial CHARGE. One account per originating document.
type OpenAccountInput struct {
	Kind           Kind
	CounterpartyID int64
	DocumentID     int64
	DocumentSeq    string
	Principal      decimal.Decimal
	Notes          string
}

// ListFilter narrows account listings. Keyword matches counterparty name or
// document number and the originating document sequence, accent-insensitive.
type ListFilter struct {
	Kind           Kind
	CounterpartyID int64
	Keyword        string
	Page           int
	Limit          int
}
