package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAmount indicates the amount violates the type's sign rule.
	ErrInvalidAmount = errors.New("ledger: invalid amount for transaction type")
	// ErrPaymentMethodRequired indicates a PAYMENT without a method.
	ErrPaymentMethodRequired = errors.New("ledger: payment method required")
	// ErrEmptyBatch indicates a bulk payment with no items.
	ErrEmptyBatch = errors.New("ledger: bulk payment requires at least one item")
)

// InvalidTransactionTypeError reports a type string outside the closed set.
type InvalidTransactionTypeError struct {
	Value string
}

func (e *InvalidTransactionTypeError) Error() string {
	return fmt.Sprintf("ledger: unknown transaction type %q", e.Value)
}

// AccountNotFoundError reports every missing account id in one error rather
// than one at a time, so a bulk caller can fix its whole request at once.
type AccountNotFoundError struct {
	IDs []int64
}

func (e *AccountNotFoundError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "ledger: account not found: " + strings.Join(parts, ", ")
}

// DocumentConflictError reports an attempt to open a second account for a
// document that already has one. One account per originating document.
type DocumentConflictError struct {
	Kind       Kind
	DocumentID int64
}

func (e *DocumentConflictError) Error() string {
	return fmt.Sprintf("ledger: %s account already open for document %d", e.Kind, e.DocumentID)
}

// Invariant violation reasons.
const (
	ReasonNegativeTotal = "negative total"
	ReasonOverpayment   = "overpayment"
)

// InvariantViolationError signals that recalculating an account from its
// transaction log would break a domain invariant. The surrounding persistence
// transaction must be rolled back in full.
type InvariantViolationError struct {
	AccountID int64
	Reason    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("ledger: invariant violation on account %d: %s", e.AccountID, e.Reason)
}
