package ledger

import "github.com/shopspring/decimal"

// Derived holds the fields recomputed from an account's transaction log.
type Derived struct {
	Total   decimal.Decimal
	Balance decimal.Decimal
	Status  AccountStatus
}

// Recalculate folds the complete transaction list, in persisted insertion
// order, into the account's derived fields. It is deliberately a full refold
// rather than an incremental update: ledger accounts are bounded, low-volume
// logs, and refolding is what keeps the derived state from ever drifting.
//
// Violations come back as typed errors, not panics; the caller owns the
// rollback of whatever persistence transaction surrounds the post.
func Recalculate(accountID int64, txs []Transaction) (Derived, error) {
	principal := decimal.Zero
	payments := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case TypeCharge, TypeAdjustment:
			principal = principal.Add(tx.Amount)
		case TypeCreditNote:
			principal = principal.Sub(tx.Amount)
		case TypePayment:
			payments = payments.Add(tx.Amount)
		}
	}
	if principal.IsNegative() {
		return Derived{}, &InvariantViolationError{AccountID: accountID, Reason: ReasonNegativeTotal}
	}
	balance := principal.Sub(payments)
	if balance.IsNegative() {
		return Derived{}, &InvariantViolationError{AccountID: accountID, Reason: ReasonOverpayment}
	}

	status := StatusOpen
	switch {
	case balance.IsZero():
		status = StatusPaid
	case payments.IsPositive():
		status = StatusPartiallyPaid
	}
	return Derived{Total: principal, Balance: balance, Status: status}, nil
}

// validAmount enforces the per-type sign rule: strictly positive for CHARGE,
// PAYMENT and CREDIT_NOTE; non-zero for ADJUSTMENT, which may reduce the
// principal with a negative amount.
func validAmount(txType TransactionType, amount decimal.Decimal) bool {
	if txType == TypeAdjustment {
		return !amount.IsZero()
	}
	return amount.IsPositive()
}
