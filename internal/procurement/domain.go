package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a committed purchase document. Committing it creates the
// payable ledger account and the kardex inflows in the same transaction.
type Purchase struct {
	ID         int64
	BusinessID int64
	SupplierID int64
	Sequence   string
	IssueDate  time.Time
	Subtotal   decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
	CreatedBy  int64
	CreatedAt  time.Time

	Lines []PurchaseLine
}

// PurchaseLine is one received product on a purchase.
type PurchaseLine struct {
	ID          int64
	PurchaseID  int64
	ProductID   int64
	WarehouseID int64
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	TaxPct      decimal.Decimal
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
}

// CommitPurchaseInput carries a validated purchase ready to commit. The
// idempotency key guards against a retried commit double-posting the ledger.
type CommitPurchaseInput struct {
	SupplierID     int64
	Sequence       string
	IssueDate      time.Time
	IdempotencyKey string
	Lines          []CommitPurchaseLineInput
}

// CommitPurchaseLineInput is one purchased line.
type CommitPurchaseLineInput struct {
	ProductID   int64
	WarehouseID int64
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	TaxPct      decimal.Decimal
}

// CommitResult reports what the commit produced.
type CommitResult struct {
	Purchase        Purchase
	LedgerAccountID int64
}
