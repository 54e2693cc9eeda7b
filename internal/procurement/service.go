package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/andino-erp/andino-erp/internal/kardex"
	"github.com/andino-erp/andino-erp/internal/ledger"
	"github.com/andino-erp/andino-erp/internal/masterdata"
	"github.com/andino-erp/andino-erp/internal/platform/db"
	"github.com/andino-erp/andino-erp/internal/shared"
)

var (
	// ErrNoLines indicates a purchase without lines.
	ErrNoLines = errors.New("procurement: at least one line is required")
	// ErrInvalidLine indicates a line with non-positive qty or negative cost.
	ErrInvalidLine = errors.New("procurement: line requires positive qty and non-negative unit cost")
	// ErrSupplierNotFound indicates the supplier reference does not resolve
	// inside the caller's tenant.
	ErrSupplierNotFound = errors.New("procurement: supplier not found")
	// ErrSequenceRequired indicates a blank document sequence.
	ErrSequenceRequired = errors.New("procurement: document sequence required")
)

var hundred = decimal.NewFromInt(100)

// priceLines computes per-line subtotal, tax and total plus document sums.
// Tax is a per-line percentage of the line subtotal.
func priceLines(inputs []CommitPurchaseLineInput) ([]PurchaseLine, decimal.Decimal, decimal.Decimal) {
	lines := make([]PurchaseLine, 0, len(inputs))
	subtotal := decimal.Zero
	taxAmount := decimal.Zero
	for _, in := range inputs {
		lineSubtotal := in.Qty.Mul(in.UnitCost)
		lineTax := lineSubtotal.Mul(in.TaxPct).Div(hundred)
		lines = append(lines, PurchaseLine{
			ProductID:   in.ProductID,
			WarehouseID: in.WarehouseID,
			Qty:         in.Qty,
			UnitCost:    in.UnitCost,
			TaxPct:      in.TaxPct,
			Subtotal:    lineSubtotal,
			TaxAmount:   lineTax,
			Total:       lineSubtotal.Add(lineTax),
		})
		subtotal = subtotal.Add(lineSubtotal)
		taxAmount = taxAmount.Add(lineTax)
	}
	return lines, subtotal, taxAmount
}

// Service commits purchase documents. A commit persists the purchase, opens
// the payable ledger account with its initial charge, appends the kardex
// inflows and bumps the stock totals, all in one database transaction.
type Service struct {
	repo        *Repository
	masterdata  *masterdata.Repository
	idempotency *shared.IdempotencyStore
}

// NewService builds Service.
func NewService(repo *Repository, md *masterdata.Repository, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, masterdata: md, idempotency: idem}
}

// CommitPurchase validates and commits a purchase atomically.
func (s *Service) CommitPurchase(ctx context.Context, input CommitPurchaseInput) (CommitResult, error) {
	auth := shared.AuthFromContext(ctx)
	if !auth.Complete() {
		return CommitResult{}, shared.ErrAuthContextIncomplete
	}
	if strings.TrimSpace(input.Sequence) == "" {
		return CommitResult{}, ErrSequenceRequired
	}
	if len(input.Lines) == 0 {
		return CommitResult{}, ErrNoLines
	}
	for _, line := range input.Lines {
		if line.ProductID <= 0 || line.WarehouseID <= 0 {
			return CommitResult{}, ErrInvalidLine
		}
		if !line.Qty.IsPositive() || line.UnitCost.IsNegative() || line.TaxPct.IsNegative() {
			return CommitResult{}, ErrInvalidLine
		}
	}
	exists, err := s.masterdata.CounterpartyExists(ctx, auth.BusinessID, input.SupplierID)
	if err != nil {
		return CommitResult{}, err
	}
	if !exists {
		return CommitResult{}, ErrSupplierNotFound
	}

	issueDate := input.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}

	purchase := Purchase{
		BusinessID: auth.BusinessID,
		SupplierID: input.SupplierID,
		Sequence:   strings.TrimSpace(input.Sequence),
		IssueDate:  issueDate,
		CreatedBy:  auth.UserID,
	}
	lines, subtotal, taxAmount := priceLines(input.Lines)
	purchase.Lines = lines
	purchase.Subtotal = subtotal
	purchase.TaxAmount = taxAmount
	purchase.Total = subtotal.Add(taxAmount)

	// Without a client key, a retried commit of the same document must still
	// be caught, so the fallback key is derived deterministically from the
	// tenant and document sequence.
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		key = uuid.NewSHA1(uuid.Nil, fmt.Appendf(nil, "purchase:%d:%s", auth.BusinessID, purchase.Sequence)).String()
	}
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "procurement"); err != nil {
			return CommitResult{}, err
		}
		insertedKey = true
	}

	var result CommitResult
	err = db.WithTx(ctx, s.repo.Pool(), func(tx pgx.Tx) error {
		purchaseTx := NewTxRepository(tx)
		purchaseID, err := purchaseTx.InsertPurchase(ctx, purchase)
		if err != nil {
			return err
		}
		purchase.ID = purchaseID

		movements := make([]kardex.AppendMovementInput, 0, len(purchase.Lines))
		for i := range purchase.Lines {
			purchase.Lines[i].PurchaseID = purchaseID
			lineID, err := purchaseTx.InsertPurchaseLine(ctx, purchase.Lines[i])
			if err != nil {
				return err
			}
			purchase.Lines[i].ID = lineID
			movements = append(movements, kardex.AppendMovementInput{
				ProductID:    purchase.Lines[i].ProductID,
				WarehouseID:  purchase.Lines[i].WarehouseID,
				MovementDate: issueDate,
				Qty:          purchase.Lines[i].Qty,
				UnitCost:     purchase.Lines[i].UnitCost,
				Reference:    fmt.Sprintf("%s#%d", purchase.Sequence, purchaseID),
			})
		}

		account, err := ledger.OpenAccountInTx(ctx, ledger.NewTxRepository(tx), auth, ledger.OpenAccountInput{
			Kind:           ledger.KindPayable,
			CounterpartyID: purchase.SupplierID,
			DocumentID:     purchaseID,
			DocumentSeq:    purchase.Sequence,
			Principal:      purchase.Total,
		})
		if err != nil {
			return err
		}

		if err := kardex.AppendPurchaseMovementsInTx(ctx, kardex.NewTxRepository(tx), auth, movements); err != nil {
			return err
		}

		stock := masterdata.NewStockTx(tx)
		for _, line := range purchase.Lines {
			if err := stock.AddStock(ctx, auth.BusinessID, line.ProductID, line.WarehouseID, line.Qty); err != nil {
				return err
			}
		}

		result = CommitResult{Purchase: purchase, LedgerAccountID: account.ID}
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return CommitResult{}, err
	}
	return result, nil
}
