package kardex

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andino-erp/andino-erp/internal/shared"
)

var (
	// ErrInvalidMovement indicates a movement with a non-positive quantity
	// or a negative unit cost.
	ErrInvalidMovement = errors.New("kardex: movement requires positive qty and non-negative unit cost")
	// ErrInvalidDateRange indicates dateTo before dateFrom.
	ErrInvalidDateRange = errors.New("kardex: dateTo must not precede dateFrom")
)

// StockPort resolves the current real stock of a product, summed across
// warehouses. Stock totals live with the product entity, maintained by the
// surrounding workflows, so the report anchors on them rather than assuming
// the movement log starts at zero.
type StockPort interface {
	CurrentStock(ctx context.Context, businessID, productID int64) (decimal.Decimal, error)
}

// HeaderPort resolves the business and product metadata for report headers.
type HeaderPort interface {
	BusinessHeader(ctx context.Context, businessID int64) (name, address, ruc string, err error)
	ProductHeader(ctx context.Context, businessID, productID int64) (sku, name string, err error)
}

// Service builds kardex reports and appends purchase movements.
type Service struct {
	repo    RepositoryPort
	stock   StockPort
	headers HeaderPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, stock StockPort, headers HeaderPort) *Service {
	return &Service{repo: repo, stock: stock, headers: headers}
}

// AppendPurchaseMovementsInTx appends one inflow per purchased line inside
// the caller's document transaction. No recalculation happens here: running
// figures are always derived by the report, never stored on the row.
func AppendPurchaseMovementsInTx(ctx context.Context, tx TxRepository, auth shared.AuthContext, inputs []AppendMovementInput) error {
	for _, in := range inputs {
		if !in.Qty.IsPositive() || in.UnitCost.IsNegative() {
			return ErrInvalidMovement
		}
		if in.ProductID <= 0 || in.WarehouseID <= 0 {
			return ErrInvalidMovement
		}
		date := in.MovementDate
		if date.IsZero() {
			date = time.Now().UTC()
		}
		if _, err := tx.InsertMovement(ctx, Movement{
			BusinessID:   auth.BusinessID,
			ProductID:    in.ProductID,
			WarehouseID:  in.WarehouseID,
			MovementDate: date,
			QtyIn:        in.Qty,
			QtyOut:       decimal.Zero,
			UnitCost:     in.UnitCost,
			TotalCost:    in.Qty.Mul(in.UnitCost),
			MovementType: MovementTypePurchase,
			Reference:    in.Reference,
		}); err != nil {
			return err
		}
	}
	return nil
}

// BuildReport reconstructs running stock and valuation over [DateFrom,
// DateTo]. The opening stock is rebuilt backward from the present-day anchor
// (current stock minus net movement since DateFrom), so the report stays
// consistent with real stock no matter how much history predates the window.
// The opening value accumulates forward from the true start of the log, which
// is complete for costs. Purely read-only.
func (s *Service) BuildReport(ctx context.Context, req ReportRequest) (Report, error) {
	auth := shared.AuthFromContext(ctx)
	if !auth.Complete() {
		return Report{}, shared.ErrAuthContextIncomplete
	}
	if req.DateTo.Before(req.DateFrom) {
		return Report{}, ErrInvalidDateRange
	}

	bizName, bizAddress, bizRUC, err := s.headers.BusinessHeader(ctx, auth.BusinessID)
	if err != nil {
		return Report{}, err
	}
	sku, productName, err := s.headers.ProductHeader(ctx, auth.BusinessID, req.ProductID)
	if err != nil {
		return Report{}, err
	}
	currentStock, err := s.stock.CurrentStock(ctx, auth.BusinessID, req.ProductID)
	if err != nil {
		return Report{}, err
	}

	netSince, err := s.repo.NetOnOrAfter(ctx, auth.BusinessID, req.ProductID, req.DateFrom)
	if err != nil {
		return Report{}, err
	}
	netBefore, err := s.repo.NetBefore(ctx, auth.BusinessID, req.ProductID, req.DateFrom)
	if err != nil {
		return Report{}, err
	}

	initialStock := currentStock.Sub(netSince.Qty)
	initialValue := netBefore.Value

	movements, err := s.repo.ListRange(ctx, auth.BusinessID, req.ProductID, req.DateFrom, req.DateTo)
	if err != nil {
		return Report{}, err
	}

	rows := make([]ReportRow, 0, len(movements)+1)
	rows = append(rows, ReportRow{
		Date:         req.DateFrom,
		Type:         ReportRowOpening,
		RunningStock: initialStock,
		RunningValue: initialValue,
	})

	runningStock := initialStock
	runningValue := initialValue
	for _, m := range movements {
		row := ReportRow{
			Date:          m.MovementDate,
			Type:          m.MovementType,
			WarehouseCode: m.WarehouseCode,
			Reference:     m.Reference,
		}
		if m.QtyIn.IsPositive() {
			qty, cost, total := m.QtyIn, m.UnitCost, m.TotalCost
			row.EntryQty, row.EntryCost, row.EntryTotal = &qty, &cost, &total
			runningStock = runningStock.Add(qty)
			runningValue = runningValue.Add(total)
		} else {
			qty, cost, total := m.QtyOut, m.UnitCost, m.TotalCost
			row.ExitQty, row.ExitCost, row.ExitTotal = &qty, &cost, &total
			runningStock = runningStock.Sub(qty)
			runningValue = runningValue.Sub(total)
		}
		row.RunningStock = runningStock
		row.RunningValue = runningValue
		rows = append(rows, row)
	}

	return Report{
		Header: ReportHeader{
			BusinessName:    bizName,
			BusinessAddress: bizAddress,
			BusinessRUC:     bizRUC,
			ProductSKU:      sku,
			ProductName:     productName,
			ReportDate:      time.Now().UTC(),
			DateFrom:        req.DateFrom,
			DateTo:          req.DateTo,
			CurrentStock:    currentStock,
		},
		Rows: rows,
	}, nil
}
