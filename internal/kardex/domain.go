// Package kardex maintains the append-only inventory movement ledger and
// reconstructs running stock and valuation for reporting. Movements never
// carry a stored balance; every running figure is derived at read time.
package kardex

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementTypePurchase labels inflows created by the purchase workflow.
const MovementTypePurchase = "PURCHASE"

// ReportRowOpening labels the synthetic opening row of a report.
const ReportRowOpening = "SALDO_INICIAL"

// Movement is one immutable row of the inventory ledger. QtyIn and QtyOut are
// mutually exclusive; a row represents either an inflow or an outflow.
type Movement struct {
	ID            int64
	BusinessID    int64
	ProductID     int64
	WarehouseID   int64
	WarehouseCode string
	MovementDate  time.Time
	QtyIn         decimal.Decimal
	QtyOut        decimal.Decimal
	UnitCost      decimal.Decimal
	TotalCost     decimal.Decimal
	MovementType  string
	Reference     string
	CreatedAt     time.Time
}

// AppendMovementInput is one inflow appended by a committed purchase line.
type AppendMovementInput struct {
	ProductID    int64
	WarehouseID  int64
	MovementDate time.Time
	Qty          decimal.Decimal
	UnitCost     decimal.Decimal
	Reference    string
}

// ReportRequest asks for a point-in-time reconstruction over a date window.
type ReportRequest struct {
	ProductID int64
	DateFrom  time.Time
	DateTo    time.Time
}

// ReportHeader carries tenant and product metadata for the report.
type ReportHeader struct {
	BusinessName    string          `json:"businessName"`
	BusinessAddress string          `json:"businessAddress"`
	BusinessRUC     string          `json:"businessRuc"`
	ProductSKU      string          `json:"productSku"`
	ProductName     string          `json:"productName"`
	ReportDate      time.Time       `json:"reportDate"`
	DateFrom        time.Time       `json:"dateFrom"`
	DateTo          time.Time       `json:"dateTo"`
	CurrentStock    decimal.Decimal `json:"currentStock"`
}

// ReportRow is one line of the chronological walk. The opening row carries
// only the running columns.
type ReportRow struct {
	Date          time.Time        `json:"date"`
	Type          string           `json:"type"`
	WarehouseCode string           `json:"warehouseCode,omitempty"`
	Reference     string           `json:"reference,omitempty"`
	EntryQty      *decimal.Decimal `json:"entryQty,omitempty"`
	EntryCost     *decimal.Decimal `json:"entryCost,omitempty"`
	EntryTotal    *decimal.Decimal `json:"entryTotal,omitempty"`
	ExitQty       *decimal.Decimal `json:"exitQty,omitempty"`
	ExitCost      *decimal.Decimal `json:"exitCost,omitempty"`
	ExitTotal     *decimal.Decimal `json:"exitTotal,omitempty"`
	RunningStock  decimal.Decimal  `json:"runningStock"`
	RunningValue  decimal.Decimal  `json:"runningValue"`
}

// Report is the full reconstruction returned to the caller.
type Report struct {
	Header ReportHeader `json:"header"`
	Rows   []ReportRow  `json:"rows"`
}
