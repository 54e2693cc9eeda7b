package procurement

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andino-erp/andino-erp/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func procurementCtx() context.Context {
	return shared.ContextWithAuth(context.Background(), shared.AuthContext{
		BusinessID: 1, UserID: 9, EstablishmentID: 1, Role: shared.RoleAdmin,
	})
}

func validLine() CommitPurchaseLineInput {
	return CommitPurchaseLineInput{
		ProductID: 5, WarehouseID: 2,
		Qty: dec("10"), UnitCost: dec("2.50"), TaxPct: dec("12"),
	}
}

func TestCommitPurchaseRequiresAuthContext(t *testing.T) {
	svc := NewService(nil, nil, nil)
	_, err := svc.CommitPurchase(context.Background(), CommitPurchaseInput{
		SupplierID: 1, Sequence: "001-001-000000001",
		Lines: []CommitPurchaseLineInput{validLine()},
	})
	require.ErrorIs(t, err, shared.ErrAuthContextIncomplete)
}

func TestCommitPurchaseValidation(t *testing.T) {
	svc := NewService(nil, nil, nil)

	_, err := svc.CommitPurchase(procurementCtx(), CommitPurchaseInput{
		SupplierID: 1, Sequence: "  ",
		Lines: []CommitPurchaseLineInput{validLine()},
	})
	require.ErrorIs(t, err, ErrSequenceRequired)

	_, err = svc.CommitPurchase(procurementCtx(), CommitPurchaseInput{
		SupplierID: 1, Sequence: "001-001-000000001",
	})
	require.ErrorIs(t, err, ErrNoLines)

	for _, bad := range []CommitPurchaseLineInput{
		{ProductID: 0, WarehouseID: 2, Qty: dec("1"), UnitCost: dec("1")},
		{ProductID: 5, WarehouseID: 0, Qty: dec("1"), UnitCost: dec("1")},
		{ProductID: 5, WarehouseID: 2, Qty: dec("0"), UnitCost: dec("1")},
		{ProductID: 5, WarehouseID: 2, Qty: dec("1"), UnitCost: dec("-1")},
		{ProductID: 5, WarehouseID: 2, Qty: dec("1"), UnitCost: dec("1"), TaxPct: dec("-12")},
	} {
		_, err = svc.CommitPurchase(procurementCtx(), CommitPurchaseInput{
			SupplierID: 1, Sequence: "001-001-000000001",
			Lines: []CommitPurchaseLineInput{bad},
		})
		require.ErrorIs(t, err, ErrInvalidLine)
	}
}

func TestPriceLines(t *testing.T) {
	lines, subtotal, tax := priceLines([]CommitPurchaseLineInput{
		{ProductID: 5, WarehouseID: 2, Qty: dec("10"), UnitCost: dec("2.50"), TaxPct: dec("12")},
		{ProductID: 6, WarehouseID: 2, Qty: dec("4"), UnitCost: dec("1.25"), TaxPct: dec("0")},
	})
	require.Len(t, lines, 2)

	require.True(t, lines[0].Subtotal.Equal(dec("25")))
	require.True(t, lines[0].TaxAmount.Equal(dec("3")))
	require.True(t, lines[0].Total.Equal(dec("28")))

	require.True(t, lines[1].Subtotal.Equal(dec("5")))
	require.True(t, lines[1].TaxAmount.IsZero())
	require.True(t, lines[1].Total.Equal(dec("5")))

	require.True(t, subtotal.Equal(dec("30")))
	require.True(t, tax.Equal(dec("3")))
}

func TestPriceLinesFractionalTax(t *testing.T) {
	lines, subtotal, tax := priceLines([]CommitPurchaseLineInput{
		{ProductID: 5, WarehouseID: 2, Qty: dec("3"), UnitCost: dec("0.33"), TaxPct: dec("12")},
	})
	require.True(t, subtotal.Equal(dec("0.99")))
	require.True(t, tax.Equal(dec("0.1188")))
	require.True(t, lines[0].Total.Equal(dec("1.1088")))
}
