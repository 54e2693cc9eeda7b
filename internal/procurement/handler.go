package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/andino-erp/andino-erp/internal/ledger"
	"github.com/andino-erp/andino-erp/internal/platform/httpx"
	"github.com/andino-erp/andino-erp/internal/shared"
)

// Handler exposes the purchase commit endpoint.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchases", h.commitPurchase)
}

type purchaseLineRequest struct {
	ProductID   int64           `json:"productId" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouseId" validate:"required,gt=0"`
	Qty         decimal.Decimal `json:"qty" validate:"required"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	TaxPct      decimal.Decimal `json:"taxPct"`
}

type commitPurchaseRequest struct {
	SupplierID     int64                 `json:"supplierId" validate:"required,gt=0"`
	Sequence       string                `json:"sequence" validate:"required"`
	IssueDate      string                `json:"issueDate"`
	IdempotencyKey string                `json:"idempotencyKey"`
	Lines          []purchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type commitPurchaseResponse struct {
	PurchaseID      int64           `json:"purchaseId"`
	Sequence        string          `json:"sequence"`
	Total           decimal.Decimal `json:"total"`
	LedgerAccountID int64           `json:"ledgerAccountId"`
}

func (h *Handler) commitPurchase(w http.ResponseWriter, r *http.Request) {
	var req commitPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	input := CommitPurchaseInput{
		SupplierID:     req.SupplierID,
		Sequence:       req.Sequence,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.IssueDate != "" {
		issueDate, err := time.Parse("2006-01-02", req.IssueDate)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid issueDate, expected YYYY-MM-DD", "InvalidDate")
			return
		}
		input.IssueDate = issueDate
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, CommitPurchaseLineInput{
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Qty:         line.Qty,
			UnitCost:    line.UnitCost,
			TaxPct:      line.TaxPct,
		})
	}
	result, err := h.service.CommitPurchase(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Message: "purchase committed", Data: commitPurchaseResponse{
		PurchaseID:      result.Purchase.ID,
		Sequence:        result.Purchase.Sequence,
		Total:           result.Purchase.Total,
		LedgerAccountID: result.LedgerAccountID,
	}})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNoLines), errors.Is(err, ErrInvalidLine), errors.Is(err, ErrSequenceRequired):
		httpx.Fail(w, http.StatusBadRequest, err.Error(), "Validation")
	case errors.Is(err, ErrSupplierNotFound):
		httpx.Fail(w, http.StatusNotFound, err.Error(), "SupplierNotFound")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Fail(w, http.StatusConflict, "purchase already committed", "IdempotencyConflict")
	case errors.As(err, new(*ledger.DocumentConflictError)):
		httpx.Fail(w, http.StatusConflict, "ledger account already open for this document", "DocumentConflict")
	default:
		h.logger.Error("purchase commit failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
