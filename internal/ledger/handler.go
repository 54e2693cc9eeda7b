package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/andino-erp/andino-erp/internal/platform/httpx"
)

// Handler exposes the ledger engine over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers ledger routes. {kind} is "payable" or "receivable".
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledgers/{kind}", func(r chi.Router) {
		r.Post("/accounts", h.openAccount)
		r.Get("/accounts", h.listAccounts)
		r.Get("/accounts/{id}", h.getAccount)
		r.Post("/accounts/{id}/transactions", h.postTransaction)
		r.Post("/payments/bulk", h.postBulkPayments)
		r.Get("/counterparties", h.listGrouped)
		r.Get("/counterparties/{counterpartyID}/accounts", h.listByCounterparty)
	})
}

// --- request/response DTOs ---

type postTransactionRequest struct {
	Type           string          `json:"type" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod  string          `json:"paymentMethod"`
	Reference      string          `json:"reference"`
	PaymentDetails string          `json:"paymentDetails"`
	Notes          string          `json:"notes"`
}

type bulkPaymentItemRequest struct {
	AccountID int64           `json:"accountId" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
}

type bulkPaymentRequest struct {
	PaymentMethod string                   `json:"paymentMethod" validate:"required"`
	Notes         string                   `json:"notes"`
	Items         []bulkPaymentItemRequest `json:"items" validate:"required,min=1,dive"`
}

type openAccountRequest struct {
	CounterpartyID int64           `json:"counterpartyId" validate:"required,gt=0"`
	DocumentID     int64           `json:"documentId" validate:"required,gt=0"`
	DocumentSeq    string          `json:"documentSeq" validate:"required"`
	Principal      decimal.Decimal `json:"principal" validate:"required"`
	Notes          string          `json:"notes"`
}

type transactionView struct {
	ID             int64           `json:"id"`
	Type           TransactionType `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"paymentMethod,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	PaymentDetails string          `json:"paymentDetails,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type accountView struct {
	ID             int64             `json:"id"`
	Kind           Kind              `json:"kind"`
	CounterpartyID int64             `json:"counterpartyId"`
	DocumentID     int64             `json:"documentId"`
	DocumentSeq    string            `json:"documentSeq"`
	Total          decimal.Decimal   `json:"total"`
	Balance        decimal.Decimal   `json:"balance"`
	Status         AccountStatus     `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	Transactions   []transactionView `json:"transactions,omitempty"`
}

type counterpartyGroupView struct {
	CounterpartyID   int64           `json:"counterpartyId"`
	CounterpartyName string          `json:"counterpartyName"`
	CounterpartyDoc  string          `json:"counterpartyDoc"`
	AccountCount     int             `json:"accountCount"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
}

func toAccountView(acc Account) accountView {
	view := accountView{
		ID:             acc.ID,
		Kind:           acc.Kind,
		CounterpartyID: acc.CounterpartyID,
		DocumentID:     acc.DocumentID,
		DocumentSeq:    acc.DocumentSeq,
		Total:          acc.Total,
		Balance:        acc.Balance,
		Status:         acc.Status,
		CreatedAt:      acc.CreatedAt,
		UpdatedAt:      acc.UpdatedAt,
	}
	for _, tx := range acc.Transactions {
		view.Transactions = append(view.Transactions, transactionView{
			ID:             tx.ID,
			Type:           tx.Type,
			Amount:         tx.Amount,
			PaymentMethod:  tx.PaymentMethod,
			Reference:      tx.Reference,
			PaymentDetails: tx.PaymentDetails,
			Notes:          tx.Notes,
			CreatedAt:      tx.CreatedAt,
		})
	}
	return view
}

func toAccountViews(accounts []Account) []accountView {
	views := make([]accountView, len(accounts))
	for i, acc := range accounts {
		views[i] = toAccountView(acc)
	}
	return views
}

// --- handlers ---

func (h *Handler) postTransaction(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req postTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	account, err := h.service.PostTransaction(r.Context(), kind, accountID, PostTransactionInput{
		Type:           req.Type,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		Reference:      req.Reference,
		PaymentDetails: req.PaymentDetails,
		Notes:          req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, "transaction posted", toAccountView(account))
}

func (h *Handler) postBulkPayments(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	var req bulkPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	input := BulkPaymentInput{PaymentMethod: req.PaymentMethod, Notes: req.Notes}
	for _, item := range req.Items {
		input.Items = append(input.Items, BulkPaymentItem{AccountID: item.AccountID, Amount: item.Amount})
	}
	accounts, err := h.service.PostBulkPayments(r.Context(), kind, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, "bulk payment posted", toAccountViews(accounts))
}

func (h *Handler) openAccount(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	var req openAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	account, err := h.service.OpenAccount(r.Context(), OpenAccountInput{
		Kind:           kind,
		CounterpartyID: req.CounterpartyID,
		DocumentID:     req.DocumentID,
		DocumentSeq:    req.DocumentSeq,
		Principal:      req.Principal,
		Notes:          req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Message: "account opened", Data: toAccountView(account)})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	account, err := h.service.GetAccount(r.Context(), kind, accountID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OK(w, "account", toAccountView(account))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	filter := h.filterFromQuery(r, kind)
	accounts, meta, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKPage(w, "accounts", toAccountViews(accounts), meta)
}

func (h *Handler) listByCounterparty(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	counterpartyID, ok := h.pathID(w, r, "counterpartyID")
	if !ok {
		return
	}
	filter := h.filterFromQuery(r, kind)
	filter.CounterpartyID = counterpartyID
	accounts, meta, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.OKPage(w, "accounts", toAccountViews(accounts), meta)
}

func (h *Handler) listGrouped(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	filter := h.filterFromQuery(r, kind)
	groups, meta, err := h.service.ListGrouped(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	views := make([]counterpartyGroupView, len(groups))
	for i, g := range groups {
		views[i] = counterpartyGroupView{
			CounterpartyID:   g.CounterpartyID,
			CounterpartyName: g.CounterpartyName,
			CounterpartyDoc:  g.CounterpartyDoc,
			AccountCount:     g.AccountCount,
			TotalBalance:     g.TotalBalance,
		}
	}
	httpx.OKPage(w, "balances by counterparty", views, meta)
}

// --- helpers ---

func (h *Handler) kind(w http.ResponseWriter, r *http.Request) (Kind, bool) {
	kind, ok := ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Fail(w, http.StatusNotFound, "unknown ledger kind", "UnknownKind")
		return "", false
	}
	return kind, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid "+name, "InvalidID")
		return 0, false
	}
	return id, true
}

func (h *Handler) filterFromQuery(r *http.Request, kind Kind) ListFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return ListFilter{
		Kind:    kind,
		Keyword: q.Get("keyword"),
		Page:    page,
		Limit:   limit,
	}
}

// respondError converts ledger errors into envelope responses. Invariant
// violations have already rolled back their transaction by the time they
// reach here; they surface as 422 with the machine-readable reason.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var typeErr *InvalidTransactionTypeError
	var notFound *AccountNotFoundError
	var violation *InvariantViolationError
	var conflict *DocumentConflictError
	switch {
	case errors.As(err, &conflict):
		httpx.Fail(w, http.StatusConflict, conflict.Error(), "DocumentConflict")
	case errors.As(err, &typeErr):
		httpx.Fail(w, http.StatusBadRequest, typeErr.Error(), "InvalidTransactionType")
	case errors.Is(err, ErrInvalidAmount):
		httpx.Fail(w, http.StatusBadRequest, err.Error(), "InvalidAmount")
	case errors.Is(err, ErrPaymentMethodRequired):
		httpx.Fail(w, http.StatusBadRequest, err.Error(), "PaymentMethodRequired")
	case errors.Is(err, ErrEmptyBatch):
		httpx.Fail(w, http.StatusBadRequest, err.Error(), "EmptyBatch")
	case errors.As(err, &notFound):
		httpx.Fail(w, http.StatusNotFound, notFound.Error(), "AccountNotFound")
	case errors.As(err, &violation):
		httpx.Fail(w, http.StatusUnprocessableEntity, violation.Error(), "InvariantViolation: "+violation.Reason)
	default:
		h.logger.Error("ledger request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		httpx.RespondError(w, err)
	}
}
