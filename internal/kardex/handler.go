package kardex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/andino-erp/andino-erp/internal/platform/httpx"
	"github.com/andino-erp/andino-erp/internal/shared"
)

const (
	reportCacheTTL = time.Minute
	dateLayout     = "2006-01-02"
)

// Handler exposes the kardex report endpoint. Report builds are coalesced
// with singleflight and cached briefly in Redis; the walk over a busy
// product's history is the most expensive read in the service.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	cache      *redis.Client
	buildGroup singleflight.Group
}

// NewHandler builds Handler. cache may be nil, which disables caching.
func NewHandler(logger *slog.Logger, service *Service, cache *redis.Client) *Handler {
	return &Handler{logger: logger, service: service, cache: cache}
}

// MountRoutes registers kardex routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			auth := shared.AuthFromContext(r.Context())
			return fmt.Sprintf("kardex:%d:%d", auth.BusinessID, auth.UserID), nil
		})))
		r.Get("/kardex/report", h.getReport)
	})
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("productId"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid productId", "InvalidID")
		return
	}
	dateFrom, err := time.Parse(dateLayout, q.Get("dateFrom"))
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid dateFrom, expected YYYY-MM-DD", "InvalidDate")
		return
	}
	dateTo, err := time.Parse(dateLayout, q.Get("dateTo"))
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid dateTo, expected YYYY-MM-DD", "InvalidDate")
		return
	}
	// Include the whole closing day.
	dateTo = dateTo.Add(24*time.Hour - time.Nanosecond)

	auth := shared.AuthFromContext(r.Context())
	key := fmt.Sprintf("kardex:report:%d:%d:%s:%s", auth.BusinessID, productID, q.Get("dateFrom"), q.Get("dateTo"))

	if report, ok := h.cachedReport(r.Context(), key); ok {
		httpx.OK(w, "kardex report", report)
		return
	}

	result, err, _ := h.singleflightBuild(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.service.BuildReport(ctx, ReportRequest{ProductID: productID, DateFrom: dateFrom, DateTo: dateTo})
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	report := result.(Report)
	h.storeReport(r.Context(), key, report)
	httpx.OK(w, "kardex report", report)
}

func (h *Handler) singleflightBuild(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := h.buildGroup.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

func (h *Handler) cachedReport(ctx context.Context, key string) (Report, bool) {
	if h.cache == nil {
		return Report{}, false
	}
	payload, err := h.cache.Get(ctx, key).Bytes()
	if err != nil {
		return Report{}, false
	}
	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return Report{}, false
	}
	return report, true
}

func (h *Handler) storeReport(ctx context.Context, key string, report Report) {
	if h.cache == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, key, payload, reportCacheTTL).Err(); err != nil {
		h.logger.Warn("kardex report cache store failed", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidDateRange):
		httpx.Fail(w, http.StatusBadRequest, err.Error(), "InvalidDateRange")
	case errors.Is(err, shared.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "product not found", "NotFound")
	default:
		h.logger.Error("kardex request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
