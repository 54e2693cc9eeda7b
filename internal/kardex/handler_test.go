package kardex

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andino-erp/andino-erp/internal/shared"
)

type countingStock struct {
	qty   decimal.Decimal
	calls int
}

func (s *countingStock) CurrentStock(ctx context.Context, businessID, productID int64) (decimal.Decimal, error) {
	s.calls++
	return s.qty, nil
}

func newReportServer(t *testing.T, repo *memoryKardexRepo, stock *countingStock) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	handler := NewHandler(slog.Default(), NewService(repo, stock, stubHeaders{}), cache)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithAuth(req.Context(), shared.AuthContext{
				BusinessID: 1, UserID: 9, EstablishmentID: 1, Role: shared.RoleAdmin,
			})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	handler.MountRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mr
}

func TestGetReportCachesResult(t *testing.T) {
	repo := &memoryKardexRepo{movements: []Movement{inflow(day(10), "10", "5")}}
	stock := &countingStock{qty: dec("10")}
	srv, mr := newReportServer(t, repo, stock)

	url := srv.URL + "/kardex/report?productId=5&dateFrom=2026-03-01&dateTo=2026-03-31"

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Rows []ReportRow `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.Len(t, envelope.Data.Rows, 2)
	require.Equal(t, 1, stock.calls)
	require.True(t, mr.Exists("kardex:report:1:5:2026-03-01:2026-03-31"))

	// Second hit is served from the cache without rebuilding.
	resp2, err := http.Get(url)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	require.Equal(t, 1, stock.calls)
}

func TestGetReportParamValidation(t *testing.T) {
	srv, _ := newReportServer(t, &memoryKardexRepo{}, &countingStock{qty: decimal.Zero})

	for _, path := range []string{
		"/kardex/report?productId=0&dateFrom=2026-03-01&dateTo=2026-03-31",
		"/kardex/report?productId=5&dateFrom=bogus&dateTo=2026-03-31",
		"/kardex/report?productId=5&dateFrom=2026-03-01&dateTo=31-03-2026",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestGetReportRejectsInvertedRange(t *testing.T) {
	srv, _ := newReportServer(t, &memoryKardexRepo{}, &countingStock{qty: decimal.Zero})

	resp, err := http.Get(srv.URL + "/kardex/report?productId=5&dateFrom=2026-03-31&dateTo=2026-03-01")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
