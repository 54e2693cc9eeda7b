package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andino-erp/andino-erp/internal/kardex"
	"github.com/andino-erp/andino-erp/internal/ledger"
	"github.com/andino-erp/andino-erp/internal/observability"
	"github.com/andino-erp/andino-erp/internal/procurement"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	LedgerHandler      *ledger.Handler
	KardexHandler      *kardex.Handler
	ProcurementHandler *procurement.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		params.LedgerHandler.MountRoutes(r)
		params.KardexHandler.MountRoutes(r)
		params.ProcurementHandler.MountRoutes(r)
	})

	return r
}
