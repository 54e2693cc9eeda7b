package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/andino-erp/andino-erp/internal/observability"
	"github.com/andino-erp/andino-erp/internal/shared"
)

// Gateway headers carrying the resolved caller identity. The upstream
// gateway authenticates the caller and strips any client-supplied copies.
const (
	HeaderBusinessID      = "X-Business-ID"
	HeaderUserID          = "X-User-ID"
	HeaderEstablishmentID = "X-Establishment-ID"
	HeaderUserRole        = "X-User-Role"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// AuthContextMiddleware lifts gateway identity headers into the request
// context. Handlers and services fail with AuthContextIncomplete when the
// identity never arrived; the middleware itself does not reject.
func AuthContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		businessID, _ := strconv.ParseInt(r.Header.Get(HeaderBusinessID), 10, 64)
		userID, _ := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		establishmentID, _ := strconv.ParseInt(r.Header.Get(HeaderEstablishmentID), 10, 64)
		auth := shared.AuthContext{
			BusinessID:      businessID,
			UserID:          userID,
			EstablishmentID: establishmentID,
			Role:            shared.Role(r.Header.Get(HeaderUserRole)),
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithAuth(r.Context(), auth)))
	})
}

// MiddlewareStack installs the standard middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	requestTimeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		requestTimeout = cfg.Config.AppRequestTimeout
	}

	stack := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		secureMiddleware.Handler,
		AuthContextMiddleware,
	}
	if cfg.Metrics != nil {
		stack = append(stack, cfg.Metrics.Middleware)
	}
	return stack
}
