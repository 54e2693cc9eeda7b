package httpx

import (
	"errors"
	"net/http"

	"github.com/andino-erp/andino-erp/internal/shared"
)

// RespondError maps cross-cutting errors to envelope responses. Domain
// packages map their own typed errors before falling back to this.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrAuthContextIncomplete):
		Fail(w, http.StatusUnauthorized, "caller identity could not be resolved", "AuthContextIncomplete")
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, "resource not found", "NotFound")
	default:
		Fail(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
