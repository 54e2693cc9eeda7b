// Package httpx provides the uniform response envelope used by every
// endpoint: failures are values at the API boundary, never raw status text.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/andino-erp/andino-erp/internal/shared"
)

// Envelope is the wire shape of every response.
type Envelope struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    any                `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
	Meta    *shared.Pagination `json:"meta,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK sends a success envelope.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// OKPage sends a success envelope with pagination metadata.
func OKPage(w http.ResponseWriter, message string, data any, meta shared.Pagination) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Meta: &meta})
}

// Fail sends a failure envelope with a machine-oriented error string.
func Fail(w http.ResponseWriter, status int, message, detail string) {
	JSON(w, status, Envelope{Success: false, Message: message, Error: detail})
}

// DecodeJSON decodes the request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
