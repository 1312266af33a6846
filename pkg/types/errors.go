package types

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// APIError: structured error returned to callers outside the RPC envelope
// ──────────────────────────────────────────────────────────────────────────────

type APIError struct {
	Detail   string `json:"detail"`
	HTTPCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.HTTPCode, e.Detail)
}

// WriteJSON writes the error as JSON to the response writer.
func (e *APIError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPCode)
	_ = json.NewEncoder(w).Encode(e)
}

// ErrUnauthorized matches the {"detail":"Unauthorized"} shape the deployed
// clients already expect on a 401.
func ErrUnauthorized() *APIError {
	return &APIError{Detail: "Unauthorized", HTTPCode: http.StatusUnauthorized}
}

func ErrRateLimited() *APIError {
	return &APIError{Detail: "too many requests", HTTPCode: http.StatusTooManyRequests}
}
