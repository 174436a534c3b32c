package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"pos-backoffice/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps service errors onto HTTP statuses. Unknown errors
// become a 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrAlreadyProcessed),
		errors.Is(err, core.ErrAlreadyRefunded),
		errors.Is(err, core.ErrInvalidStateTransition):
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
	case errors.Is(err, core.ErrInsufficientStock),
		errors.Is(err, core.ErrCreditLimitExceeded),
		errors.Is(err, core.ErrCustomerBlacklisted),
		errors.Is(err, core.ErrCustomerRequiredForCredit),
		errors.Is(err, core.ErrOverpaymentNotAllowed),
		errors.Is(err, core.ErrDiscountExceedsTotal),
		errors.Is(err, core.ErrNothingToRefund),
		errors.Is(err, core.ErrRefundWindowExpired):
		writeError(w, r, err.Error(), "UNPROCESSABLE", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidAmount):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, r, "invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeCreated writes a JSON response with status 201.
func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}
