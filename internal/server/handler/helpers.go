package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/predifi/intent-gateway/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// errorResponse is the uniform rejection body. Code is a stable machine
// string; Error is the human-readable detail and may change between
// releases.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError sends a JSON-formatted error response with a stable code.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// rejection maps an admission error to its HTTP status and stable code.
// Unrecognized errors are internal; the handler logs those and hides the
// detail from the client.
func rejection(err error) (status int, code string, internal bool) {
	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return http.StatusBadRequest, "malformed_request", false
	case errors.Is(err, domain.ErrExpired):
		return http.StatusBadRequest, "order_expired", false
	case errors.Is(err, domain.ErrStaleTimestamp):
		return http.StatusBadRequest, "stale_timestamp", false
	case errors.Is(err, domain.ErrPriceOutOfRange):
		return http.StatusBadRequest, "price_out_of_range", false
	case errors.Is(err, domain.ErrSizeNotPositive):
		return http.StatusBadRequest, "size_not_positive", false
	case errors.Is(err, domain.ErrAmountNotPositive):
		return http.StatusBadRequest, "amount_not_positive", false
	case errors.Is(err, domain.ErrAmountTooLarge):
		return http.StatusBadRequest, "amount_too_large", false
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature", false
	case errors.Is(err, domain.ErrSignerMismatch):
		return http.StatusUnauthorized, "signer_mismatch", false
	case errors.Is(err, domain.ErrNonceUsed):
		return http.StatusConflict, "nonce_used", false
	default:
		return http.StatusInternalServerError, "internal_error", true
	}
}

// writeRejection translates an admission error into the uniform rejection
// body, logging internal errors instead of leaking them.
func writeRejection(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code, internal := rejection(err)
	if internal {
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("error", err.Error()),
		)
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
