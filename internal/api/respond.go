package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/domainerr"
	"github.com/hackgods/blood-bank/internal/otp"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleError maps an error's domain kind onto a status code.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, otp.ErrResendTooSoon) {
		writeError(w, http.StatusTooManyRequests, "resend_too_soon", err.Error())
		return
	}
	if errors.Is(err, otp.ErrTooManyAttempts) {
		writeError(w, http.StatusTooManyRequests, "too_many_attempts", err.Error())
		return
	}
	switch domainerr.Kind(err) {
	case domainerr.ErrValidation:
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case domainerr.ErrInvalidCode:
		writeError(w, http.StatusBadRequest, "invalid_code", err.Error())
	case domainerr.ErrState:
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case domainerr.ErrConflict:
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case domainerr.ErrNotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case domainerr.ErrForbidden:
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case domainerr.ErrUnauthenticated:
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", GetRequestID(r.Context())),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseUUID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// Page wraps a paginated listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
}

func newPage[T any](items []T, total, page int) Page[T] {
	if items == nil {
		items = []T{}
	}
	if page < 1 {
		page = 1
	}
	return Page[T]{Items: items, Total: total, Page: page}
}
