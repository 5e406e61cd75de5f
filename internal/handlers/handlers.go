// Package handlers implements the JSON HTTP API. Handlers decode and validate
// requests, call the services or the database, and map errors onto status codes
// through writeError.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sunforge/solar-epc/auth"
	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/policy"
	"github.com/sunforge/solar-epc/internal/services"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// writeError maps a classified error onto the API's status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Violations)
	case errors.Is(err, httpx.ErrBadBody):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
	case errors.Is(err, store.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrTokenExpired):
		httpx.JSONError(w, http.StatusConflict, "token_expired", nil)
	case errors.Is(err, store.ErrConstraint):
		httpx.JSONError(w, http.StatusConflict, "constraint_violation", nil)
	case errors.Is(err, store.ErrUnavailable):
		slog.Error("store unavailable", "route", r.URL.Path, "error", err)
		httpx.JSONError(w, http.StatusServiceUnavailable, "store_unavailable", nil)
	case errors.Is(err, policy.ErrUnauthenticated):
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, policy.ErrForbidden):
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
	default:
		slog.Error("request failed", "method", r.Method, "route", r.URL.Path, "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// decode reads a JSON body into dst, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst, maxBodyBytes); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// pathID parses a positive numeric URL parameter, answering 400 itself on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", map[string]string{"param": name})
		return 0, false
	}
	return uint(id), true
}

// queryID parses an optional numeric query parameter. ok is false only for malformed values.
func queryID(r *http.Request, name string) (id *uint, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, false
	}
	u := uint(v)
	return &u, true
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

// currentUser returns the session user as an optional id for audit columns.
func currentUser(r *http.Request) *uint {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		return &uid
	}
	return nil
}

// listResponse is the envelope of paginated listings.
type listResponse[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"perPage"`
}
