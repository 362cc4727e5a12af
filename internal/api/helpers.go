package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odvcencio/songlist/internal/auth"
	"github.com/odvcencio/songlist/internal/service"
)

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func parsePathID(w http.ResponseWriter, r *http.Request, key, label string) (int64, bool) {
	raw := strings.TrimSpace(r.PathValue(key))
	if raw == "" {
		jsonError(w, label+" is required", http.StatusBadRequest)
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		jsonError(w, "invalid "+label, http.StatusBadRequest)
		return 0, false
	}
	return value, true
}

// decodeJSON reads the request body into dst. It writes the error response
// itself and reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// currentUserID returns the authenticated user. Routes registered through
// requireAuth always have one.
func currentUserID(r *http.Request) int64 {
	if claims := auth.GetClaims(r.Context()); claims != nil {
		return claims.UserID
	}
	return 0
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	msg := err.Error()
	if errors.As(err, &svcErr) {
		msg = svcErr.Error()
	}
	switch {
	case errors.Is(err, service.ErrValidation):
		jsonError(w, msg, http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		jsonError(w, msg, http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		jsonError(w, msg, http.StatusForbidden)
	case errors.Is(err, service.ErrUnauthenticated):
		jsonError(w, msg, http.StatusUnauthorized)
	case errors.Is(err, service.ErrConflict):
		jsonError(w, msg, http.StatusConflict)
	case errors.Is(err, service.ErrUnsupported):
		jsonError(w, msg, http.StatusNotImplemented)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}
