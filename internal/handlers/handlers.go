// Package handlers contains the HTTP handlers for the moderation API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"vinemod/internal/guardian"
	"vinemod/internal/middleware"
	"vinemod/internal/moderation"

	"github.com/rs/zerolog/log"
)

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	service *moderation.Service
	store   moderation.Store
	roster  *guardian.Roster
}

// NewHandler creates a new Handler with all required dependencies.
func NewHandler(service *moderation.Service, store moderation.Store, roster *guardian.Roster) *Handler {
	return &Handler{
		service: service,
		store:   store,
		roster:  roster,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeJSON encodes and writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps service errors to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	var ve *moderation.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, moderation.ErrInvalidDuration):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "duration"})
	case errors.Is(err, moderation.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, moderation.ErrDuplicateReport):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "content already reported"})
	case errors.Is(err, moderation.ErrConflict), errors.Is(err, moderation.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, moderation.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "report limit reached, try again later"})
	default:
		log.Error().Err(err).Msg("Unhandled handler error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeBody decodes a JSON request body into target
func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return &moderation.ValidationError{Field: "body", Message: "invalid JSON body"}
	}
	return nil
}

// requirePrincipal returns the authenticated user ID, or writes 401 and
// returns false.
func (h *Handler) requirePrincipal(w http.ResponseWriter, r *http.Request) (string, bool) {
	principal := middleware.Principal(r.Context())
	if principal == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return "", false
	}
	return principal, true
}

// requirePermission returns the authenticated guardian's user ID, or writes
// 401/403 and returns false.
func (h *Handler) requirePermission(w http.ResponseWriter, r *http.Request, perm guardian.Permission) (string, bool) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return "", false
	}
	if !h.roster.HasPermission(principal, perm) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "permission denied"})
		return "", false
	}
	return principal, true
}
