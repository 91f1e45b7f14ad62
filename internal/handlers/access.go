package handlers

import (
	"net/http"
	"strconv"

	"vinemod/internal/metrics"
	"vinemod/internal/moderation"
)

// HandleAccessCheck answers whether a user may perform an action right now.
// Called by the feed service before posts, comments and likes; defaults to
// the post action when none is given.
func (h *Handler) HandleAccessCheck(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	action := moderation.Action(r.URL.Query().Get("action"))
	if action == "" {
		action = moderation.ActionPost
	}

	decision, err := h.service.CheckAccess(r.Context(), userID, action)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.AccessChecksTotal.WithLabelValues(strconv.FormatBool(decision.Allowed)).Inc()
	writeJSON(w, http.StatusOK, decision)
}

// HandleAccessCheckSelf answers the access question for the calling user.
// The portal uses it to grey out the composer while suspended.
func (h *Handler) HandleAccessCheckSelf(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	action := moderation.Action(r.URL.Query().Get("action"))
	if action == "" {
		action = moderation.ActionPost
	}

	decision, err := h.service.CheckAccess(r.Context(), principal, action)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.AccessChecksTotal.WithLabelValues(strconv.FormatBool(decision.Allowed)).Inc()
	writeJSON(w, http.StatusOK, decision)
}

// HandleUserStatus returns the moderation status projection for a user.
func (h *Handler) HandleUserStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.UserStatus(r.Context(), r.PathValue("user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
