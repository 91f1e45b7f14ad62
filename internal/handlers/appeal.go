package handlers

import (
	"net/http"

	"vinemod/internal/guardian"
	"vinemod/internal/metrics"
	"vinemod/internal/moderation"
)

type createAppealRequest struct {
	Message string `json:"message"`
}

// HandleAppealCreate accepts an appeal from a suspended user. Appealing is
// never a restricted action, so a suspended user can always reach this.
func (h *Handler) HandleAppealCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	var req createAppealRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	appeal, err := h.service.SubmitAppeal(r.Context(), principal, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.AppealsTotal.Inc()
	writeJSON(w, http.StatusCreated, appeal)
}

// HandleAppealsList returns all open appeals, oldest first.
func (h *Handler) HandleAppealsList(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePermission(w, r, guardian.PermissionViewReports); !ok {
		return
	}

	appeals, err := h.store.ListOpenAppeals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if appeals == nil {
		appeals = []moderation.Appeal{}
	}
	writeJSON(w, http.StatusOK, appeals)
}

type resolveAppealRequest struct {
	GrantUnsuspend bool `json:"grant_unsuspend"`
}

// HandleAppealResolve closes an open appeal, optionally lifting the user's
// active suspension in the same step.
func (h *Handler) HandleAppealResolve(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePermission(w, r, guardian.PermissionResolveAppeal)
	if !ok {
		return
	}

	var req resolveAppealRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	appeal, err := h.service.ResolveAppeal(r.Context(), principal, r.PathValue("id"), req.GrantUnsuspend)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appeal)
}
