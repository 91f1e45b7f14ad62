package handlers

import (
	"net/http"

	"vinemod/internal/guardian"
	"vinemod/internal/metrics"
	"vinemod/internal/moderation"
)

type warnRequest struct {
	UserID   string `json:"user_id"`
	Reason   string `json:"reason"`
	ReportID string `json:"report_id,omitempty"`
}

// HandleWarn issues a warning against a user.
func (h *Handler) HandleWarn(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePermission(w, r, guardian.PermissionWarnUser)
	if !ok {
		return
	}

	var req warnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	warning, err := h.service.WarnUser(r.Context(), principal, req.UserID, req.Reason, req.ReportID)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.WarningsTotal.Inc()
	writeJSON(w, http.StatusCreated, warning)
}

type suspendRequest struct {
	UserID   string `json:"user_id"`
	Duration string `json:"duration"`
	Reason   string `json:"reason"`
	ReportID string `json:"report_id,omitempty"`
}

// HandleSuspend issues a time-boxed or indefinite suspension.
func (h *Handler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePermission(w, r, guardian.PermissionSuspendUser)
	if !ok {
		return
	}

	var req suspendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	suspension, err := h.service.SuspendUser(r.Context(), principal, req.UserID,
		moderation.DurationTag(req.Duration), req.Reason, req.ReportID)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.SuspensionsTotal.WithLabelValues(req.Duration).Inc()
	writeJSON(w, http.StatusCreated, suspension)
}

type unsuspendRequest struct {
	UserID   string `json:"user_id"`
	AppealID string `json:"appeal_id,omitempty"`
}

// HandleUnsuspend lifts a user's active suspension. Lifting a user who is not
// suspended is a no-op, not an error.
func (h *Handler) HandleUnsuspend(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePermission(w, r, guardian.PermissionUnsuspendUser)
	if !ok {
		return
	}

	var req unsuspendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" {
		writeError(w, &moderation.ValidationError{Field: "user_id", Message: "required"})
		return
	}

	lifted, err := h.service.UnsuspendUser(r.Context(), principal, req.UserID, req.AppealID)
	if err != nil {
		writeError(w, err)
		return
	}
	if lifted == nil {
		writeJSON(w, http.StatusOK, map[string]any{"lifted": false})
		return
	}

	metrics.SuspensionsLiftedTotal.WithLabelValues(string(lifted.LiftReason)).Inc()
	writeJSON(w, http.StatusOK, map[string]any{"lifted": true, "suspension": lifted})
}
