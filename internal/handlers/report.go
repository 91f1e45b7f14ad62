package handlers

import (
	"net/http"

	"vinemod/internal/guardian"
	"vinemod/internal/metrics"
	"vinemod/internal/moderation"
)

type createReportRequest struct {
	TargetUserID string `json:"target_user_id"`
	PostID       string `json:"post_id,omitempty"`
	CommentID    string `json:"comment_id,omitempty"`
	Reason       string `json:"reason"`
}

// HandleReportCreate accepts a report from any authenticated user.
func (h *Handler) HandleReportCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	var req createReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.service.SubmitReport(r.Context(), principal, req.TargetUserID, moderation.ReportTarget{
		PostID:    req.PostID,
		CommentID: req.CommentID,
	}, req.Reason)
	if err != nil {
		metrics.ReportsTotal.WithLabelValues("rejected").Inc()
		writeError(w, err)
		return
	}

	metrics.ReportsTotal.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusCreated, report)
}

// HandleReportsList returns all open reports, oldest first.
func (h *Handler) HandleReportsList(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePermission(w, r, guardian.PermissionViewReports); !ok {
		return
	}

	reports, err := h.store.ListOpenReports(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if reports == nil {
		reports = []moderation.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

type resolveReportRequest struct {
	Status string `json:"status"`
}

// HandleReportResolve closes an open report as resolved or dismissed.
func (h *Handler) HandleReportResolve(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePermission(w, r, guardian.PermissionResolveReport)
	if !ok {
		return
	}

	var req resolveReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.service.ResolveReport(r.Context(), principal, r.PathValue("id"), moderation.ReportStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
