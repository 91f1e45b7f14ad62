package handlers

import (
	"net/http"
	"strconv"
	"time"

	"vinemod/internal/guardian"
	"vinemod/internal/metrics"
	"vinemod/internal/moderation"

	"golang.org/x/sync/errgroup"
)

type overviewResponse struct {
	Stats       moderation.Stats    `json:"stats"`
	OpenReports []moderation.Report `json:"open_reports"`
	OpenAppeals []moderation.Appeal `json:"open_appeals"`
}

// HandleOverview returns the guardian dashboard: queue counts plus the open
// report and appeal queues, fetched in parallel.
func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePermission(w, r, guardian.PermissionViewReports); !ok {
		return
	}

	g, ctx := errgroup.WithContext(r.Context())

	var resp overviewResponse
	g.Go(func() error {
		var err error
		resp.Stats, err = h.store.Stats(ctx, time.Now())
		return err
	})
	g.Go(func() error {
		var err error
		resp.OpenReports, err = h.store.ListOpenReports(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		resp.OpenAppeals, err = h.store.ListOpenAppeals(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		writeError(w, err)
		return
	}

	if resp.OpenReports == nil {
		resp.OpenReports = []moderation.Report{}
	}
	if resp.OpenAppeals == nil {
		resp.OpenAppeals = []moderation.Appeal{}
	}

	metrics.OpenReports.Set(float64(resp.Stats.OpenReports))
	metrics.OpenAppeals.Set(float64(resp.Stats.OpenAppeals))
	metrics.ActiveSuspensions.Set(float64(resp.Stats.ActiveSuspensions))

	writeJSON(w, http.StatusOK, resp)
}

type userHistoryResponse struct {
	Status      *moderation.UserStatus  `json:"status"`
	Warnings    []moderation.Warning    `json:"warnings"`
	Suspensions []moderation.Suspension `json:"suspensions"`
}

// HandleUserHistory returns a user's full moderation record.
func (h *Handler) HandleUserHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePermission(w, r, guardian.PermissionViewReports); !ok {
		return
	}

	userID := r.PathValue("user")
	g, ctx := errgroup.WithContext(r.Context())

	var resp userHistoryResponse
	g.Go(func() error {
		var err error
		resp.Status, err = h.store.GetUserStatus(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Warnings, err = h.store.ListWarnings(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Suspensions, err = h.store.ListSuspensions(ctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		writeError(w, err)
		return
	}

	if resp.Warnings == nil {
		resp.Warnings = []moderation.Warning{}
	}
	if resp.Suspensions == nil {
		resp.Suspensions = []moderation.Suspension{}
	}

	writeJSON(w, http.StatusOK, resp)
}

const defaultAuditLimit = 100

// HandleAuditLog returns the most recent moderation actions.
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePermission(w, r, guardian.PermissionViewAuditLog); !ok {
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, &moderation.ValidationError{Field: "limit", Message: "must be between 1 and 1000"})
			return
		}
		limit = n
	}

	entries, err := h.store.ListAuditLog(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []moderation.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleRosterReload re-reads the guardian roster from disk. Admin only.
func (h *Handler) HandleRosterReload(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	if !h.roster.IsAdmin(principal) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "permission denied"})
		return
	}

	if err := h.roster.Reload(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": len(h.roster.ListMembers())})
}
