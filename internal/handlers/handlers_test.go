package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinemod/internal/database/sqlitestore"
	"vinemod/internal/guardian"
	"vinemod/internal/handlers"
	"vinemod/internal/moderation"
	"vinemod/internal/routing"
)

const testRoster = `{
	"roles": {
		"admin": {
			"permissions": ["warn_user", "suspend_user", "unsuspend_user", "resolve_report", "resolve_appeal", "view_reports", "view_audit_log"]
		},
		"guardian": {
			"permissions": ["warn_user", "resolve_report", "view_reports"]
		}
	},
	"members": [
		{"user_id": "staff-admin", "role": "admin"},
		{"user_id": "staff-guardian", "role": "guardian"}
	]
}`

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	dir := t.TempDir()
	store, err := sqlitestore.Open(filepath.Join(dir, "mod.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rosterPath := filepath.Join(dir, "guardians.json")
	require.NoError(t, os.WriteFile(rosterPath, []byte(testRoster), 0644))
	roster, err := guardian.NewRoster(rosterPath)
	require.NoError(t, err)

	service := moderation.NewService(store, nil, moderation.Options{
		RestrictedActions: []moderation.Action{moderation.ActionPost, moderation.ActionComment, moderation.ActionLike},
		ReportRateLimit:   3,
	})

	h := handlers.NewHandler(service, store, roster)
	return routing.SetupRouter(routing.Config{
		Handlers: h,
		Logger:   zerolog.Nop(),
	})
}

func doRequest(t *testing.T, srv http.Handler, method, path, principal, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if principal != "" {
		req.Header.Set("X-Vine-User", principal)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestReportCreate(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/reports", "student-1",
		`{"target_user_id":"student-2","post_id":"p1","reason":"mean post"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var report moderation.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "student-1", report.ReporterID)
	assert.Equal(t, moderation.ReportOpen, report.Status)

	// Same pair again while open
	rec = doRequest(t, srv, http.MethodPost, "/api/reports", "student-1",
		`{"target_user_id":"student-2","post_id":"p1","reason":"still mean"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReportCreate_Unauthenticated(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/reports", "",
		`{"target_user_id":"student-2","post_id":"p1","reason":"mean"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReportCreate_Validation(t *testing.T) {
	srv := newTestServer(t)

	// Both post and comment set
	rec := doRequest(t, srv, http.MethodPost, "/api/reports", "student-1",
		`{"target_user_id":"student-2","post_id":"p1","comment_id":"c1","reason":"mean"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "target", resp.Field)

	// Malformed body
	rec = doRequest(t, srv, http.MethodPost, "/api/reports", "student-1", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportCreate_RateLimited(t *testing.T) {
	srv := newTestServer(t)

	for _, post := range []string{"p1", "p2", "p3"} {
		rec := doRequest(t, srv, http.MethodPost, "/api/reports", "student-1",
			`{"target_user_id":"student-2","post_id":"`+post+`","reason":"spam"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/reports", "student-1",
		`{"target_user_id":"student-2","post_id":"p4","reason":"spam"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGuardianEndpoints_Authorization(t *testing.T) {
	srv := newTestServer(t)

	// No principal
	rec := doRequest(t, srv, http.MethodGet, "/api/mod/reports", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A student is not on the roster
	rec = doRequest(t, srv, http.MethodGet, "/api/mod/reports", "student-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Guardian without the suspend permission
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/suspend", "staff-guardian",
		`{"user_id":"student-1","duration":"week","reason":"harassment"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin can
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/suspend", "staff-admin",
		`{"user_id":"student-1","duration":"week","reason":"harassment"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSuspendFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/mod/suspend", "staff-admin",
		`{"user_id":"student-1","duration":"day","reason":"harassment"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Second suspension conflicts
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/suspend", "staff-admin",
		`{"user_id":"student-1","duration":"week","reason":"more"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown duration is a bad request
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/suspend", "staff-admin",
		`{"user_id":"student-2","duration":"fortnight","reason":"harassment"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The access guard blocks restricted actions
	rec = doRequest(t, srv, http.MethodGet, "/api/access/student-1?action=post", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var decision moderation.AccessDecision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	assert.False(t, decision.Allowed)
	assert.Equal(t, moderation.ReasonAccountRestricted, decision.Reason)

	// Unrestricted actions pass
	rec = doRequest(t, srv, http.MethodGet, "/api/access/student-1?action=appeal", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	assert.True(t, decision.Allowed)

	// Unsuspend, then lifting again reports lifted=false
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/unsuspend", "staff-admin",
		`{"user_id":"student-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var unsuspend struct {
		Lifted bool `json:"lifted"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&unsuspend))
	assert.True(t, unsuspend.Lifted)

	rec = doRequest(t, srv, http.MethodPost, "/api/mod/unsuspend", "staff-admin",
		`{"user_id":"student-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&unsuspend))
	assert.False(t, unsuspend.Lifted)
}

func TestAppealFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/mod/suspend", "staff-admin",
		`{"user_id":"student-1","duration":"month","reason":"harassment"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/appeals", "student-1",
		`{"message":"I have reflected on this"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var appeal moderation.Appeal
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&appeal))

	// A user who is not suspended cannot appeal
	rec = doRequest(t, srv, http.MethodPost, "/api/appeals", "student-2",
		`{"message":"preemptive appeal"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Grant the appeal
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/appeals/"+appeal.ID+"/resolve", "staff-admin",
		`{"grant_unsuspend":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/access/student-1?action=post", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var decision moderation.AccessDecision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	assert.True(t, decision.Allowed)

	// Resolving again conflicts
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/appeals/"+appeal.ID+"/resolve", "staff-admin",
		`{"grant_unsuspend":false}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReportResolve(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/reports", "student-1",
		`{"target_user_id":"student-2","post_id":"p1","reason":"mean"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var report moderation.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))

	rec = doRequest(t, srv, http.MethodPost, "/api/mod/reports/"+report.ID+"/resolve", "staff-guardian",
		`{"status":"dismissed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Unknown report
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/reports/nope/resolve", "staff-guardian",
		`{"status":"resolved"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Bad status value
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/reports/"+report.ID+"/resolve", "staff-guardian",
		`{"status":"open"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverviewAndHistory(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/reports", "student-1",
		`{"target_user_id":"student-2","post_id":"p1","reason":"mean"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, srv, http.MethodPost, "/api/mod/warn", "staff-guardian",
		`{"user_id":"student-2","reason":"be kind"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/mod/overview", "staff-guardian", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var overview struct {
		Stats       moderation.Stats    `json:"stats"`
		OpenReports []moderation.Report `json:"open_reports"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&overview))
	assert.Equal(t, 1, overview.Stats.OpenReports)
	assert.Len(t, overview.OpenReports, 1)

	rec = doRequest(t, srv, http.MethodGet, "/api/mod/users/student-2/history", "staff-guardian", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Status   *moderation.UserStatus `json:"status"`
		Warnings []moderation.Warning   `json:"warnings"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	assert.Equal(t, moderation.StateWarned, history.Status.State)
	assert.Len(t, history.Warnings, 1)
}

func TestAuditLog_PermissionAndLimit(t *testing.T) {
	srv := newTestServer(t)

	// view_audit_log is admin-only in the test roster
	rec := doRequest(t, srv, http.MethodGet, "/api/mod/audit", "staff-guardian", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/mod/audit", "staff-admin", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/mod/audit?limit=0", "staff-admin", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessCheckSelf(t *testing.T) {
	srv := newTestServer(t)

	// Requires a principal
	rec := doRequest(t, srv, http.MethodGet, "/api/access", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/access?action=post", "student-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var decision moderation.AccessDecision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	assert.True(t, decision.Allowed)

	rec = doRequest(t, srv, http.MethodPost, "/api/mod/suspend", "staff-admin",
		`{"user_id":"student-1","duration":"indefinite","reason":"harassment"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/access", "student-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	assert.False(t, decision.Allowed)
}

func TestUserStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/status/student-1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status moderation.UserStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, moderation.StateActive, status.State)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
