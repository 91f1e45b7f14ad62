package sqlitestore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinemod/internal/moderation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "mod.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func makeReport(id, reporter, postID string, at time.Time) moderation.Report {
	return moderation.Report{
		ID:           id,
		ReporterID:   reporter,
		TargetUserID: "target-1",
		PostID:       postID,
		Reason:       "inappropriate content",
		Status:       moderation.ReportOpen,
		CreatedAt:    at,
	}
}

func makeSuspension(id, userID string, issuedAt time.Time, expiresAt *time.Time) moderation.Suspension {
	return moderation.Suspension{
		ID:          id,
		UserID:      userID,
		IssuedBy:    "staff-1",
		Reason:      "repeated violations",
		DurationTag: moderation.DurationWeek,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}
}

func TestReports_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	report := makeReport("r1", "student-1", "post-1", now)
	report.CommentID = ""
	require.NoError(t, store.CreateReport(ctx, report))

	got, err := store.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", got.ReporterID)
	assert.Equal(t, "post-1", got.PostID)
	assert.Empty(t, got.CommentID)
	assert.Equal(t, moderation.ReportOpen, got.Status)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.Nil(t, got.ResolvedAt)

	_, err = store.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, moderation.ErrNotFound)
}

func TestReports_DuplicateOpenReport(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	require.NoError(t, store.CreateReport(ctx, makeReport("r1", "student-1", "post-1", now)))

	// Same reporter, same post while the first is still open
	err := store.CreateReport(ctx, makeReport("r2", "student-1", "post-1", now.Add(time.Minute)))
	assert.ErrorIs(t, err, moderation.ErrDuplicateReport)

	// A different reporter on the same post is fine
	require.NoError(t, store.CreateReport(ctx, makeReport("r3", "student-2", "post-1", now)))

	// Same reporter on a different post is fine
	require.NoError(t, store.CreateReport(ctx, makeReport("r4", "student-1", "post-2", now)))

	// Once the first report is closed, the same pair may be reported again
	_, err = store.ResolveReport(ctx, "r1", moderation.ReportDismissed, "staff-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.CreateReport(ctx, makeReport("r5", "student-1", "post-1", now.Add(2*time.Hour))))
}

func TestReports_ResolveLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	require.NoError(t, store.CreateReport(ctx, makeReport("r1", "student-1", "post-1", now)))

	resolved, err := store.ResolveReport(ctx, "r1", moderation.ReportResolved, "staff-1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, moderation.ReportResolved, resolved.Status)
	assert.Equal(t, "staff-1", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	// Terminal reports cannot transition again
	_, err = store.ResolveReport(ctx, "r1", moderation.ReportDismissed, "staff-2", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, moderation.ErrInvalidState)

	_, err = store.ResolveReport(ctx, "missing", moderation.ReportResolved, "staff-1", now)
	assert.ErrorIs(t, err, moderation.ErrNotFound)
}

func TestReports_ListOpenOldestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	require.NoError(t, store.CreateReport(ctx, makeReport("r-new", "student-1", "post-1", now.Add(time.Hour))))
	require.NoError(t, store.CreateReport(ctx, makeReport("r-old", "student-2", "post-2", now)))

	open, err := store.ListOpenReports(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "r-old", open[0].ID)
	assert.Equal(t, "r-new", open[1].ID)
}

func TestCountReportsByReporterSince(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	require.NoError(t, store.CreateReport(ctx, makeReport("r1", "student-1", "post-1", now.Add(-2*time.Hour))))
	require.NoError(t, store.CreateReport(ctx, makeReport("r2", "student-1", "post-2", now.Add(-30*time.Minute))))
	require.NoError(t, store.CreateReport(ctx, makeReport("r3", "student-2", "post-3", now.Add(-time.Minute))))

	count, err := store.CountReportsByReporterSince(ctx, "student-1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSuspensions_SingleActive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()
	expiresAt := now.Add(7 * 24 * time.Hour)

	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now, &expiresAt)))

	err := store.CreateSuspension(ctx, makeSuspension("s2", "student-1", now.Add(time.Hour), &expiresAt))
	assert.ErrorIs(t, err, moderation.ErrConflict)

	// A different user is unaffected
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s3", "student-2", now, &expiresAt)))
}

func TestSuspensions_LapsedDoesNotBlock(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	// First suspension expires before the second is issued but was never swept
	expired := now.Add(time.Hour)
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now, &expired)))

	later := now.Add(2 * time.Hour)
	laterExpiry := later.Add(24 * time.Hour)
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s2", "student-1", later, &laterExpiry)))

	// The lapsed row was lifted with reason expired on the way in
	s1, err := store.GetSuspension(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s1.LiftedAt)
	assert.Equal(t, moderation.LiftExpired, s1.LiftReason)

	active, err := store.GetActiveSuspension(ctx, "student-1", later.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "s2", active.ID)
}

func TestGetActiveSuspension_ReadThroughExpiry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()
	expiresAt := now.Add(24 * time.Hour)

	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now, &expiresAt)))

	// Still active one second before expiry
	active, err := store.GetActiveSuspension(ctx, "student-1", expiresAt.Add(-time.Second))
	require.NoError(t, err)
	require.NotNil(t, active)

	// Expired but unlifted reads as gone
	active, err = store.GetActiveSuspension(ctx, "student-1", expiresAt)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestGetActiveSuspension_Indefinite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now, nil)))

	active, err := store.GetActiveSuspension(ctx, "student-1", now.Add(365*24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Nil(t, active.ExpiresAt)
}

func TestLiftActiveSuspension(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()
	expiresAt := now.Add(24 * time.Hour)

	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now, &expiresAt)))

	lifted, err := store.LiftActiveSuspension(ctx, "student-1", now.Add(time.Hour), moderation.LiftManual)
	require.NoError(t, err)
	require.NotNil(t, lifted)
	assert.Equal(t, "s1", lifted.ID)
	assert.Equal(t, moderation.LiftManual, lifted.LiftReason)
	require.NotNil(t, lifted.LiftedAt)

	// Lifting again is a no-op, not an error
	lifted, err = store.LiftActiveSuspension(ctx, "student-1", now.Add(2*time.Hour), moderation.LiftManual)
	require.NoError(t, err)
	assert.Nil(t, lifted)
}

func TestLiftSuspensionIfUnlifted_ExactlyOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()
	expiresAt := now.Add(time.Hour)

	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now, &expiresAt)))

	did, err := store.LiftSuspensionIfUnlifted(ctx, "s1", expiresAt, moderation.LiftExpired)
	require.NoError(t, err)
	assert.True(t, did)

	// Second lift, as in a sweeper/manual race, does nothing
	did, err = store.LiftSuspensionIfUnlifted(ctx, "s1", expiresAt.Add(time.Minute), moderation.LiftManual)
	require.NoError(t, err)
	assert.False(t, did)

	s1, err := store.GetSuspension(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, moderation.LiftExpired, s1.LiftReason)
}

func TestConcurrentSuspend_OneWins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()
	expiresAt := now.Add(24 * time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := []string{"s-a", "s-b"}[i]
			errs[i] = store.CreateSuspension(ctx, makeSuspension(id, "student-1", now, &expiresAt))
		}(i)
	}
	wg.Wait()

	okCount := 0
	for _, err := range errs {
		if err == nil {
			okCount++
		} else {
			assert.ErrorIs(t, err, moderation.ErrConflict)
		}
	}
	assert.Equal(t, 1, okCount)

	suspensions, err := store.ListSuspensions(ctx, "student-1")
	require.NoError(t, err)
	assert.Len(t, suspensions, 1)
}

func TestListExpiredUnlifted(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	e1 := now.Add(time.Hour)
	e2 := now.Add(2 * time.Hour)
	e3 := now.Add(48 * time.Hour)
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s2", "u2", now, &e2)))
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "u1", now, &e1)))
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s3", "u3", now, &e3)))
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s4", "u4", now, nil)))

	// Only s1 and s2 have lapsed by now+3h, oldest expiry first
	expired, err := store.ListExpiredUnlifted(ctx, now.Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "s1", expired[0].ID)
	assert.Equal(t, "s2", expired[1].ID)

	// Limit is honored
	expired, err = store.ListExpiredUnlifted(ctx, now.Add(3*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestAppeals_OneOpenPerUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	appeal := moderation.Appeal{
		ID: "a1", UserID: "student-1", Message: "I have learned my lesson",
		Status: moderation.AppealOpen, CreatedAt: now,
	}
	require.NoError(t, store.CreateAppeal(ctx, appeal))

	appeal.ID = "a2"
	err := store.CreateAppeal(ctx, appeal)
	assert.ErrorIs(t, err, moderation.ErrConflict)

	// Once resolved, a new appeal may be opened
	_, _, err = store.ResolveAppeal(ctx, "a1", "staff-1", now.Add(time.Hour), false)
	require.NoError(t, err)
	appeal.ID = "a3"
	appeal.CreatedAt = now.Add(2 * time.Hour)
	require.NoError(t, store.CreateAppeal(ctx, appeal))
}

func TestResolveAppeal_GrantLiftsAtomically(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()
	expiresAt := now.Add(7 * 24 * time.Hour)

	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now, &expiresAt)))
	require.NoError(t, store.CreateAppeal(ctx, moderation.Appeal{
		ID: "a1", UserID: "student-1", Message: "please reconsider",
		Status: moderation.AppealOpen, CreatedAt: now.Add(time.Hour),
	}))

	appeal, lifted, err := store.ResolveAppeal(ctx, "a1", "staff-1", now.Add(2*time.Hour), true)
	require.NoError(t, err)
	assert.Equal(t, moderation.AppealResolved, appeal.Status)
	assert.True(t, appeal.Granted)
	require.NotNil(t, lifted)
	assert.Equal(t, "s1", lifted.ID)
	assert.Equal(t, moderation.LiftAppealGranted, lifted.LiftReason)

	// Projection and suspension state agree
	status, err := store.GetUserStatus(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, moderation.StateActive, status.State)
	assert.Empty(t, status.ActiveSuspensionID)

	active, err := store.GetActiveSuspension(ctx, "student-1", now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestResolveAppeal_DenyKeepsSuspension(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()
	expiresAt := now.Add(7 * 24 * time.Hour)

	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now, &expiresAt)))
	require.NoError(t, store.CreateAppeal(ctx, moderation.Appeal{
		ID: "a1", UserID: "student-1", Message: "please reconsider",
		Status: moderation.AppealOpen, CreatedAt: now.Add(time.Hour),
	}))

	appeal, lifted, err := store.ResolveAppeal(ctx, "a1", "staff-1", now.Add(2*time.Hour), false)
	require.NoError(t, err)
	assert.False(t, appeal.Granted)
	assert.Nil(t, lifted)

	active, err := store.GetActiveSuspension(ctx, "student-1", now.Add(3*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, active)

	// Double resolve is rejected
	_, _, err = store.ResolveAppeal(ctx, "a1", "staff-2", now.Add(4*time.Hour), true)
	assert.ErrorIs(t, err, moderation.ErrInvalidState)
}

func TestUserStatusProjection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	// Unknown users are active with no history
	status, err := store.GetUserStatus(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, moderation.StateActive, status.State)
	assert.Equal(t, 0, status.WarningCount)

	// Warnings mark the user warned and count up
	require.NoError(t, store.AddWarning(ctx, moderation.Warning{
		ID: "w1", UserID: "student-1", IssuedBy: "staff-1", Reason: "be kind", CreatedAt: now,
	}))
	require.NoError(t, store.AddWarning(ctx, moderation.Warning{
		ID: "w2", UserID: "student-1", IssuedBy: "staff-1", Reason: "again", CreatedAt: now.Add(time.Hour),
	}))

	status, err = store.GetUserStatus(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, moderation.StateWarned, status.State)
	assert.Equal(t, 2, status.WarningCount)

	// Suspension dominates the warned state
	expiresAt := now.Add(7 * 24 * time.Hour)
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-1", now.Add(2*time.Hour), &expiresAt)))

	status, err = store.GetUserStatus(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, moderation.StateSuspended, status.State)
	assert.Equal(t, "s1", status.ActiveSuspensionID)
	assert.Equal(t, 2, status.WarningCount)

	// Lifting falls back to warned, warnings are never cleared
	_, err = store.LiftActiveSuspension(ctx, "student-1", now.Add(3*time.Hour), moderation.LiftManual)
	require.NoError(t, err)

	status, err = store.GetUserStatus(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, moderation.StateWarned, status.State)
	assert.Empty(t, status.ActiveSuspensionID)
	assert.Equal(t, 2, status.WarningCount)
}

func TestAuditLog_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	require.NoError(t, store.LogAction(ctx, moderation.AuditEntry{
		ID: "e1", Action: moderation.AuditWarnUser, ActorID: "staff-1", TargetID: "student-1",
		Reason: "be kind", Details: map[string]string{"warning_id": "w1"}, CreatedAt: now,
	}))
	require.NoError(t, store.LogAction(ctx, moderation.AuditEntry{
		ID: "e2", Action: moderation.AuditSuspendUser, ActorID: "staff-1", TargetID: "student-1",
		CreatedAt: now.Add(time.Hour),
	}))

	entries, err := store.ListAuditLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, "e1", entries[1].ID)
	assert.Equal(t, "w1", entries[1].Details["warning_id"])

	entries, err = store.ListAuditLog(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := testTime()

	require.NoError(t, store.CreateReport(ctx, makeReport("r1", "student-1", "post-1", now)))
	require.NoError(t, store.AddWarning(ctx, moderation.Warning{
		ID: "w1", UserID: "student-2", IssuedBy: "staff-1", Reason: "be kind", CreatedAt: now,
	}))
	expiresAt := now.Add(time.Hour)
	require.NoError(t, store.CreateSuspension(ctx, makeSuspension("s1", "student-3", now, &expiresAt)))
	require.NoError(t, store.CreateAppeal(ctx, moderation.Appeal{
		ID: "a1", UserID: "student-3", Message: "sorry", Status: moderation.AppealOpen, CreatedAt: now,
	}))

	stats, err := store.Stats(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OpenReports)
	assert.Equal(t, 1, stats.OpenAppeals)
	assert.Equal(t, 1, stats.ActiveSuspensions)
	assert.Equal(t, 1, stats.TotalWarnings)

	// The expired suspension no longer counts as active
	stats, err = store.Stats(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveSuspensions)
}
