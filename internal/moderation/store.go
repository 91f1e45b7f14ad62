package moderation

import (
	"context"
	"time"
)

// Store defines the persistence interface for moderation data.
// Implementations must be safe for concurrent use and must enforce the
// write-time invariants: at most one unlifted suspension per user, at most one
// open appeal per user, and at most one open report per (reporter, content)
// pair. Cross-entity updates are committed in a single transaction.
type Store interface {
	// Reports
	CreateReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListOpenReports(ctx context.Context) ([]Report, error)
	// ResolveReport transitions an open report to resolved or dismissed.
	// Returns ErrNotFound for unknown ids and ErrInvalidState once terminal.
	ResolveReport(ctx context.Context, id string, status ReportStatus, resolvedBy string, at time.Time) (*Report, error)
	CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error)

	// Warnings
	AddWarning(ctx context.Context, warning Warning) error
	ListWarnings(ctx context.Context, userID string) ([]Warning, error)

	// Suspensions
	// CreateSuspension fails with ErrConflict while the user has an active
	// suspension. A lapsed (expired but unlifted) suspension does not block;
	// it is lifted with reason "expired" in the same transaction.
	CreateSuspension(ctx context.Context, suspension Suspension) error
	GetSuspension(ctx context.Context, id string) (*Suspension, error)
	// GetActiveSuspension returns nil without error when the user has no
	// suspension active at the given instant (read-through expiry).
	GetActiveSuspension(ctx context.Context, userID string, now time.Time) (*Suspension, error)
	// LiftActiveSuspension lifts the user's active suspension, if any, and
	// returns the lifted row. Returns nil without error when there is none.
	LiftActiveSuspension(ctx context.Context, userID string, at time.Time, reason LiftReason) (*Suspension, error)
	// LiftSuspensionIfUnlifted conditionally lifts a specific suspension and
	// reports whether this call performed the lift. A race between the
	// sweeper and a manual unsuspend yields exactly one true.
	LiftSuspensionIfUnlifted(ctx context.Context, id string, at time.Time, reason LiftReason) (bool, error)
	ListSuspensions(ctx context.Context, userID string) ([]Suspension, error)
	ListExpiredUnlifted(ctx context.Context, now time.Time, limit int) ([]Suspension, error)

	// Appeals
	CreateAppeal(ctx context.Context, appeal Appeal) error
	GetAppeal(ctx context.Context, id string) (*Appeal, error)
	ListOpenAppeals(ctx context.Context) ([]Appeal, error)
	// ResolveAppeal closes an open appeal and, when grantLift is set, lifts
	// the user's active suspension with reason "appeal_granted" in the same
	// transaction. The lifted suspension is nil when none was active.
	ResolveAppeal(ctx context.Context, id string, resolvedBy string, at time.Time, grantLift bool) (*Appeal, *Suspension, error)

	// Status projection
	GetUserStatus(ctx context.Context, userID string) (*UserStatus, error)

	// Audit log
	LogAction(ctx context.Context, entry AuditEntry) error
	ListAuditLog(ctx context.Context, limit int) ([]AuditEntry, error)

	Stats(ctx context.Context, now time.Time) (Stats, error)

	Close() error
}
