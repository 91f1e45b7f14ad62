package moderation

import "time"

// UserState is the moderation state of a user account.
type UserState string

const (
	StateActive    UserState = "active"
	StateWarned    UserState = "warned"
	StateSuspended UserState = "suspended"
)

// UserStatus is the per-user moderation projection. It is derived from the
// warning and suspension tables and can be recomputed at any time; the
// suspension table is the source of truth.
type UserStatus struct {
	UserID             string    `json:"user_id"`
	State              UserState `json:"state"`
	ActiveSuspensionID string    `json:"active_suspension_id,omitempty"`
	WarningCount       int       `json:"warning_count"`
}

// ReportStatus represents the lifecycle status of a report.
type ReportStatus string

const (
	ReportOpen      ReportStatus = "open"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Terminal returns true once a report can no longer transition.
func (s ReportStatus) Terminal() bool {
	return s == ReportResolved || s == ReportDismissed
}

// Report is a user-submitted report against a post or a comment.
// Exactly one of PostID/CommentID is set.
type Report struct {
	ID           string       `json:"id"`
	ReporterID   string       `json:"reporter_user_id"`
	TargetUserID string       `json:"target_user_id"`
	PostID       string       `json:"post_id,omitempty"`
	CommentID    string       `json:"comment_id,omitempty"`
	Reason       string       `json:"reason"`
	Status       ReportStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	ResolvedBy   string       `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
}

// Warning is an append-only disciplinary note against a user. A warning never
// restricts access; it only increments the user's warning count.
type Warning struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ReportID  string    `json:"report_id,omitempty"`
	IssuedBy  string    `json:"issued_by"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// DurationTag selects a suspension length. The mapping to an expiry
// timestamp lives in the policy clock (policy.go).
type DurationTag string

const (
	DurationDay         DurationTag = "day"
	DurationWeek        DurationTag = "week"
	DurationMonth       DurationTag = "month"
	DurationThreeMonths DurationTag = "three_months"
	DurationIndefinite  DurationTag = "indefinite"
)

// LiftReason records how a suspension ended.
type LiftReason string

const (
	LiftExpired       LiftReason = "expired"
	LiftManual        LiftReason = "manual"
	LiftAppealGranted LiftReason = "appeal_granted"
)

// Suspension is a time-boxed or indefinite restriction on a user.
// A nil ExpiresAt means indefinite.
type Suspension struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	ReportID    string      `json:"report_id,omitempty"`
	IssuedBy    string      `json:"issued_by"`
	Reason      string      `json:"reason"`
	DurationTag DurationTag `json:"duration_tag"`
	IssuedAt    time.Time   `json:"issued_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	LiftedAt    *time.Time  `json:"lifted_at,omitempty"`
	LiftReason  LiftReason  `json:"lift_reason,omitempty"`
}

// ActiveAt reports whether the suspension restricts the user at the given
// instant: not yet lifted and not past its expiry.
func (s *Suspension) ActiveAt(now time.Time) bool {
	if s.LiftedAt != nil {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// AppealStatus represents the lifecycle status of an appeal.
type AppealStatus string

const (
	AppealOpen     AppealStatus = "open"
	AppealResolved AppealStatus = "resolved"
)

// Appeal is a suspended user's request to have the suspension lifted.
type Appeal struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	Message    string       `json:"message"`
	Status     AppealStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ResolvedBy string       `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	Granted    bool         `json:"granted"`
}

// Action is a platform action subject to access checks. The restricted set is
// configured by the platform, so actions are open-ended strings.
type Action string

const (
	ActionPost    Action = "post"
	ActionComment Action = "comment"
	ActionLike    Action = "like"
	ActionAppeal  Action = "appeal"
)

// ReasonAccountRestricted is the only reason text surfaced to blocked users.
const ReasonAccountRestricted = "account restricted"

// AccessDecision is the answer to "may this user perform this action now?".
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// AuditAction represents a type of logged moderation action.
type AuditAction string

const (
	AuditWarnUser         AuditAction = "warn_user"
	AuditSuspendUser      AuditAction = "suspend_user"
	AuditUnsuspendUser    AuditAction = "unsuspend_user"
	AuditResolveReport    AuditAction = "resolve_report"
	AuditResolveAppeal    AuditAction = "resolve_appeal"
	AuditExpireSuspension AuditAction = "expire_suspension"
)

// AuditEntry is an append-only record of a moderation action.
type AuditEntry struct {
	ID        string            `json:"id"`
	Action    AuditAction       `json:"action"`
	ActorID   string            `json:"actor_id"` // guardian user id or "sweeper"
	TargetID  string            `json:"target_id"`
	Reason    string            `json:"reason,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Stats summarizes the store for the guardian dashboard.
type Stats struct {
	OpenReports       int `json:"open_reports"`
	OpenAppeals       int `json:"open_appeals"`
	ActiveSuspensions int `json:"active_suspensions"`
	TotalWarnings     int `json:"total_warnings"`
}
