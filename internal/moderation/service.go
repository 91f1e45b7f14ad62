package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vinemod/internal/notify"
	"vinemod/internal/tracing"
)

const (
	// MaxReasonLength caps report, warning and suspension reasons.
	MaxReasonLength = 500
	// MaxAppealLength caps the appeal message.
	MaxAppealLength = 2000
)

// Options configures a Service.
type Options struct {
	// RestrictedActions is the set of actions a suspension blocks. The
	// platform supplies it; read-only and appeal actions stay out of it.
	RestrictedActions []Action

	// ReportRateLimit is the maximum reports a user may submit per hour.
	// Zero disables the limit.
	ReportRateLimit int

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Service implements report intake, appeal intake, moderation actions and the
// access guard on top of a Store. Authorization of the acting principal is the
// caller's responsibility; the service records the actor it is given.
type Service struct {
	store      Store
	notifier   notify.Notifier
	restricted map[Action]bool
	rateLimit  int
	now        func() time.Time
}

// NewService creates a moderation service.
func NewService(store Store, notifier notify.Notifier, opts Options) *Service {
	restricted := make(map[Action]bool, len(opts.RestrictedActions))
	for _, a := range opts.RestrictedActions {
		restricted[a] = true
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Service{
		store:      store,
		notifier:   notifier,
		restricted: restricted,
		rateLimit:  opts.ReportRateLimit,
		now:        now,
	}
}

// ReportTarget identifies the reported content: exactly one of PostID or
// CommentID must be set.
type ReportTarget struct {
	PostID    string
	CommentID string
}

// SubmitReport validates and records a report against a post or comment.
// It never changes suspension state.
func (s *Service) SubmitReport(ctx context.Context, reporterID, targetUserID string, target ReportTarget, reason string) (*Report, error) {
	if reporterID == "" {
		return nil, &ValidationError{Field: "reporter_user_id", Message: "required"}
	}
	if targetUserID == "" {
		return nil, &ValidationError{Field: "target_user_id", Message: "required"}
	}
	if reporterID == targetUserID {
		return nil, &ValidationError{Field: "target_user_id", Message: "cannot report your own content"}
	}
	if (target.PostID == "") == (target.CommentID == "") {
		return nil, &ValidationError{Field: "target", Message: "exactly one of post_id or comment_id must be set"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "required"}
	}
	if len(reason) > MaxReasonLength {
		reason = reason[:MaxReasonLength]
	}

	now := s.now().UTC()

	if s.rateLimit > 0 {
		recent, err := s.store.CountReportsByReporterSince(ctx, reporterID, now.Add(-time.Hour))
		if err != nil {
			return nil, fmt.Errorf("check report rate limit: %w", err)
		}
		if recent >= s.rateLimit {
			return nil, ErrRateLimited
		}
	}

	report := Report{
		ID:           uuid.NewString(),
		ReporterID:   reporterID,
		TargetUserID: targetUserID,
		PostID:       target.PostID,
		CommentID:    target.CommentID,
		Reason:       reason,
		Status:       ReportOpen,
		CreatedAt:    now,
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}

	log.Info().
		Str("report_id", report.ID).
		Str("reporter", report.ReporterID).
		Str("target_user", report.TargetUserID).
		Msg("moderation: report created")
	return &report, nil
}

// SubmitAppeal records an appeal against the user's active suspension.
// The user must currently be suspended and have no other open appeal.
func (s *Service) SubmitAppeal(ctx context.Context, userID, message string) (*Appeal, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "required"}
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Field: "message", Message: "required"}
	}
	if len(message) > MaxAppealLength {
		message = message[:MaxAppealLength]
	}

	now := s.now().UTC()
	active, err := s.store.GetActiveSuspension(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("check suspension: %w", err)
	}
	if active == nil {
		return nil, &ValidationError{Field: "user_id", Message: "user is not suspended"}
	}

	appeal := Appeal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Status:    AppealOpen,
		CreatedAt: now,
	}
	if err := s.store.CreateAppeal(ctx, appeal); err != nil {
		return nil, err
	}

	log.Info().
		Str("appeal_id", appeal.ID).
		Str("user_id", userID).
		Str("suspension_id", active.ID).
		Msg("moderation: appeal created")
	return &appeal, nil
}

// WarnUser appends a warning. Warnings never block access; the user's state
// moves to warned only when it was active.
func (s *Service) WarnUser(ctx context.Context, actorID, userID, reason, reportID string) (*Warning, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "required"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "required"}
	}
	if len(reason) > MaxReasonLength {
		reason = reason[:MaxReasonLength]
	}

	warning := Warning{
		ID:        uuid.NewString(),
		UserID:    userID,
		ReportID:  reportID,
		IssuedBy:  actorID,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddWarning(ctx, warning); err != nil {
		return nil, err
	}

	s.audit(ctx, AuditWarnUser, actorID, userID, reason, map[string]string{"warning_id": warning.ID, "report_id": reportID})
	s.notifyAsync(notify.Event{
		Type:    notify.EventWarning,
		UserID:  userID,
		Payload: map[string]string{"reason": reason},
	})

	log.Info().Str("user_id", userID).Str("by", actorID).Msg("moderation: user warned")
	return &warning, nil
}

// SuspendUser issues a suspension. Fails with ErrConflict while the user
// already has an active suspension; the caller must unsuspend first.
func (s *Service) SuspendUser(ctx context.Context, actorID, userID string, tag DurationTag, reason, reportID string) (*Suspension, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "required"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "required"}
	}
	if len(reason) > MaxReasonLength {
		reason = reason[:MaxReasonLength]
	}

	now := s.now().UTC()
	expiresAt, err := ExpiryFor(tag, now)
	if err != nil {
		return nil, err
	}

	suspension := Suspension{
		ID:          uuid.NewString(),
		UserID:      userID,
		ReportID:    reportID,
		IssuedBy:    actorID,
		Reason:      reason,
		DurationTag: tag,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
	}
	if err := s.store.CreateSuspension(ctx, suspension); err != nil {
		return nil, err
	}

	details := map[string]string{"suspension_id": suspension.ID, "duration": string(tag), "report_id": reportID}
	payload := map[string]string{"reason": reason, "duration": string(tag)}
	if expiresAt != nil {
		payload["expires_at"] = expiresAt.Format(time.RFC3339)
	}
	s.audit(ctx, AuditSuspendUser, actorID, userID, reason, details)
	s.notifyAsync(notify.Event{Type: notify.EventSuspended, UserID: userID, Payload: payload})

	log.Info().
		Str("user_id", userID).
		Str("by", actorID).
		Str("duration", string(tag)).
		Msg("moderation: user suspended")
	return &suspension, nil
}

// UnsuspendUser lifts the user's active suspension. It is idempotent: when no
// active suspension exists it returns nil without error.
func (s *Service) UnsuspendUser(ctx context.Context, actorID, userID, appealID string) (*Suspension, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "required"}
	}

	reason := LiftManual
	if appealID != "" {
		reason = LiftAppealGranted
	}

	lifted, err := s.store.LiftActiveSuspension(ctx, userID, s.now().UTC(), reason)
	if err != nil {
		return nil, err
	}
	if lifted == nil {
		log.Debug().Str("user_id", userID).Msg("moderation: unsuspend no-op, no active suspension")
		return nil, nil
	}

	s.audit(ctx, AuditUnsuspendUser, actorID, userID, "", map[string]string{"suspension_id": lifted.ID, "appeal_id": appealID, "lift_reason": string(reason)})
	s.notifyAsync(notify.Event{Type: notify.EventUnsuspended, UserID: userID, Payload: map[string]string{"lift_reason": string(reason)}})

	log.Info().Str("user_id", userID).Str("by", actorID).Msg("moderation: suspension lifted")
	return lifted, nil
}

// ResolveReport transitions an open report to resolved or dismissed.
// Deliberately decoupled from warnings and suspensions: dismissing a report
// takes no disciplinary action, and disciplining is a separate call.
func (s *Service) ResolveReport(ctx context.Context, actorID, reportID string, status ReportStatus) (*Report, error) {
	if status != ReportResolved && status != ReportDismissed {
		return nil, &ValidationError{Field: "status", Message: "must be resolved or dismissed"}
	}

	report, err := s.store.ResolveReport(ctx, reportID, status, actorID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.audit(ctx, AuditResolveReport, actorID, reportID, "", map[string]string{"status": string(status)})
	s.notifyAsync(notify.Event{
		Type:    notify.EventReportResolved,
		UserID:  report.ReporterID,
		Payload: map[string]string{"report_id": report.ID, "status": string(status)},
	})

	log.Info().Str("report_id", reportID).Str("status", string(status)).Str("by", actorID).Msg("moderation: report resolved")
	return report, nil
}

// ResolveAppeal closes an open appeal. When grantUnsuspend is set the user's
// active suspension is lifted with reason appeal_granted in the same
// transaction as the appeal update.
func (s *Service) ResolveAppeal(ctx context.Context, actorID, appealID string, grantUnsuspend bool) (*Appeal, error) {
	appeal, lifted, err := s.store.ResolveAppeal(ctx, appealID, actorID, s.now().UTC(), grantUnsuspend)
	if err != nil {
		return nil, err
	}

	details := map[string]string{"granted": fmt.Sprintf("%t", grantUnsuspend)}
	if lifted != nil {
		details["suspension_id"] = lifted.ID
	}
	s.audit(ctx, AuditResolveAppeal, actorID, appeal.UserID, "", details)
	if lifted != nil {
		s.notifyAsync(notify.Event{
			Type:    notify.EventUnsuspended,
			UserID:  appeal.UserID,
			Payload: map[string]string{"lift_reason": string(LiftAppealGranted)},
		})
	}

	log.Info().
		Str("appeal_id", appealID).
		Bool("granted", grantUnsuspend).
		Str("by", actorID).
		Msg("moderation: appeal resolved")
	return appeal, nil
}

// CheckAccess answers whether the user may perform the action right now.
// An expired-but-unlifted suspension never blocks: the guard treats it as
// lifted on read, so a lagging sweeper cannot wrongly restrict a user.
func (s *Service) CheckAccess(ctx context.Context, userID string, action Action) (AccessDecision, error) {
	if userID == "" {
		return AccessDecision{}, &ValidationError{Field: "user_id", Message: "required"}
	}

	status, err := s.store.GetUserStatus(ctx, userID)
	if err != nil {
		return AccessDecision{}, fmt.Errorf("load user status: %w", err)
	}
	if status.State != StateSuspended {
		return AccessDecision{Allowed: true}, nil
	}
	if !s.restricted[action] {
		return AccessDecision{Allowed: true}, nil
	}

	active, err := s.store.GetActiveSuspension(ctx, userID, s.now().UTC())
	if err != nil {
		return AccessDecision{}, fmt.Errorf("load suspension: %w", err)
	}
	if active == nil {
		// Projection is stale: the suspension lapsed and the sweeper has not
		// caught up yet.
		return AccessDecision{Allowed: true}, nil
	}
	return AccessDecision{Allowed: false, Reason: ReasonAccountRestricted}, nil
}

// UserStatus returns the moderation projection for a user.
func (s *Service) UserStatus(ctx context.Context, userID string) (*UserStatus, error) {
	return s.store.GetUserStatus(ctx, userID)
}

func (s *Service) audit(ctx context.Context, action AuditAction, actorID, targetID, reason string, details map[string]string) {
	for k, v := range details {
		if v == "" {
			delete(details, k)
		}
	}
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		Reason:    reason,
		Details:   details,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.LogAction(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", string(action)).Msg("moderation: failed to write audit entry")
	}
}

// notifyAsync fires the event without blocking the action. Delivery failures
// are logged; moderation state is already committed.
func (s *Service) notifyAsync(event notify.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		ctx, span := tracing.NotifySpan(ctx, string(event.Type), event.UserID)
		defer span.End()
		if err := s.notifier.Send(ctx, event); err != nil {
			tracing.EndWithError(span, err)
			log.Error().
				Err(err).
				Str("type", string(event.Type)).
				Str("user_id", event.UserID).
				Msg("moderation: notification delivery failed")
		}
	}()
}
