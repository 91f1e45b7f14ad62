package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"vinemod/internal/moderation"
)

// Ensure Store implements the interface at compile time.
var _ moderation.Store = (*Store)(nil)

// ========== Reports ==========

func (s *Store) CreateReport(ctx context.Context, report moderation.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mod_reports
			(id, reporter_id, target_user_id, post_id, comment_id, reason, status, created_at, resolved_by, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.ReporterID, report.TargetUserID,
		nullIfEmpty(report.PostID), nullIfEmpty(report.CommentID),
		report.Reason, string(report.Status), fmtTime(report.CreatedAt), report.ResolvedBy, nil)
	if err != nil {
		if isUniqueViolation(err) {
			return moderation.ErrDuplicateReport
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	return getReport(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getReport(ctx context.Context, q querier, id string) (*moderation.Report, error) {
	var r moderation.Report
	var postID, commentID sql.NullString
	var createdAtStr string
	var resolvedAtStr sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, reporter_id, target_user_id, post_id, comment_id, reason, status, created_at, resolved_by, resolved_at
		FROM mod_reports WHERE id = ?
	`, id).Scan(&r.ID, &r.ReporterID, &r.TargetUserID, &postID, &commentID,
		&r.Reason, &r.Status, &createdAtStr, &r.ResolvedBy, &resolvedAtStr)
	if err == sql.ErrNoRows {
		return nil, moderation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.PostID = postID.String
	r.CommentID = commentID.String
	r.CreatedAt = parseTime(createdAtStr)
	r.ResolvedAt = parseTimePtr(resolvedAtStr)
	return &r, nil
}

func (s *Store) ListOpenReports(ctx context.Context) ([]moderation.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reporter_id, target_user_id, post_id, comment_id, reason, status, created_at, resolved_by, resolved_at
		FROM mod_reports WHERE status = 'open' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []moderation.Report
	for rows.Next() {
		var r moderation.Report
		var postID, commentID sql.NullString
		var createdAtStr string
		var resolvedAtStr sql.NullString
		if err := rows.Scan(&r.ID, &r.ReporterID, &r.TargetUserID, &postID, &commentID,
			&r.Reason, &r.Status, &createdAtStr, &r.ResolvedBy, &resolvedAtStr); err != nil {
			return nil, err
		}
		r.PostID = postID.String
		r.CommentID = commentID.String
		r.CreatedAt = parseTime(createdAtStr)
		r.ResolvedAt = parseTimePtr(resolvedAtStr)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *Store) ResolveReport(ctx context.Context, id string, status moderation.ReportStatus, resolvedBy string, at time.Time) (*moderation.Report, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	report, err := getReport(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if report.Status.Terminal() {
		return nil, fmt.Errorf("%w: report %s already %s", moderation.ErrInvalidState, id, report.Status)
	}

	resolvedAt := at.UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE mod_reports SET status = ?, resolved_by = ?, resolved_at = ? WHERE id = ?
	`, string(status), resolvedBy, fmtTime(resolvedAt), id); err != nil {
		return nil, fmt.Errorf("resolve report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	report.Status = status
	report.ResolvedBy = resolvedBy
	report.ResolvedAt = &resolvedAt
	return report, nil
}

func (s *Store) CountReportsByReporterSince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mod_reports WHERE reporter_id = ? AND created_at > ?
	`, reporterID, fmtTime(since)).Scan(&count)
	return count, err
}

// ========== Warnings ==========

func (s *Store) AddWarning(ctx context.Context, warning moderation.Warning) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mod_warnings (id, user_id, report_id, issued_by, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, warning.ID, warning.UserID, warning.ReportID, warning.IssuedBy, warning.Reason, fmtTime(warning.CreatedAt)); err != nil {
		return fmt.Errorf("add warning: %w", err)
	}
	if err := recomputeStatus(ctx, tx, warning.UserID, warning.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListWarnings(ctx context.Context, userID string) ([]moderation.Warning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, report_id, issued_by, reason, created_at
		FROM mod_warnings WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warnings []moderation.Warning
	for rows.Next() {
		var w moderation.Warning
		var createdAtStr string
		if err := rows.Scan(&w.ID, &w.UserID, &w.ReportID, &w.IssuedBy, &w.Reason, &createdAtStr); err != nil {
			return nil, err
		}
		w.CreatedAt = parseTime(createdAtStr)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// ========== Suspensions ==========

func (s *Store) CreateSuspension(ctx context.Context, suspension moderation.Suspension) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// A lapsed suspension must not block a fresh one. Lift it here so the
	// partial unique index only guards genuinely active rows.
	if _, err := tx.ExecContext(ctx, `
		UPDATE mod_suspensions SET lifted_at = ?, lift_reason = ?
		WHERE user_id = ? AND lifted_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?
	`, fmtTime(suspension.IssuedAt), string(moderation.LiftExpired),
		suspension.UserID, fmtTime(suspension.IssuedAt)); err != nil {
		return fmt.Errorf("lift lapsed suspension: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mod_suspensions
			(id, user_id, report_id, issued_by, reason, duration_tag, issued_at, expires_at, lifted_at, lift_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, '')
	`, suspension.ID, suspension.UserID, suspension.ReportID, suspension.IssuedBy, suspension.Reason,
		string(suspension.DurationTag), fmtTime(suspension.IssuedAt), fmtTimePtr(suspension.ExpiresAt)); err != nil {
		if isUniqueViolation(err) {
			return moderation.ErrConflict
		}
		return fmt.Errorf("create suspension: %w", err)
	}

	if err := recomputeStatus(ctx, tx, suspension.UserID, suspension.IssuedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetSuspension(ctx context.Context, id string) (*moderation.Suspension, error) {
	susp, err := scanSuspensionRow(s.db.QueryRowContext(ctx, suspensionSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, moderation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return susp, nil
}

const suspensionSelect = `
	SELECT id, user_id, report_id, issued_by, reason, duration_tag, issued_at, expires_at, lifted_at, lift_reason
	FROM mod_suspensions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuspensionRow(row rowScanner) (*moderation.Suspension, error) {
	var susp moderation.Suspension
	var issuedAtStr string
	var expiresAtStr, liftedAtStr sql.NullString
	var liftReason string
	err := row.Scan(&susp.ID, &susp.UserID, &susp.ReportID, &susp.IssuedBy, &susp.Reason,
		&susp.DurationTag, &issuedAtStr, &expiresAtStr, &liftedAtStr, &liftReason)
	if err != nil {
		return nil, err
	}
	susp.IssuedAt = parseTime(issuedAtStr)
	susp.ExpiresAt = parseTimePtr(expiresAtStr)
	susp.LiftedAt = parseTimePtr(liftedAtStr)
	susp.LiftReason = moderation.LiftReason(liftReason)
	return &susp, nil
}

func (s *Store) GetActiveSuspension(ctx context.Context, userID string, now time.Time) (*moderation.Suspension, error) {
	susp, err := getActiveSuspension(ctx, s.db, userID, now)
	if err != nil {
		return nil, err
	}
	return susp, nil
}

func getActiveSuspension(ctx context.Context, q querier, userID string, now time.Time) (*moderation.Suspension, error) {
	susp, err := scanSuspensionRow(q.QueryRowContext(ctx, suspensionSelect+`
		WHERE user_id = ? AND lifted_at IS NULL AND (expires_at IS NULL OR expires_at > ?)
	`, userID, fmtTime(now)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return susp, nil
}

func (s *Store) LiftActiveSuspension(ctx context.Context, userID string, at time.Time, reason moderation.LiftReason) (*moderation.Suspension, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	active, err := getActiveSuspension(ctx, tx, userID, at)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}

	liftedAt := at.UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE mod_suspensions SET lifted_at = ?, lift_reason = ? WHERE id = ? AND lifted_at IS NULL
	`, fmtTime(liftedAt), string(reason), active.ID); err != nil {
		return nil, fmt.Errorf("lift suspension: %w", err)
	}
	if err := recomputeStatus(ctx, tx, userID, at); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	active.LiftedAt = &liftedAt
	active.LiftReason = reason
	return active, nil
}

func (s *Store) LiftSuspensionIfUnlifted(ctx context.Context, id string, at time.Time, reason moderation.LiftReason) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE mod_suspensions SET lifted_at = ?, lift_reason = ? WHERE id = ? AND lifted_at IS NULL
	`, fmtTime(at), string(reason), id)
	if err != nil {
		return false, fmt.Errorf("lift suspension: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, tx.Commit()
	}

	var userID string
	if err := tx.QueryRowContext(ctx, `SELECT user_id FROM mod_suspensions WHERE id = ?`, id).Scan(&userID); err != nil {
		return false, err
	}
	if err := recomputeStatus(ctx, tx, userID, at); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) ListSuspensions(ctx context.Context, userID string) ([]moderation.Suspension, error) {
	rows, err := s.db.QueryContext(ctx, suspensionSelect+` WHERE user_id = ? ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuspensions(rows)
}

func (s *Store) ListExpiredUnlifted(ctx context.Context, now time.Time, limit int) ([]moderation.Suspension, error) {
	rows, err := s.db.QueryContext(ctx, suspensionSelect+`
		WHERE lifted_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at ASC LIMIT ?
	`, fmtTime(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuspensions(rows)
}

func scanSuspensions(rows *sql.Rows) ([]moderation.Suspension, error) {
	var suspensions []moderation.Suspension
	for rows.Next() {
		susp, err := scanSuspensionRow(rows)
		if err != nil {
			return nil, err
		}
		suspensions = append(suspensions, *susp)
	}
	return suspensions, rows.Err()
}

// ========== Appeals ==========

func (s *Store) CreateAppeal(ctx context.Context, appeal moderation.Appeal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mod_appeals (id, user_id, message, status, created_at, resolved_by, resolved_at, granted)
		VALUES (?, ?, ?, ?, ?, '', NULL, 0)
	`, appeal.ID, appeal.UserID, appeal.Message, string(appeal.Status), fmtTime(appeal.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return moderation.ErrConflict
		}
		return fmt.Errorf("create appeal: %w", err)
	}
	return nil
}

func (s *Store) GetAppeal(ctx context.Context, id string) (*moderation.Appeal, error) {
	return getAppeal(ctx, s.db, id)
}

func getAppeal(ctx context.Context, q querier, id string) (*moderation.Appeal, error) {
	var a moderation.Appeal
	var createdAtStr string
	var resolvedAtStr sql.NullString
	var granted int
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, message, status, created_at, resolved_by, resolved_at, granted
		FROM mod_appeals WHERE id = ?
	`, id).Scan(&a.ID, &a.UserID, &a.Message, &a.Status, &createdAtStr, &a.ResolvedBy, &resolvedAtStr, &granted)
	if err == sql.ErrNoRows {
		return nil, moderation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAtStr)
	a.ResolvedAt = parseTimePtr(resolvedAtStr)
	a.Granted = granted == 1
	return &a, nil
}

func (s *Store) ListOpenAppeals(ctx context.Context) ([]moderation.Appeal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, status, created_at, resolved_by, resolved_at, granted
		FROM mod_appeals WHERE status = 'open' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appeals []moderation.Appeal
	for rows.Next() {
		var a moderation.Appeal
		var createdAtStr string
		var resolvedAtStr sql.NullString
		var granted int
		if err := rows.Scan(&a.ID, &a.UserID, &a.Message, &a.Status, &createdAtStr, &a.ResolvedBy, &resolvedAtStr, &granted); err != nil {
			return nil, err
		}
		a.CreatedAt = parseTime(createdAtStr)
		a.ResolvedAt = parseTimePtr(resolvedAtStr)
		a.Granted = granted == 1
		appeals = append(appeals, a)
	}
	return appeals, rows.Err()
}

func (s *Store) ResolveAppeal(ctx context.Context, id string, resolvedBy string, at time.Time, grantLift bool) (*moderation.Appeal, *moderation.Suspension, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	appeal, err := getAppeal(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if appeal.Status != moderation.AppealOpen {
		return nil, nil, fmt.Errorf("%w: appeal %s already resolved", moderation.ErrInvalidState, id)
	}

	resolvedAt := at.UTC()
	granted := 0
	if grantLift {
		granted = 1
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE mod_appeals SET status = ?, resolved_by = ?, resolved_at = ?, granted = ? WHERE id = ?
	`, string(moderation.AppealResolved), resolvedBy, fmtTime(resolvedAt), granted, id); err != nil {
		return nil, nil, fmt.Errorf("resolve appeal: %w", err)
	}

	// The lift, when granted, commits with the appeal update or not at all.
	var lifted *moderation.Suspension
	if grantLift {
		active, err := getActiveSuspension(ctx, tx, appeal.UserID, at)
		if err != nil {
			return nil, nil, err
		}
		if active != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE mod_suspensions SET lifted_at = ?, lift_reason = ? WHERE id = ? AND lifted_at IS NULL
			`, fmtTime(resolvedAt), string(moderation.LiftAppealGranted), active.ID); err != nil {
				return nil, nil, fmt.Errorf("lift suspension: %w", err)
			}
			if err := recomputeStatus(ctx, tx, appeal.UserID, at); err != nil {
				return nil, nil, err
			}
			active.LiftedAt = &resolvedAt
			active.LiftReason = moderation.LiftAppealGranted
			lifted = active
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	appeal.Status = moderation.AppealResolved
	appeal.ResolvedBy = resolvedBy
	appeal.ResolvedAt = &resolvedAt
	appeal.Granted = grantLift
	return appeal, lifted, nil
}

// ========== Status projection ==========

func (s *Store) GetUserStatus(ctx context.Context, userID string) (*moderation.UserStatus, error) {
	var st moderation.UserStatus
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, state, active_suspension_id, warning_count
		FROM mod_user_status WHERE user_id = ?
	`, userID).Scan(&st.UserID, &st.State, &st.ActiveSuspensionID, &st.WarningCount)
	if err == sql.ErrNoRows {
		return &moderation.UserStatus{UserID: userID, State: moderation.StateActive}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// recomputeStatus rebuilds the derived per-user projection inside the calling
// transaction so it can never drift from the underlying rows.
func recomputeStatus(ctx context.Context, tx *sql.Tx, userID string, now time.Time) error {
	var warningCount int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mod_warnings WHERE user_id = ?
	`, userID).Scan(&warningCount); err != nil {
		return fmt.Errorf("count warnings: %w", err)
	}

	active, err := getActiveSuspension(ctx, tx, userID, now)
	if err != nil {
		return fmt.Errorf("load active suspension: %w", err)
	}

	state := moderation.StateActive
	activeID := ""
	switch {
	case active != nil:
		state = moderation.StateSuspended
		activeID = active.ID
	case warningCount > 0:
		state = moderation.StateWarned
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mod_user_status (user_id, state, active_suspension_id, warning_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			state                = excluded.state,
			active_suspension_id = excluded.active_suspension_id,
			warning_count        = excluded.warning_count
	`, userID, string(state), activeID, warningCount); err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return nil
}

// ========== Audit Log ==========

func (s *Store) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		details = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mod_audit_log (id, action, actor_id, target_id, reason, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, string(entry.Action), entry.ActorID, entry.TargetID, entry.Reason,
		string(details), fmtTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLog(ctx context.Context, limit int) ([]moderation.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, actor_id, target_id, reason, details, created_at
		FROM mod_audit_log ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []moderation.AuditEntry
	for rows.Next() {
		var e moderation.AuditEntry
		var detailsStr, createdAtStr string
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.TargetID, &e.Reason, &detailsStr, &createdAtStr); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAtStr)
		_ = json.Unmarshal([]byte(detailsStr), &e.Details)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ========== Stats ==========

func (s *Store) Stats(ctx context.Context, now time.Time) (moderation.Stats, error) {
	var stats moderation.Stats
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mod_reports WHERE status = 'open'
	`).Scan(&stats.OpenReports); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mod_appeals WHERE status = 'open'
	`).Scan(&stats.OpenAppeals); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mod_suspensions
		WHERE lifted_at IS NULL AND (expires_at IS NULL OR expires_at > ?)
	`, fmtTime(now)).Scan(&stats.ActiveSuspensions); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mod_warnings
	`).Scan(&stats.TotalWarnings); err != nil {
		return stats, err
	}
	return stats, nil
}
