package moderation

import "errors"

// Sentinel errors for the moderation core. Callers match with errors.Is; the
// HTTP layer maps each kind to a status code.
var (
	// ErrNotFound means a referenced report, appeal or suspension does not exist.
	ErrNotFound = errors.New("moderation: not found")

	// ErrConflict means a write would violate a state invariant, such as a
	// second active suspension or a second open appeal for the same user.
	ErrConflict = errors.New("moderation: conflict")

	// ErrInvalidState means an illegal transition on a terminal entity,
	// such as resolving an already-resolved report.
	ErrInvalidState = errors.New("moderation: invalid state transition")

	// ErrInvalidDuration means an unknown suspension duration tag.
	ErrInvalidDuration = errors.New("moderation: unknown duration tag")

	// ErrDuplicateReport means the reporter already has an open report
	// against the same content.
	ErrDuplicateReport = errors.New("moderation: duplicate report")

	// ErrRateLimited means the reporter exceeded the hourly report budget.
	ErrRateLimited = errors.New("moderation: report rate limit exceeded")
)

// ValidationError represents malformed or missing input, rejected before any
// write happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "moderation: invalid " + e.Field + ": " + e.Message
}
