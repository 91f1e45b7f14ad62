package moderation

import (
	"fmt"
	"time"
)

// ExpiryFor maps a suspension duration tag to an expiry timestamp relative to
// the issue time. A nil result means the suspension is indefinite. The mapping
// is pure and has no dependency on storage or wall-clock reads.
func ExpiryFor(tag DurationTag, issuedAt time.Time) (*time.Time, error) {
	var d time.Duration
	switch tag {
	case DurationDay:
		d = 24 * time.Hour
	case DurationWeek:
		d = 7 * 24 * time.Hour
	case DurationMonth:
		d = 30 * 24 * time.Hour
	case DurationThreeMonths:
		d = 90 * 24 * time.Hour
	case DurationIndefinite:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDuration, tag)
	}
	t := issuedAt.Add(d)
	return &t, nil
}
