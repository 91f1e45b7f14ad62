// Package notify delivers moderation events to the platform notification
// service. Delivery is best-effort: the moderation state change is the durable
// source of truth, and a failed delivery is logged, never rolled back.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// EventType identifies the kind of moderation event.
type EventType string

const (
	EventWarning        EventType = "warning"
	EventSuspended      EventType = "suspended"
	EventUnsuspended    EventType = "unsuspended"
	EventReportResolved EventType = "report_resolved"
)

// Event is a fire-and-forget moderation notification. At-least-once delivery
// is acceptable; consumers must tolerate duplicates.
type Event struct {
	Type    EventType         `json:"type"`
	UserID  string            `json:"user_id"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Notifier sends moderation events to the notification collaborator.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LogNotifier writes events to the log. It is the fallback when no webhook
// endpoint is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, event Event) error {
	log.Info().
		Str("type", string(event.Type)).
		Str("user_id", event.UserID).
		Interface("payload", event.Payload).
		Msg("notify: event (no webhook configured)")
	return nil
}
