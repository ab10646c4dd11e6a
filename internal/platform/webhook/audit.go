package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/db"
)

// Processing statuses recorded for every audited event.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusDuplicate = "duplicate"
)

// WebhookEvent is one row of the append-only audit log.
type WebhookEvent struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	EventType        string          `db:"event_type" json:"event_type"`
	Payload          json.RawMessage `db:"payload" json:"payload"`
	ProcessingStatus string          `db:"processing_status" json:"processing_status"`
	ErrorMessage     *string         `db:"error_message" json:"error_message,omitempty"`
	ReceivedAt       time.Time       `db:"received_at" json:"received_at"`
}

// AuditLog appends events and counts recent ones. There is no update or
// delete; the table enforces that with a trigger as well.
type AuditLog interface {
	Record(ctx context.Context, ev *WebhookEvent) error
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type auditLogPG struct {
	db db.Querier
}

func NewAuditLog(q db.Querier) AuditLog {
	return &auditLogPG{db: q}
}

func (a *auditLogPG) Record(ctx context.Context, ev *WebhookEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	_, err := a.db.Exec(ctx, `
		INSERT INTO webhook_event (id, event_type, payload, processing_status, error_message, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.EventType, []byte(ev.Payload), ev.ProcessingStatus, ev.ErrorMessage, ev.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

func (a *auditLogPG) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := a.db.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_event WHERE received_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count webhook events: %w", err)
	}
	return n, nil
}

// textFallback rebuilds ev so that it can be stored when the verbatim
// payload was refused, for example a \u0000 escape that JSONB rejects. The
// payload is kept as a string under "_raw" and the row is marked as an error.
func textFallback(ev *WebhookEvent) *WebhookEvent {
	payload, _ := json.Marshal(map[string]string{"_raw": stripNUL(string(ev.Payload))})
	msg := "Payload could not be stored verbatim and was saved as text."
	if ev.ErrorMessage != nil {
		msg += " " + *ev.ErrorMessage
	}
	msg = stripNUL(msg)
	return &WebhookEvent{
		ID:               ev.ID,
		EventType:        stripNUL(ev.EventType),
		Payload:          payload,
		ProcessingStatus: StatusError,
		ErrorMessage:     &msg,
		ReceivedAt:       ev.ReceivedAt,
	}
}

func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
