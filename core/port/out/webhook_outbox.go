package out

import (
	"context"

	"github.com/google/uuid"
)

// WebhookEventKind names the change that triggered a webhook dispatch.
type WebhookEventKind string

const (
	WebhookEventCreated WebhookEventKind = "event.created"
	WebhookEventUpdated WebhookEventKind = "event.updated"
	WebhookEventDeleted WebhookEventKind = "event.deleted"
)

// WebhookDelivery is one queued, best-effort notification.
type WebhookDelivery struct {
	AccountID uuid.UUID
	Kind      WebhookEventKind
	Payload   []byte // pre-serialized JSON body
}

// WebhookOutbox is the port core/service mutations enqueue deliveries
// through; internal/webhookworker drains it. Enqueue must never block or
// fail the originating request (spec.md "best-effort out-of-band").
type WebhookOutbox interface {
	Enqueue(ctx context.Context, delivery WebhookDelivery) error
}
