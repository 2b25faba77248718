package billing

import "time"

type WebhookEventStatus string

const (
	// Ledger mutations committed, notifications not yet fully delivered.
	WebhookEventApplied   WebhookEventStatus = "applied"
	WebhookEventCompleted WebhookEventStatus = "completed"
	// Target record was missing; eligible for redrive inside the deferred window.
	WebhookEventSkipped WebhookEventStatus = "skipped"
	WebhookEventDropped WebhookEventStatus = "dropped"
)

// WebhookEvent records every provider event that reached a handler, keyed by the
// provider's event id. It doubles as the outbox for the notifications the event
// produced: Messages holds them JSON-encoded and Delivered counts how many have
// been handed to the notifier.
type WebhookEvent struct {
	ID            uint               `gorm:"primaryKey"`
	StripeEventID string             `gorm:"column:stripe_event_id;type:varchar(255);not null;uniqueIndex:idx_webhook_events_stripe_event_id"`
	Type          string             `gorm:"type:varchar(100);not null;index"`
	Status        WebhookEventStatus `gorm:"type:varchar(20);not null;index"`
	Payload       string             `gorm:"type:text;not null"`

	Messages  string `gorm:"type:text"`
	Delivered int    `gorm:"not null;default:0"`

	Attempts    int    `gorm:"not null;default:0"`
	LastError   string `gorm:"type:text"`
	ProcessedAt *time.Time

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
