package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventStatus string

const (
	WebhookEventStatusReceived  WebhookEventStatus = "received"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusIgnored   WebhookEventStatus = "ignored"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
	// NeedsReview marks a paid notification whose external reference could not be parsed.
	WebhookEventStatusNeedsReview WebhookEventStatus = "needs_review"
)

// WebhookEvent is the audit log of every gateway notification received.
// Failed events are picked up again by the replay task. Events needing review are never purged.
type WebhookEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Topic      string             `gorm:"type:varchar(50)" json:"topic"`
	ExternalID string             `gorm:"type:varchar(100);index" json:"external_id"`
	Payload    datatypes.JSON     `json:"payload"`
	Status     WebhookEventStatus `gorm:"type:varchar(20);index;default:'received'" json:"status"`
	Outcome    string             `gorm:"type:varchar(30)" json:"outcome"`
	LastError  string             `gorm:"type:text" json:"last_error"`
	Attempts   int                `gorm:"default:0" json:"attempts"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
