package services

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coursemarket_echo/internal/models"
)

// WebhookLog persists every gateway notification and how it was handled.
type WebhookLog struct {
	db *gorm.DB
}

func NewWebhookLog(db *gorm.DB) *WebhookLog {
	return &WebhookLog{db: db}
}

// Record stores a freshly received notification.
func (l *WebhookLog) Record(ctx context.Context, topic, externalID string, payload []byte) (*models.WebhookEvent, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	event := models.WebhookEvent{
		Topic:      topic,
		ExternalID: externalID,
		Payload:    datatypes.JSON(payload),
		Status:     models.WebhookEventStatusReceived,
	}
	if err := l.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// Ignore marks a notification that needs no reconciliation, e.g. a merchant_order topic.
func (l *WebhookLog) Ignore(ctx context.Context, event *models.WebhookEvent, reason string) error {
	now := time.Now()
	event.Status = models.WebhookEventStatusIgnored
	event.Outcome = reason
	event.ProcessedAt = &now
	return l.db.WithContext(ctx).Model(event).Updates(map[string]interface{}{
		"status":       event.Status,
		"outcome":      event.Outcome,
		"processed_at": now,
	}).Error
}

// Complete stores the result of one reconciliation attempt for the notification.
func (l *WebhookLog) Complete(ctx context.Context, event *models.WebhookEvent, outcome Outcome, reconcileErr error) error {
	now := time.Now()
	event.Attempts++
	event.Outcome = string(outcome)
	event.ProcessedAt = &now
	event.LastError = ""

	switch {
	case reconcileErr != nil:
		event.Status = models.WebhookEventStatusFailed
		event.LastError = reconcileErr.Error()
	case outcome == OutcomeCommitted || outcome == OutcomeAlreadyProcessed:
		event.Status = models.WebhookEventStatusProcessed
	case outcome == OutcomeMalformedReference:
		event.Status = models.WebhookEventStatusNeedsReview
	default:
		event.Status = models.WebhookEventStatusIgnored
	}

	return l.db.WithContext(ctx).Model(event).Updates(map[string]interface{}{
		"status":       event.Status,
		"outcome":      event.Outcome,
		"last_error":   event.LastError,
		"attempts":     event.Attempts,
		"processed_at": now,
	}).Error
}

// Failed returns failed notifications with fewer than maxAttempts attempts, oldest first.
func (l *WebhookLog) Failed(ctx context.Context, maxAttempts, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := l.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", models.WebhookEventStatusFailed, maxAttempts).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Purge deletes handled notifications older than the cutoff and returns how many were removed.
// Failed notifications and those needing review are kept for investigation.
func (l *WebhookLog) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []models.WebhookEventStatus{models.WebhookEventStatusProcessed, models.WebhookEventStatusIgnored}, olderThan).
		Delete(&models.WebhookEvent{})
	return res.RowsAffected, res.Error
}
