package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/services"
)

const (
	PurgeWebhookEventsTaskID = "purge_webhook_events"
	defaultRetentionDays     = 30
)

type PurgeWebhookEventsArgs struct {
	RetentionDays int `json:"retention_days"`
}

// PurgeWebhookEventsTaskDef deletes handled webhook notifications past their retention.
type PurgeWebhookEventsTaskDef struct {
	log    *services.WebhookLog
	logger *log.Logger
	now    func() time.Time
}

func (t *PurgeWebhookEventsTaskDef) TaskID() string {
	return PurgeWebhookEventsTaskID
}

func (t *PurgeWebhookEventsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args PurgeWebhookEventsArgs
	if err := decodeArguments(task, &args); err != nil {
		return nil, err
	}
	if args.RetentionDays <= 0 {
		args.RetentionDays = defaultRetentionDays
	}

	now := time.Now()
	if t.now != nil {
		now = t.now()
	}
	cutoff := now.AddDate(0, 0, -args.RetentionDays)

	deleted, err := t.log.Purge(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge webhook events: %w", err)
	}

	t.logger.Printf("[Task: %s] Deleted %d events older than %s", t.TaskID(), deleted, cutoff.Format(time.RFC3339))
	return map[string]interface{}{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	}, nil
}
