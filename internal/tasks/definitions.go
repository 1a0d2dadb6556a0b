package tasks

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"coursemarket_echo/internal/services"
)

const (
	// Every 15 minutes.
	replayFailedNotificationsRule = "FREQ=MINUTELY;INTERVAL=15"
	// Daily at 03:00 UTC.
	purgeWebhookEventsRule = "FREQ=DAILY;BYHOUR=3;BYMINUTE=0;BYSECOND=0"
)

// Reconciler is the part of services.Reconciler the tasks use.
type Reconciler interface {
	Reconcile(ctx context.Context, externalID string) (services.Outcome, error)
}

// ConfirmationSender delivers a purchase confirmation.
type ConfirmationSender interface {
	Send(ctx context.Context, msg services.PurchaseConfirmation) error
}

// Deps are the collaborators task handlers run against.
type Deps struct {
	DB         *gorm.DB
	Reconciler Reconciler
	Notifier   ConfirmationSender
	WebhookLog *services.WebhookLog
	Logger     *log.Logger
}

// DefineTasks registers all available tasks
func DefineTasks(registry *Registry, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	webhookLog := deps.WebhookLog
	if webhookLog == nil {
		webhookLog = services.NewWebhookLog(deps.DB)
	}

	registry.RegisterDefinition(&PurgeWebhookEventsTaskDef{log: webhookLog, logger: logger})

	if deps.Notifier != nil {
		registry.RegisterDefinition(&SendPurchaseConfirmationTaskDef{notifier: deps.Notifier, logger: logger})
	}

	if deps.Reconciler != nil {
		registry.RegisterDefinition(&ReplayFailedNotificationsTaskDef{
			reconciler: deps.Reconciler,
			log:        webhookLog,
			logger:     logger,
		})
	}
}

// SeedRecurring makes sure the recurring maintenance tasks exist.
func SeedRecurring(ctx context.Context, scheduler *Scheduler, now time.Time) error {
	seeds := []struct {
		name string
		rule string
		args interface{}
	}{
		{ReplayFailedNotificationsTaskID, replayFailedNotificationsRule, ReplayFailedNotificationsArgs{MaxAttempts: defaultReplayMaxAttempts, BatchSize: defaultReplayBatchSize}},
		{PurgeWebhookEventsTaskID, purgeWebhookEventsRule, PurgeWebhookEventsArgs{RetentionDays: defaultRetentionDays}},
	}

	for _, s := range seeds {
		created, err := scheduler.EnsureRecurring(ctx, s.name, s.rule, s.args, 1, now)
		if err != nil {
			return err
		}
		if created {
			log.Printf("Seeded recurring task %s (%s)", s.name, s.rule)
		}
	}
	return nil
}
