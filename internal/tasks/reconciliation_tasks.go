package tasks

import (
	"context"
	"fmt"
	"log"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/services"
)

const (
	ReplayFailedNotificationsTaskID = "replay_failed_notifications"
	defaultReplayMaxAttempts        = 5
	defaultReplayBatchSize          = 50
)

type ReplayFailedNotificationsArgs struct {
	MaxAttempts int `json:"max_attempts"`
	BatchSize   int `json:"batch_size"`
}

// ReplayFailedNotificationsTaskDef re-runs reconciliation for webhook notifications whose
// processing failed, until each one succeeds or runs out of attempts.
type ReplayFailedNotificationsTaskDef struct {
	reconciler Reconciler
	log        *services.WebhookLog
	logger     *log.Logger
}

func (t *ReplayFailedNotificationsTaskDef) TaskID() string {
	return ReplayFailedNotificationsTaskID
}

func (t *ReplayFailedNotificationsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args ReplayFailedNotificationsArgs
	if err := decodeArguments(task, &args); err != nil {
		return nil, err
	}
	if args.MaxAttempts <= 0 {
		args.MaxAttempts = defaultReplayMaxAttempts
	}
	if args.BatchSize <= 0 {
		args.BatchSize = defaultReplayBatchSize
	}

	events, err := t.log.Failed(ctx, args.MaxAttempts, args.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load failed notifications: %w", err)
	}

	outcomes := map[string]int{}
	stillFailing := 0
	for i := range events {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ev := &events[i]

		outcome, reconcileErr := t.reconciler.Reconcile(ctx, ev.ExternalID)
		outcomes[string(outcome)]++
		if reconcileErr != nil {
			stillFailing++
			t.logger.Printf("[Task: %s] Payment %s failed again (attempt %d/%d): %v",
				t.TaskID(), ev.ExternalID, ev.Attempts+1, args.MaxAttempts, reconcileErr)
		}

		if err := t.log.Complete(ctx, ev, outcome, reconcileErr); err != nil {
			return nil, fmt.Errorf("update webhook event %d: %w", ev.ID, err)
		}
	}

	t.logger.Printf("[Task: %s] Replayed %d notifications, %d still failing", t.TaskID(), len(events), stillFailing)
	return map[string]interface{}{
		"replayed":      len(events),
		"still_failing": stillFailing,
		"outcomes":      outcomes,
	}, nil
}
