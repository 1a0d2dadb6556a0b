package tasks

import (
	"context"
	"fmt"
	"log"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/services"
)

// SendPurchaseConfirmationTaskDef retries a purchase confirmation that failed right after commit.
type SendPurchaseConfirmationTaskDef struct {
	notifier ConfirmationSender
	logger   *log.Logger
}

func (t *SendPurchaseConfirmationTaskDef) TaskID() string {
	return services.PurchaseConfirmationTaskName
}

func (t *SendPurchaseConfirmationTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var msg services.PurchaseConfirmation
	if err := decodeArguments(task, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" || msg.PaymentID == "" {
		return nil, fmt.Errorf("user_id and payment_id are required")
	}

	if err := t.notifier.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send confirmation for payment %s: %w", msg.PaymentID, err)
	}

	t.logger.Printf("[Task: %s] Confirmation for payment %s delivered to user %s", t.TaskID(), msg.PaymentID, msg.UserID)
	return map[string]interface{}{
		"status":     "success",
		"payment_id": msg.PaymentID,
		"user_id":    msg.UserID,
	}, nil
}
