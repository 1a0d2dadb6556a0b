package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"coursemarket_echo/internal/models"
)

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	mapArgs, err := toArguments(args)
	if err != nil {
		return nil, err
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

func toArguments(args interface{}) (map[string]interface{}, error) {
	mapArgs := map[string]interface{}{}
	if args == nil {
		return mapArgs, nil
	}

	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}
	return mapArgs, nil
}

// decodeArguments fills dest from a task's stored arguments.
func decodeArguments(task models.ScheduledTask, dest interface{}) error {
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(argsBytes, dest); err != nil {
		return fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return nil
}

// Scheduler queues one-time tasks. It satisfies services.TaskScheduler.
type Scheduler struct {
	db *gorm.DB
}

func NewScheduler(db *gorm.DB) *Scheduler {
	return &Scheduler{db: db}
}

func (s *Scheduler) Schedule(ctx context.Context, taskName string, args interface{}, due time.Time, maxAttempt int) error {
	task, err := BuildScheduledTask(taskName, args, due, nil, models.ScheduledTaskTypeOneTime, maxAttempt)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(task).Error
}

// EnsureRecurring creates a recurring task unless an active one with the same name exists.
// The first run is the first occurrence of rule after now.
func (s *Scheduler) EnsureRecurring(ctx context.Context, taskName, rule string, args interface{}, maxAttempt int, now time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ScheduledTask{}).
		Where("task_name = ? AND task_type = ? AND status = ?", taskName, models.ScheduledTaskTypeRecurring, models.ScheduledTaskStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	task, err := BuildScheduledTask(taskName, args, now, &rule, models.ScheduledTaskTypeRecurring, maxAttempt)
	if err != nil {
		return false, err
	}
	first := task.NextDue(now)
	if first.IsZero() {
		return false, fmt.Errorf("recurrence %q for %s has no future occurrence", rule, taskName)
	}
	task.Due = first

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return false, err
	}
	return true, nil
}
