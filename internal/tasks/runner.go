package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"coursemarket_echo/internal/models"
)

const retryBackoff = 5 * time.Minute

// Runner executes due scheduled tasks and records their history.
type Runner struct {
	db       *gorm.DB
	registry *Registry
	logger   *log.Logger
	now      func() time.Time
}

func NewRunner(db *gorm.DB, registry *Registry, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{db: db, registry: registry, logger: logger, now: time.Now}
}

// RunDue executes every active task whose due time has passed and returns how many ran.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due asc").
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("fetch pending tasks: %w", err)
	}

	if len(pending) == 0 {
		return 0, nil
	}
	r.logger.Printf("Found %d pending tasks.", len(pending))

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		if err := r.execute(ctx, task); err != nil {
			r.logger.Printf("Failed to record run of task %s (ID: %d): %v", task.TaskName, task.ID, err)
		}
		ran++
	}
	return ran, nil
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) error {
	r.logger.Printf("Processing task: %s (ID: %d)", task.TaskName, task.ID)

	startTime := r.now()
	attempt := task.Attempts + 1

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		r.logger.Printf("Task handler not found for: %s. Marking as failure.", task.TaskName)
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&models.ScheduledTaskHistory{
				ScheduledTaskID: task.ID,
				TaskName:        task.TaskName,
				RunAt:           startTime,
				Status:          "handler_not_found",
				AttemptNumber:   attempt,
				Arguments:       task.Arguments,
				Result:          map[string]interface{}{"error": "Handler not found"},
			}).Error; err != nil {
				return err
			}
			return tx.Model(&task).Updates(map[string]interface{}{
				"status":     models.ScheduledTaskStatusFailure,
				"last_run":   startTime,
				"attempts":   attempt,
				"last_error": "handler not found",
			}).Error
		})
	}

	result, runErr := r.invoke(ctx, handler, task)
	runtime := time.Since(startTime)

	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		RuntimeMs:       runtime.Milliseconds(),
		Status:          "success",
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}

	updates := map[string]interface{}{
		"last_run":   startTime,
		"last_error": "",
	}

	if runErr != nil {
		r.logger.Printf("Task %s failed (attempt %d/%d): %v", task.TaskName, attempt, task.MaxAttempt, runErr)
		history.Status = "failure"
		history.Result = map[string]interface{}{"error": runErr.Error()}
		updates["last_error"] = runErr.Error()
		r.applyFailure(task, attempt, updates)
	} else {
		r.logger.Printf("Task %s completed successfully.", task.TaskName)
		r.applySuccess(task, updates)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		return tx.Model(&task).Updates(updates).Error
	})
}

// invoke runs the handler, turning a panic into an error so one bad task cannot stop the worker.
func (r *Runner) invoke(ctx context.Context, handler TaskHandler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return handler(ctx, task)
}

func (r *Runner) applyFailure(task models.ScheduledTask, attempt int, updates map[string]interface{}) {
	if attempt < task.MaxAttempt {
		updates["attempts"] = attempt
		updates["due"] = r.now().Add(retryBackoff)
		return
	}

	// out of attempts: one-time tasks stop, recurring tasks wait for their next occurrence
	updates["attempts"] = 0
	if next := task.NextDue(r.now()); !next.IsZero() {
		updates["due"] = next
		return
	}
	updates["attempts"] = attempt
	updates["status"] = models.ScheduledTaskStatusFailure
}

func (r *Runner) applySuccess(task models.ScheduledTask, updates map[string]interface{}) {
	updates["attempts"] = 0
	if task.TaskType != models.ScheduledTaskTypeRecurring {
		updates["status"] = models.ScheduledTaskStatusDone
		return
	}

	next := task.NextDue(r.now())
	if next.IsZero() {
		updates["status"] = models.ScheduledTaskStatusDone
		return
	}
	updates["due"] = next
}
