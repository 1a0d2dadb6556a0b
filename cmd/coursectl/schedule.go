package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coursemarket_echo/internal/models"
	"coursemarket_echo/internal/tasks"
)

type scheduleOptions struct {
	taskName   string
	arguments  string
	due        string
	taskType   string
	recurring  string
	maxAttempt int
}

func scheduleCmd() *cobra.Command {
	opts := &scheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Queue a task for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := opts.build(time.Local)
			if err != nil {
				return err
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			if err := db.WithContext(cmd.Context()).Create(task).Error; err != nil {
				return fmt.Errorf("create task: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Scheduled task %s (ID: %d) due %s\n", task.TaskName, task.ID, task.Due.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.taskName, "task-name", "", "Name of the task")
	cmd.Flags().StringVar(&opts.arguments, "arguments", "{}", "JSON arguments for the task")
	cmd.Flags().StringVar(&opts.due, "due", "", "Due date, RFC3339 or '2006-01-02 15:04' local time (default now)")
	cmd.Flags().StringVar(&opts.taskType, "task-type", string(models.ScheduledTaskTypeOneTime), "onetime or recurring")
	cmd.Flags().StringVar(&opts.recurring, "recurring", "", "RRULE for recurring tasks, e.g. FREQ=DAILY;BYHOUR=3")
	cmd.Flags().IntVar(&opts.maxAttempt, "max-attempt", 3, "Attempts before the task is marked failed")
	cmd.MarkFlagRequired("task-name")

	return cmd
}

func (o *scheduleOptions) build(loc *time.Location) (*models.ScheduledTask, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(o.arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}

	due, err := parseDue(o.due, loc)
	if err != nil {
		return nil, err
	}

	taskType := models.ScheduledTaskType(o.taskType)
	var recurring *string
	switch taskType {
	case models.ScheduledTaskTypeOneTime:
	case models.ScheduledTaskTypeRecurring:
		if strings.TrimSpace(o.recurring) == "" {
			return nil, fmt.Errorf("--recurring is required for recurring tasks")
		}
		recurring = &o.recurring
	default:
		return nil, fmt.Errorf("unknown task type %q", o.taskType)
	}

	task, err := tasks.BuildScheduledTask(o.taskName, args, due, recurring, taskType, o.maxAttempt)
	if err != nil {
		return nil, err
	}
	if recurring != nil && task.NextDue(due).IsZero() {
		return nil, fmt.Errorf("recurrence %q is invalid or has no occurrence after %s", o.recurring, due.Format(time.RFC3339))
	}
	return task, nil
}

func parseDue(value string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Now(), nil
	}
	if due, err := time.Parse(time.RFC3339, value); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q, use RFC3339 or '2006-01-02 15:04'", value)
	}
	return due, nil
}
