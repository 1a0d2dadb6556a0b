package models

import (
	"testing"
	"time"
)

func TestScheduledTaskNextDue(t *testing.T) {
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hourly := "FREQ=HOURLY;INTERVAL=1"
	daily := "FREQ=DAILY;BYHOUR=3;BYMINUTE=0;BYSECOND=0"
	exhausted := "FREQ=DAILY;COUNT=1"
	broken := "every now and then"

	tests := []struct {
		name     string
		task     ScheduledTask
		after    time.Time
		expected time.Time
	}{
		{
			name:     "one time task never recurs",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeOneTime, Due: due},
			after:    due,
			expected: time.Time{},
		},
		{
			name:     "hourly rule picks the next hour",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &hourly},
			after:    due.Add(5*time.Hour + 30*time.Minute),
			expected: due.Add(6 * time.Hour),
		},
		{
			name:     "occurrence equal to after is skipped",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &hourly},
			after:    due.Add(2 * time.Hour),
			expected: due.Add(3 * time.Hour),
		},
		{
			name:     "daily rule at fixed hour",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &daily},
			after:    due.Add(4 * time.Hour),
			expected: time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "exhausted rule",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &exhausted},
			after:    due,
			expected: time.Time{},
		},
		{
			name:     "invalid rule",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: due, RecurringInterval: &broken},
			after:    due,
			expected: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.task.NextDue(tt.after)
			if !result.Equal(tt.expected) {
				t.Errorf("NextDue(%v) = %v; want %v", tt.after, result, tt.expected)
			}
		})
	}
}

func TestCourseIsPriced(t *testing.T) {
	if (&Course{}).IsPriced() {
		t.Error("course without price should not be priced")
	}
}
