package models

import (
	"github.com/google/uuid"
)

// newID returns a fresh primary key for rows that use string ids.
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Professor{},
		&Course{},
		&Student{},
		&Enrollment{},
		&Payment{},
		&Earning{},
		&CheckoutSession{},
		&WebhookEvent{},
		&UserNotifPreference{},
		&ScheduledTask{},
		&ScheduledTaskHistory{},
	}
}
