package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Payment is one gateway transaction this system has acted upon.
// Rows are never deleted; ExternalID is the idempotency key.
type Payment struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExternalID    string        `gorm:"type:varchar(100);not null;uniqueIndex" json:"external_id"`
	AmountInCents int64         `gorm:"not null" json:"amount_in_cents"`
	Status        PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	CourseID     string  `gorm:"type:varchar(36);index;not null" json:"course_id"`
	StudentID    string  `gorm:"type:varchar(36);index;not null" json:"student_id"`
	EnrollmentID *string `gorm:"type:varchar(36)" json:"enrollment_id,omitempty"`

	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
	Metadata   datatypes.JSON `json:"metadata"`

	Earnings []Earning `gorm:"foreignKey:PaymentID" json:"earnings,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
