package models

import (
	"time"

	"gorm.io/gorm"
)

type EarningType string

const (
	EarningTypeEarnerShare EarningType = "earner_share"
	EarningTypePlatformFee EarningType = "platform_fee"
)

type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusProcessed EarningStatus = "processed"
	EarningStatusPaidOut   EarningStatus = "paid_out"
)

// Earning is one revenue-split line of a Payment.
// Platform fee rows have no ProfessorID.
type Earning struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Type          EarningType   `gorm:"type:varchar(20);not null" json:"type"`
	AmountInCents int64         `gorm:"not null" json:"amount_in_cents"`
	PaymentID     string        `gorm:"type:varchar(36);index;not null" json:"payment_id"`
	ProfessorID   *string       `gorm:"type:varchar(36);index" json:"professor_id,omitempty"`
	Status        EarningStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
}

func (e *Earning) BeforeCreate(tx *gorm.DB) error {
	newID(&e.ID)
	return nil
}
