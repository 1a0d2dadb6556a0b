package models

import (
	"time"

	"gorm.io/datatypes"
)

// CheckoutSession is a hosted-checkout preference created for a user and course.
// Only one session per external reference is active at a time.
type CheckoutSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID            string         `gorm:"type:varchar(36);index" json:"user_id"`
	CourseID          string         `gorm:"type:varchar(36);index" json:"course_id"`
	ExternalReference string         `gorm:"type:varchar(255);index" json:"external_reference"`
	PreferenceID      string         `gorm:"type:varchar(100)" json:"preference_id"`
	CheckoutURL       string         `gorm:"type:text" json:"checkout_url"`
	IsActive          bool           `gorm:"default:true" json:"is_active"`
	RequestMetadata   datatypes.JSON `json:"request_metadata"`
	ResponseMetadata  datatypes.JSON `json:"response_metadata"`
}
