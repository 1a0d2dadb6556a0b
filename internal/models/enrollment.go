package models

import (
	"time"

	"gorm.io/gorm"
)

type EnrollmentState string

const (
	EnrollmentStateEnrolled  EnrollmentState = "enrolled"
	EnrollmentStateCompleted EnrollmentState = "completed"
	EnrollmentStateDropped   EnrollmentState = "dropped"
)

// Enrollment grants a student access to a course. One per (student, course).
type Enrollment struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StudentID  string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollment_student_course,priority:1" json:"student_id"`
	CourseID   string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollment_student_course,priority:2" json:"course_id"`
	EnrolledAt time.Time       `json:"enrolled_at"`
	State      EnrollmentState `gorm:"type:varchar(20);not null;default:'enrolled'" json:"state"`
	Progress   float64         `gorm:"default:0" json:"progress"`
	Grade      *float64        `json:"grade,omitempty"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	newID(&e.ID)
	return nil
}
