package models

import (
	"time"

	"gorm.io/gorm"
)

// Student is the learner profile attached to an account
type Student struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID string `gorm:"type:varchar(36);uniqueIndex" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	EnrolledCourses []Course `gorm:"many2many:student_courses;" json:"enrolled_courses,omitempty"`
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	newID(&s.ID)
	return nil
}
