package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole represents the role of an account
type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleProfessor UserRole = "professor"
	UserRoleStudent   UserRole = "student"
)

// User is an account. UID is the Firebase uid of the account owner.
type User struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UID   string   `gorm:"type:varchar(128);uniqueIndex" json:"uid"`
	Name  string   `gorm:"type:varchar(255)" json:"name"`
	Phone string   `gorm:"type:varchar(50)" json:"phone"`
	Email string   `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Role  UserRole `gorm:"type:varchar(20);default:'student'" json:"role"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	return nil
}
