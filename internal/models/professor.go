package models

import (
	"time"

	"gorm.io/gorm"
)

// Professor is the instructor profile that earns from course sales
type Professor struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID string `gorm:"type:varchar(36);uniqueIndex" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (p *Professor) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
