package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Course struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	// Price is in major currency units. Nil or zero means the course is free.
	Price      *decimal.Decimal `gorm:"type:decimal(15,2)" json:"price"`
	CurrencyID string           `gorm:"type:varchar(3);default:'BRL'" json:"currency_id"`

	ProfessorID string     `gorm:"type:varchar(36);index" json:"professor_id"`
	Professor   *Professor `gorm:"foreignKey:ProfessorID" json:"professor,omitempty"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}

// IsPriced reports whether the course has a positive price.
func (c *Course) IsPriced() bool {
	return c.Price != nil && c.Price.IsPositive()
}
