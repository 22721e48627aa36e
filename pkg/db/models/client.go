package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a renter. Phone is the lookup key used by search and autocomplete.
type Client struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	GivenName  string    `gorm:"column:given_name;not null"`
	Surname    *string   `gorm:"column:surname"`
	Phone      string    `gorm:"column:phone;not null;uniqueIndex"`
	Email      *string   `gorm:"column:email"`
	Instagram  *string   `gorm:"column:instagram"`
	Discount   int       `gorm:"column:discount;not null;default:0"`
	Notes      *string   `gorm:"column:notes"`
	IsArchived bool      `gorm:"column:is_archived;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
