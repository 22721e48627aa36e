package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/enums"
)

// Item is a catalog entry that owns one or more rentable variants.
type Item struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Title       string           `gorm:"column:title;not null;uniqueIndex"`
	Category    string           `gorm:"column:category;not null;index"`
	Description *string          `gorm:"column:description"`
	ImageURL    *string          `gorm:"column:image_url"`
	Tags        []string         `gorm:"column:tags;type:jsonb;serializer:json;not null"`
	Status      enums.ItemStatus `gorm:"column:status;type:text;not null;default:'in_stock'"`
	IsArchived  bool             `gorm:"column:is_archived;not null;default:false"`
	Variants    []Variant        `gorm:"foreignKey:ItemID"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	if i.Tags == nil {
		i.Tags = []string{}
	}
	return nil
}
