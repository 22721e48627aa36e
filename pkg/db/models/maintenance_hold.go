package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/enums"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

// MaintenanceHold takes units of a variant out of the pool for a repair or
// cleaning window. Unreleased holds count against stock like rentals.
type MaintenanceHold struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	VariantID  uuid.UUID             `gorm:"column:variant_id;type:uuid;not null;index"`
	Kind       enums.MaintenanceKind `gorm:"column:kind;type:text;not null"`
	StartDate  types.Date            `gorm:"column:start_date;type:date;not null"`
	EndDate    types.Date            `gorm:"column:end_date;type:date;not null"`
	Quantity   int                   `gorm:"column:quantity;not null;default:1"`
	Note       *string               `gorm:"column:note"`
	ReleasedAt *time.Time            `gorm:"column:released_at"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (h *MaintenanceHold) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
