package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/enums"
)

// Payment is an append-only money entry recorded against an order.
type Payment struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	Amount          decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Method          enums.PaymentMethod    `gorm:"column:method;type:text;not null"`
	EntryType       enums.PaymentEntryType `gorm:"column:entry_type;type:text;not null"`
	Note            *string                `gorm:"column:note"`
	CreatedByUserID *uuid.UUID             `gorm:"column:created_by_user_id;type:uuid"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
