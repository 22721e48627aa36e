package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/enums"
)

// Variant is a size/color instance of an Item and the unit that gets reserved.
type Variant struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ItemID        uuid.UUID           `gorm:"column:item_id;type:uuid;not null;index"`
	Size          string              `gorm:"column:size;not null"`
	Color         string              `gorm:"column:color;not null"`
	StockQuantity int                 `gorm:"column:stock_quantity;not null;default:0"`
	Status        enums.VariantStatus `gorm:"column:status;type:text;not null;default:'available'"`
	IsArchived    bool                `gorm:"column:is_archived;not null;default:false"`
	Prices        []VariantPrice      `gorm:"foreignKey:VariantID"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Variant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// VariantPrice is one price tier of a variant ("daily", "weekly", ...).
type VariantPrice struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VariantID uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Deposit   decimal.Decimal `gorm:"column:deposit;type:numeric(12,2);not null;default:0"`
	PriceType string          `gorm:"column:price_type;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (VariantPrice) TableName() string { return "variant_prices" }

func (p *VariantPrice) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
