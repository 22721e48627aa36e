package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/enums"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

// Order is a time-bounded rental of one or more variants for a client.
// The money columns are derived by the pricing engine and never set by callers.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ClientID        uuid.UUID            `gorm:"column:client_id;type:uuid;not null;index"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'booked'"`
	StartDate       types.Date           `gorm:"column:start_date;type:date;not null"`
	EndDate         types.Date           `gorm:"column:end_date;type:date;not null"`
	Discount        int                  `gorm:"column:discount;not null;default:0"`
	DeliveryInfo    types.DeliveryInfo   `gorm:"column:delivery_info;type:jsonb;serializer:json;not null"`
	ItemsCost       decimal.Decimal      `gorm:"column:items_cost;type:numeric(12,2);not null;default:0"`
	DiscountValue   decimal.Decimal      `gorm:"column:discount_value;type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	RequiredDeposit decimal.Decimal      `gorm:"column:required_deposit;type:numeric(12,2);not null;default:0"`
	Deposit         decimal.Decimal      `gorm:"column:deposit;type:numeric(12,2);not null;default:0"`
	Paid            decimal.Decimal      `gorm:"column:paid;type:numeric(12,2);not null;default:0"`
	AmountDue       decimal.Decimal      `gorm:"column:amount_due;type:numeric(12,2);not null;default:0"`
	PaymentType     *enums.PaymentMethod `gorm:"column:payment_type;type:text"`
	TransactionID   *string              `gorm:"column:transaction_id"`
	Tags            []string             `gorm:"column:tags;type:jsonb;serializer:json;not null"`
	Notes           *string              `gorm:"column:notes"`
	CreatedByUserID *uuid.UUID           `gorm:"column:created_by_user_id;type:uuid"`
	IsArchived      bool                 `gorm:"column:is_archived;not null;default:false"`
	Lines           []OrderLine          `gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.Tags == nil {
		o.Tags = []string{}
	}
	return nil
}

// Window returns the order's half-open rental interval.
func (o *Order) Window() types.DateRange {
	return types.DateRange{Start: o.StartDate, End: o.EndDate}
}

// OrderLine books Quantity units of one variant for the whole order window.
// Price and Deposit are captured at booking time so later catalog edits do not
// rewrite history.
type OrderLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ItemID    uuid.UUID       `gorm:"column:item_id;type:uuid;not null"`
	VariantID uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;index"`
	PriceID   *uuid.UUID      `gorm:"column:price_id;type:uuid"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Deposit   decimal.Decimal `gorm:"column:deposit;type:numeric(12,2);not null;default:0"`
	Quantity  int             `gorm:"column:quantity;not null;default:1"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
