package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rentals-backend/pkg/enums"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

// LineSnapshot is the part of an order line downstream consumers care about.
type LineSnapshot struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// OrderCreatedEvent is emitted when a booking commits.
type OrderCreatedEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	ClientID  uuid.UUID       `json:"client_id"`
	StartDate types.Date      `json:"start_date"`
	EndDate   types.Date      `json:"end_date"`
	Lines     []LineSnapshot  `json:"lines"`
	Total     decimal.Decimal `json:"total"`
}

// OrderUpdatedEvent is emitted when a booked order's lines, window or terms change.
type OrderUpdatedEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	StartDate types.Date      `json:"start_date"`
	EndDate   types.Date      `json:"end_date"`
	Lines     []LineSnapshot  `json:"lines"`
	Total     decimal.Decimal `json:"total"`
}

// OrderStatusChangedEvent is emitted on every order lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	From          enums.OrderStatus `json:"from"`
	To            enums.OrderStatus `json:"to"`
	ReleasedStock bool              `json:"released_stock"`
}

// PaymentRecordedEvent is emitted when money is recorded against an order.
type PaymentRecordedEvent struct {
	OrderID   uuid.UUID              `json:"order_id"`
	PaymentID uuid.UUID              `json:"payment_id"`
	Amount    decimal.Decimal        `json:"amount"`
	EntryType enums.PaymentEntryType `json:"entry_type"`
	Method    enums.PaymentMethod    `json:"method"`
	AmountDue decimal.Decimal        `json:"amount_due"`
}

// VariantStatusChangedEvent is emitted on maintenance, restore and manual status changes.
type VariantStatusChangedEvent struct {
	VariantID uuid.UUID           `json:"variant_id"`
	From      enums.VariantStatus `json:"from"`
	To        enums.VariantStatus `json:"to"`
	Action    string              `json:"action"`
	HoldID    *uuid.UUID          `json:"hold_id,omitempty"`
}
