package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/internal/payments"
	"github.com/angelmondragon/rentals-backend/internal/pricing"
	"github.com/angelmondragon/rentals-backend/internal/status"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

// LineInput requests Quantity units of a variant. PriceID picks a tier; the
// first tier of the variant is used when it is nil.
type LineInput struct {
	VariantID uuid.UUID  `json:"variant_id" validate:"required"`
	PriceID   *uuid.UUID `json:"price_id,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderInput holds the validated payload to book an order. Discount
// defaults to the client's discount when omitted.
type CreateOrderInput struct {
	ClientID      uuid.UUID            `json:"client_id" validate:"required"`
	StartDate     types.Date           `json:"start_time"`
	EndDate       types.Date           `json:"end_time"`
	Lines         []LineInput          `json:"lines" validate:"required,min=1,dive"`
	Discount      *int                 `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	DeliveryInfo  *types.DeliveryInfo  `json:"delivery_info,omitempty"`
	PaymentType   *enums.PaymentMethod `json:"payment_type,omitempty" validate:"omitempty,oneof=cash card terminal"`
	TransactionID *string              `json:"transaction_id,omitempty" validate:"omitempty,max=128"`
	Tags          []string             `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=64"`
	Notes         *string              `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// UpdateOrderInput holds optional order mutations. Dates, lines, discount and
// delivery may change only while the order is booked.
type UpdateOrderInput struct {
	StartDate      *types.Date          `json:"start_time,omitempty"`
	EndDate        *types.Date          `json:"end_time,omitempty"`
	Lines          *[]LineInput         `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
	Discount       *int                 `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	DeliveryInfo   *types.DeliveryInfo  `json:"delivery_info,omitempty"`
	PaymentType    *enums.PaymentMethod `json:"payment_type,omitempty" validate:"omitempty,oneof=cash card terminal"`
	TransactionID  *string              `json:"transaction_id,omitempty" validate:"omitempty,max=128"`
	TrackingNumber *string              `json:"tracking_number,omitempty" validate:"omitempty,max=120"`
	Tags           *[]string            `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=64"`
	Notes          *string              `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// touchesBooking reports whether the update changes what is reserved or what
// it costs.
func (in UpdateOrderInput) touchesBooking() bool {
	return in.StartDate != nil || in.EndDate != nil || in.Lines != nil ||
		in.Discount != nil || in.DeliveryInfo != nil
}

// MaintenanceInput takes units of a variant out of service for a window.
// Quantity defaults to the variant's whole stock.
type MaintenanceInput struct {
	Kind      enums.MaintenanceKind `json:"kind" validate:"required,oneof=repair cleaning"`
	StartDate types.Date            `json:"start_time"`
	EndDate   types.Date            `json:"end_time"`
	Quantity  *int                  `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	Note      *string               `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// OrderLineDTO is the API shape of an order line.
type OrderLineDTO struct {
	ID        uuid.UUID       `json:"id"`
	ItemID    uuid.UUID       `json:"item_id"`
	VariantID uuid.UUID       `json:"variant_id"`
	PriceID   *uuid.UUID      `json:"price_id,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Deposit   decimal.Decimal `json:"deposit"`
	Quantity  int             `json:"quantity"`
}

// PaymentDetailsDTO groups the derived money figures of an order. AmountDue
// is signed and negative when the client overpaid; AmountDueDisplay is the
// same figure floored at zero.
type PaymentDetailsDTO struct {
	ItemsCost        decimal.Decimal      `json:"items_cost"`
	DiscountValue    decimal.Decimal      `json:"discount_value"`
	Total            decimal.Decimal      `json:"total"`
	RequiredDeposit  decimal.Decimal      `json:"required_deposit"`
	Deposit          decimal.Decimal      `json:"deposit"`
	Paid             decimal.Decimal      `json:"paid"`
	AmountDue        decimal.Decimal      `json:"amount_due"`
	AmountDueDisplay decimal.Decimal      `json:"amount_due_display"`
	PaymentType      *enums.PaymentMethod `json:"payment_type,omitempty"`
	TransactionID    *string              `json:"transaction_id,omitempty"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	ClientID        uuid.UUID           `json:"client_id"`
	Status          enums.OrderStatus   `json:"status"`
	NextStatuses    []enums.OrderStatus `json:"next_statuses"`
	StartDate       types.Date          `json:"start_time"`
	EndDate         types.Date          `json:"end_time"`
	Discount        int                 `json:"discount"`
	DeliveryInfo    types.DeliveryInfo  `json:"delivery_info"`
	PaymentDetails  PaymentDetailsDTO   `json:"payment_details"`
	Lines           []OrderLineDTO      `json:"lines"`
	Tags            []string            `json:"tags"`
	Notes           *string             `json:"notes,omitempty"`
	CreatedByUserID *uuid.UUID          `json:"created_by_user_id,omitempty"`
	IsArchived      bool                `json:"is_archived"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func NewOrderDTO(o models.Order) OrderDTO {
	breakdown := pricing.Breakdown{
		ItemsCost:       o.ItemsCost,
		DiscountValue:   o.DiscountValue,
		Total:           o.Total,
		RequiredDeposit: o.RequiredDeposit,
		Deposit:         o.Deposit,
		Paid:            o.Paid,
		AmountDue:       o.AmountDue,
	}
	dto := OrderDTO{
		ID:           o.ID,
		ClientID:     o.ClientID,
		Status:       o.Status,
		NextStatuses: status.NextOrderStatuses(o.Status),
		StartDate:    o.StartDate,
		EndDate:      o.EndDate,
		Discount:     o.Discount,
		DeliveryInfo: o.DeliveryInfo,
		PaymentDetails: PaymentDetailsDTO{
			ItemsCost:        breakdown.ItemsCost,
			DiscountValue:    breakdown.DiscountValue,
			Total:            breakdown.Total,
			RequiredDeposit:  breakdown.RequiredDeposit,
			Deposit:          breakdown.Deposit,
			Paid:             breakdown.Paid,
			AmountDue:        breakdown.AmountDue,
			AmountDueDisplay: breakdown.AmountDueDisplay(),
			PaymentType:      o.PaymentType,
			TransactionID:    o.TransactionID,
		},
		Lines:           make([]OrderLineDTO, 0, len(o.Lines)),
		Tags:            o.Tags,
		Notes:           o.Notes,
		CreatedByUserID: o.CreatedByUserID,
		IsArchived:      o.IsArchived,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if dto.Tags == nil {
		dto.Tags = []string{}
	}
	for _, l := range o.Lines {
		dto.Lines = append(dto.Lines, OrderLineDTO{
			ID:        l.ID,
			ItemID:    l.ItemID,
			VariantID: l.VariantID,
			PriceID:   l.PriceID,
			Price:     l.Price,
			Deposit:   l.Deposit,
			Quantity:  l.Quantity,
		})
	}
	return dto
}

// HoldDTO is the API shape of a maintenance hold.
type HoldDTO struct {
	ID         uuid.UUID             `json:"id"`
	Kind       enums.MaintenanceKind `json:"kind"`
	StartDate  types.Date            `json:"start_time"`
	EndDate    types.Date            `json:"end_time"`
	Quantity   int                   `json:"quantity"`
	Note       *string               `json:"note,omitempty"`
	ReleasedAt *time.Time            `json:"released_at,omitempty"`
}

func NewHoldDTO(h models.MaintenanceHold) HoldDTO {
	return HoldDTO{
		ID:         h.ID,
		Kind:       h.Kind,
		StartDate:  h.StartDate,
		EndDate:    h.EndDate,
		Quantity:   h.Quantity,
		Note:       h.Note,
		ReleasedAt: h.ReleasedAt,
	}
}

// VariantStatusResult is the outcome of a variant lifecycle action.
type VariantStatusResult struct {
	Variant catalog.VariantDTO `json:"variant"`
	Hold    *HoldDTO           `json:"hold,omitempty"`
	// ReleasedHolds counts maintenance holds ended by a restore.
	ReleasedHolds int64 `json:"released_holds,omitempty"`
}

// PaymentResult is a recorded entry together with the recomputed order.
type PaymentResult struct {
	Payment payments.PaymentDTO `json:"payment"`
	Order   OrderDTO            `json:"order"`
}
