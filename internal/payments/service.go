// Package payments records money received against orders. The entries are
// the source of an order's paid and deposit figures.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
)

// RecordPaymentInput captures one payment or deposit entry.
type RecordPaymentInput struct {
	Amount    decimal.Decimal        `json:"amount" validate:"required"`
	Method    enums.PaymentMethod    `json:"method" validate:"required,oneof=cash card terminal"`
	EntryType enums.PaymentEntryType `json:"entry_type" validate:"omitempty,oneof=payment deposit"`
	Note      *string                `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// PaymentDTO is the API view of an entry.
type PaymentDTO struct {
	ID              uuid.UUID              `json:"id"`
	OrderID         uuid.UUID              `json:"order_id"`
	Amount          decimal.Decimal        `json:"amount"`
	Method          enums.PaymentMethod    `json:"method"`
	EntryType       enums.PaymentEntryType `json:"entry_type"`
	Note            *string                `json:"note,omitempty"`
	CreatedByUserID *uuid.UUID             `json:"created_by_user_id,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func NewPaymentDTO(p models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:              p.ID,
		OrderID:         p.OrderID,
		Amount:          p.Amount,
		Method:          p.Method,
		EntryType:       p.EntryType,
		Note:            p.Note,
		CreatedByUserID: p.CreatedByUserID,
		CreatedAt:       p.CreatedAt,
	}
}

// Service lists entries. Recording goes through the booking coordinator so
// the order totals move in the same transaction.
type Service interface {
	List(ctx context.Context, orderID uuid.UUID) ([]PaymentDTO, error)
}

type service struct {
	repo Repository
}

// NewService wires a payments service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, orderID uuid.UUID) ([]PaymentDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	entries, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	out := make([]PaymentDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewPaymentDTO(entry))
	}
	return out, nil
}

// NewEntry validates the input and builds the row to insert. EntryType
// defaults to payment.
func NewEntry(orderID uuid.UUID, actor *uuid.UUID, input RecordPaymentInput) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero").
			WithDetails(map[string]any{"field": "amount"})
	}
	if input.Amount.Exponent() < -2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount has more than two decimal places").
			WithDetails(map[string]any{"field": "amount"})
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method)).
			WithDetails(map[string]any{"field": "method"})
	}
	entryType := input.EntryType
	if entryType == "" {
		entryType = enums.PaymentEntryTypePayment
	}
	if !entryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid entry type %q", entryType)).
			WithDetails(map[string]any{"field": "entry_type"})
	}

	var note *string
	if input.Note != nil {
		if trimmed := strings.TrimSpace(*input.Note); trimmed != "" {
			note = &trimmed
		}
	}
	return &models.Payment{
		OrderID:         orderID,
		Amount:          input.Amount,
		Method:          input.Method,
		EntryType:       entryType,
		Note:            note,
		CreatedByUserID: actor,
	}, nil
}
