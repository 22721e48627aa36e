// Package pricing derives every money figure of an order from its lines,
// discount, delivery cost and recorded payments. Nothing here is accepted from
// callers; the figures are recomputed whenever an input changes.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
)

// MinorUnitPlaces is the number of decimal places money is rounded to.
const MinorUnitPlaces = 2

var hundred = decimal.NewFromInt(100)

// Line is the priced part of an order line.
type Line struct {
	Price    decimal.Decimal
	Deposit  decimal.Decimal
	Quantity int
}

// Input collects everything the totals depend on.
type Input struct {
	Lines           []Line
	DiscountPercent int
	DeliveryCost    decimal.Decimal
	Paid            decimal.Decimal
	Deposit         decimal.Decimal
}

// Breakdown is the derived money state of an order.
type Breakdown struct {
	ItemsCost           decimal.Decimal `json:"items_cost"`
	DiscountValue       decimal.Decimal `json:"discount_value"`
	DiscountedItemsCost decimal.Decimal `json:"discounted_items_cost"`
	DeliveryCost        decimal.Decimal `json:"delivery_cost"`
	Total               decimal.Decimal `json:"total"`
	RequiredDeposit     decimal.Decimal `json:"required_deposit"`
	Deposit             decimal.Decimal `json:"deposit"`
	Paid                decimal.Decimal `json:"paid"`
	// AmountDue is signed; a negative value is credit owed to the client.
	AmountDue decimal.Decimal `json:"amount_due"`
}

// AmountDueDisplay floors the amount due at zero for presentation.
func (b Breakdown) AmountDueDisplay() decimal.Decimal {
	if b.AmountDue.IsNegative() {
		return decimal.Zero
	}
	return b.AmountDue
}

// Compute is pure: the same input always yields the same breakdown.
//
//	itemsCost           = Σ price × quantity
//	discountValue       = round_half_up(itemsCost × discount / 100)
//	discountedItemsCost = itemsCost − discountValue
//	total               = discountedItemsCost + delivery cost
//	amountDue           = discountedItemsCost − paid
func Compute(in Input) Breakdown {
	itemsCost := decimal.Zero
	requiredDeposit := decimal.Zero
	for _, line := range in.Lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		itemsCost = itemsCost.Add(line.Price.Mul(qty))
		requiredDeposit = requiredDeposit.Add(line.Deposit.Mul(qty))
	}

	discountValue := DiscountValue(itemsCost, in.DiscountPercent)
	discounted := itemsCost.Sub(discountValue)

	return Breakdown{
		ItemsCost:           roundMoney(itemsCost),
		DiscountValue:       discountValue,
		DiscountedItemsCost: roundMoney(discounted),
		DeliveryCost:        roundMoney(in.DeliveryCost),
		Total:               roundMoney(discounted.Add(in.DeliveryCost)),
		RequiredDeposit:     roundMoney(requiredDeposit),
		Deposit:             roundMoney(in.Deposit),
		Paid:                roundMoney(in.Paid),
		AmountDue:           roundMoney(discounted.Sub(in.Paid)),
	}
}

// DiscountValue applies a whole-number percentage and rounds half-up to the
// minor unit. Percentages outside 0..100 are clamped.
func DiscountValue(itemsCost decimal.Decimal, percent int) decimal.Decimal {
	switch {
	case percent <= 0:
		return decimal.Zero
	case percent > 100:
		percent = 100
	}
	return roundMoney(itemsCost.Mul(decimal.NewFromInt(int64(percent))).Div(hundred))
}

// ComputeTotal returns the total the order would have given its current inputs.
func ComputeTotal(order *models.Order) decimal.Decimal {
	return Compute(InputFromOrder(order, nil)).Total
}

// InputFromOrder builds the pricing input from an order and its payment
// entries. With nil payments the order's stored paid/deposit figures are used.
func InputFromOrder(order *models.Order, payments []models.Payment) Input {
	in := Input{
		Lines:           make([]Line, 0, len(order.Lines)),
		DiscountPercent: order.Discount,
		DeliveryCost:    order.DeliveryInfo.Cost,
		Paid:            order.Paid,
		Deposit:         order.Deposit,
	}
	for _, line := range order.Lines {
		in.Lines = append(in.Lines, Line{Price: line.Price, Deposit: line.Deposit, Quantity: line.Quantity})
	}
	if payments != nil {
		in.Paid, in.Deposit = SumPayments(payments)
	}
	return in
}

// SumPayments splits recorded entries into paid and deposit totals.
func SumPayments(payments []models.Payment) (paid, deposit decimal.Decimal) {
	paid, deposit = decimal.Zero, decimal.Zero
	for _, p := range payments {
		switch p.EntryType {
		case enums.PaymentEntryTypeDeposit:
			deposit = deposit.Add(p.Amount)
		default:
			paid = paid.Add(p.Amount)
		}
	}
	return paid, deposit
}

// Apply recomputes and writes the derived money fields onto the order.
func Apply(order *models.Order, payments []models.Payment) Breakdown {
	b := Compute(InputFromOrder(order, payments))
	order.ItemsCost = b.ItemsCost
	order.DiscountValue = b.DiscountValue
	order.Total = b.Total
	order.RequiredDeposit = b.RequiredDeposit
	order.Deposit = b.Deposit
	order.Paid = b.Paid
	order.AmountDue = b.AmountDue
	return b
}

// roundMoney rounds half away from zero, which is half-up for the
// non-negative amounts the discount is computed on.
func roundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MinorUnitPlaces)
}
