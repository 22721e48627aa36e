package enums

import "fmt"

// OrderStatus tracks the lifecycle of a rental order.
type OrderStatus string

const (
	OrderStatusBooked   OrderStatus = "booked"
	OrderStatusIssued   OrderStatus = "issued"
	OrderStatusReturned OrderStatus = "returned"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusDone     OrderStatus = "done"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusBooked,
	OrderStatusIssued,
	OrderStatusReturned,
	OrderStatusCanceled,
	OrderStatusDone,
}

// String implements fmt.Stringer.
func (v OrderStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known OrderStatus.
func (v OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// OrderStatusValues returns every known OrderStatus in declaration order.
func OrderStatusValues() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
}

// ParseOrderStatus converts raw input into a OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// IsTerminal reports whether no further transition may leave this status.
func (v OrderStatus) IsTerminal() bool {
	return v == OrderStatusDone || v == OrderStatusCanceled
}

// HoldsStock reports whether an order in this status still consumes stock.
func (v OrderStatus) HoldsStock() bool {
	return v == OrderStatusBooked || v == OrderStatusIssued
}

// StockHoldingOrderStatuses lists the statuses whose lines count against availability.
func StockHoldingOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusBooked, OrderStatusIssued}
}
