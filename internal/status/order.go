package status

import (
	"fmt"

	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
)

// orderEdges lists every legal order transition. done and canceled have none.
var orderEdges = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusBooked:   {enums.OrderStatusIssued, enums.OrderStatusCanceled, enums.OrderStatusDone},
	enums.OrderStatusIssued:   {enums.OrderStatusReturned},
	enums.OrderStatusReturned: {enums.OrderStatusDone},
}

// CanTransitionOrder reports whether from -> to is an allowed edge.
func CanTransitionOrder(from, to enums.OrderStatus) bool {
	for _, next := range orderEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextOrderStatuses returns the statuses reachable from the given one.
func NextOrderStatuses(from enums.OrderStatus) []enums.OrderStatus {
	next := orderEdges[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// TransitionOrder validates an order status change.
func TransitionOrder(from, to enums.OrderStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", to))
	}
	if CanTransitionOrder(from, to) {
		return nil
	}
	msg := fmt.Sprintf("order cannot move from %s to %s", from, to)
	if from.IsTerminal() {
		msg = fmt.Sprintf("order is %s and cannot change status", from)
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, msg).WithDetails(map[string]any{
		"from":    from,
		"to":      to,
		"allowed": NextOrderStatuses(from),
	})
}

// ReleasesStock reports whether entering this status frees the order's hold.
func ReleasesStock(to enums.OrderStatus) bool {
	return !to.HoldsStock()
}

// OrderEditable reports whether lines, dates, discount and delivery may change.
func OrderEditable(current enums.OrderStatus) bool {
	return current == enums.OrderStatusBooked
}
