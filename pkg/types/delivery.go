package types

import (
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// DeliveryInfo describes how an order leaves and comes back to the showroom.
type DeliveryInfo struct {
	PickupType     enums.DeliveryType  `json:"pickup_type" validate:"required,oneof=showroom taxi postal_service"`
	ReturnType     *enums.DeliveryType `json:"return_type,omitempty" validate:"omitempty,oneof=showroom taxi postal_service"`
	PickupAddress  *string             `json:"pickup_address,omitempty" validate:"omitempty,max=500"`
	ReturnAddress  *string             `json:"return_address,omitempty" validate:"omitempty,max=500"`
	TrackingNumber *string             `json:"tracking_number,omitempty" validate:"omitempty,max=120"`
	Cost           decimal.Decimal     `json:"cost"`
}

// DefaultDeliveryInfo is a showroom pickup with no delivery cost.
func DefaultDeliveryInfo() DeliveryInfo {
	return DeliveryInfo{PickupType: enums.DeliveryTypeShowroom, Cost: decimal.Zero}
}
