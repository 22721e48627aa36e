package enums

import "fmt"

// ItemStatus is the catalog-level stock flag shown on an Item.
type ItemStatus string

const (
	ItemStatusInStock    ItemStatus = "in_stock"
	ItemStatusOutOfStock ItemStatus = "out_of_stock"
)

var validItemStatuses = []ItemStatus{
	ItemStatusInStock,
	ItemStatusOutOfStock,
}

// String implements fmt.Stringer.
func (v ItemStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known ItemStatus.
func (v ItemStatus) IsValid() bool {
	for _, candidate := range validItemStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ItemStatusValues returns every known ItemStatus in declaration order.
func ItemStatusValues() []ItemStatus {
	out := make([]ItemStatus, len(validItemStatuses))
	copy(out, validItemStatuses)
	return out
}

// ParseItemStatus converts raw input into a ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	for _, candidate := range validItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}
