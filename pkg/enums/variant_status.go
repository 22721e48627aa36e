package enums

import "fmt"

// VariantStatus tracks whether a variant can be rented at all.
type VariantStatus string

const (
	VariantStatusAvailable   VariantStatus = "available"
	VariantStatusRepair      VariantStatus = "repair"
	VariantStatusCleaning    VariantStatus = "cleaning"
	VariantStatusUnavailable VariantStatus = "unavailable"
)

var validVariantStatuses = []VariantStatus{
	VariantStatusAvailable,
	VariantStatusRepair,
	VariantStatusCleaning,
	VariantStatusUnavailable,
}

// String implements fmt.Stringer.
func (v VariantStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VariantStatus.
func (v VariantStatus) IsValid() bool {
	for _, candidate := range validVariantStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// VariantStatusValues returns every known VariantStatus in declaration order.
func VariantStatusValues() []VariantStatus {
	out := make([]VariantStatus, len(validVariantStatuses))
	copy(out, validVariantStatuses)
	return out
}

// ParseVariantStatus converts raw input into a VariantStatus.
func ParseVariantStatus(value string) (VariantStatus, error) {
	for _, candidate := range validVariantStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid variant status %q", value)
}

// InMaintenance reports whether the variant is inside a repair or cleaning window.
func (v VariantStatus) InMaintenance() bool {
	return v == VariantStatusRepair || v == VariantStatusCleaning
}
