package enums

// MaintenanceKind is the reason a variant is taken out of the rentable pool.
type MaintenanceKind string

const (
	MaintenanceKindRepair   MaintenanceKind = "repair"
	MaintenanceKindCleaning MaintenanceKind = "cleaning"
)

var validMaintenanceKinds = []MaintenanceKind{
	MaintenanceKindRepair,
	MaintenanceKindCleaning,
}

// String implements fmt.Stringer.
func (v MaintenanceKind) String() string {
	return string(v)
}

// IsValid reports whether the value is a known MaintenanceKind.
func (v MaintenanceKind) IsValid() bool {
	for _, candidate := range validMaintenanceKinds {
		if candidate == v {
			return true
		}
	}
	return false
}

// VariantStatus is the status a variant takes while this maintenance runs.
func (v MaintenanceKind) VariantStatus() VariantStatus {
	switch v {
	case MaintenanceKindRepair:
		return VariantStatusRepair
	case MaintenanceKindCleaning:
		return VariantStatusCleaning
	default:
		return VariantStatusUnavailable
	}
}
