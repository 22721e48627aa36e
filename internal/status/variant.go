package status

import (
	"fmt"

	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
)

// VariantAction is what drives a variant status change.
type VariantAction string

const (
	// ActionStartMaintenance moves an available variant into repair or cleaning.
	ActionStartMaintenance VariantAction = "start_maintenance"
	// ActionRestore ends maintenance immediately and unconditionally.
	ActionRestore VariantAction = "restore"
	// ActionManual is an administrative change to or from unavailable.
	ActionManual VariantAction = "manual"
)

// TransitionVariant validates a variant status change for the given action.
//
// While a variant is in repair or cleaning only ActionRestore is accepted.
func TransitionVariant(from, to enums.VariantStatus, action VariantAction) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown variant status %q", to))
	}

	if from.InMaintenance() && action != ActionRestore {
		return invalidVariant(from, to, "variant is under maintenance; restore it first")
	}

	switch action {
	case ActionStartMaintenance:
		if from == enums.VariantStatusAvailable && to.InMaintenance() {
			return nil
		}
	case ActionRestore:
		if from.InMaintenance() && to == enums.VariantStatusAvailable {
			return nil
		}
	case ActionManual:
		switch {
		case to == enums.VariantStatusUnavailable:
			return nil
		case from == enums.VariantStatusUnavailable && to == enums.VariantStatusAvailable:
			return nil
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown variant action %q", action))
	}

	return invalidVariant(from, to, fmt.Sprintf("%s cannot move variant from %s to %s", action, from, to))
}

func invalidVariant(from, to enums.VariantStatus, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, msg).WithDetails(map[string]any{
		"from": from,
		"to":   to,
	})
}
