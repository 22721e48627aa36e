package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/internal/availability"
	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/internal/status"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/outbox"
	"github.com/angelmondragon/rentals-backend/pkg/outbox/payloads"
)

// StartMaintenance sends units of an available variant to repair or cleaning
// for a window. The held units must be free for that window.
func (c *Coordinator) StartMaintenance(ctx context.Context, actor *uuid.UUID, variantID uuid.UUID, input MaintenanceInput) (_ *VariantStatusResult, err error) {
	started := time.Now()
	defer func() { c.observe(ctx, opStartMaintenance, started, err) }()

	if !input.Kind.IsValid() {
		return nil, fieldError("kind", fmt.Sprintf("unknown maintenance kind %q", input.Kind))
	}
	window, err := availability.ValidateWindow(input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}
	if input.Quantity != nil && *input.Quantity < 1 {
		return nil, fieldError("quantity", "quantity must be at least 1")
	}

	release, err := c.lockVariants(ctx, []uuid.UUID{variantID})
	if err != nil {
		return nil, err
	}
	defer release()

	var hold *models.MaintenanceHold
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		variant, err := c.lockVariant(ctx, tx, variantID)
		if err != nil {
			return err
		}
		from, to := variant.Status, input.Kind.VariantStatus()
		if err := status.TransitionVariant(from, to, status.ActionStartMaintenance); err != nil {
			return err
		}

		quantity := variant.StockQuantity
		if input.Quantity != nil {
			quantity = *input.Quantity
		}
		if quantity < 1 || quantity > variant.StockQuantity {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", variant.StockQuantity)).
				WithDetails(map[string]any{"field": "quantity", "stock": variant.StockQuantity})
		}

		results, err := c.calc.WithTx(tx).EvaluateVariants(ctx, []*models.Variant{variant}, window, nil)
		if err != nil {
			return err
		}
		res := results[variant.ID]
		c.metrics.IncAvailability(res.Available)
		if res.Remaining < quantity {
			return availability.ConflictError(variant.ID, quantity, res.Remaining)
		}

		hold = &models.MaintenanceHold{
			VariantID: variant.ID,
			Kind:      input.Kind,
			StartDate: window.Start,
			EndDate:   window.End,
			Quantity:  quantity,
			Note:      input.Note,
		}
		if err := c.ledger.WithTx(tx).CreateHold(ctx, hold); err != nil {
			return storeError(err, "maintenance hold", "create maintenance hold")
		}
		if err := c.catalog.WithTx(tx).SetVariantStatus(ctx, variant.ID, to); err != nil {
			return storeError(err, "variant", "update variant status")
		}
		return emit(ctx, c.outbox, tx, outbox.DomainEvent{
			EventType:     enums.EventVariantStatusChanged,
			AggregateType: enums.AggregateVariant,
			AggregateID:   variant.ID,
			Data: payloads.VariantStatusChangedEvent{
				VariantID: variant.ID,
				From:      from,
				To:        to,
				Action:    string(status.ActionStartMaintenance),
				HoldID:    &hold.ID,
			},
		}, actor)
	})
	if err != nil {
		return nil, err
	}

	result, err := c.variantResult(ctx, variantID)
	if err != nil {
		return nil, err
	}
	dto := NewHoldDTO(*hold)
	result.Hold = &dto
	return result, nil
}

// RestoreVariant ends maintenance at once: the variant becomes available and
// every open hold on it is released, whatever its end date.
func (c *Coordinator) RestoreVariant(ctx context.Context, actor *uuid.UUID, variantID uuid.UUID) (_ *VariantStatusResult, err error) {
	started := time.Now()
	defer func() { c.observe(ctx, opRestoreVariant, started, err) }()

	release, err := c.lockVariants(ctx, []uuid.UUID{variantID})
	if err != nil {
		return nil, err
	}
	defer release()

	var released int64
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		variant, err := c.lockVariant(ctx, tx, variantID)
		if err != nil {
			return err
		}
		from := variant.Status
		if err := status.TransitionVariant(from, enums.VariantStatusAvailable, status.ActionRestore); err != nil {
			return err
		}
		released, err = c.ledger.WithTx(tx).ReleaseHolds(ctx, variant.ID, c.now())
		if err != nil {
			return storeError(err, "maintenance hold", "release maintenance holds")
		}
		if err := c.catalog.WithTx(tx).SetVariantStatus(ctx, variant.ID, enums.VariantStatusAvailable); err != nil {
			return storeError(err, "variant", "update variant status")
		}
		return emit(ctx, c.outbox, tx, outbox.DomainEvent{
			EventType:     enums.EventVariantStatusChanged,
			AggregateType: enums.AggregateVariant,
			AggregateID:   variant.ID,
			Data: payloads.VariantStatusChangedEvent{
				VariantID: variant.ID,
				From:      from,
				To:        enums.VariantStatusAvailable,
				Action:    string(status.ActionRestore),
			},
		}, actor)
	})
	if err != nil {
		return nil, err
	}

	result, err := c.variantResult(ctx, variantID)
	if err != nil {
		return nil, err
	}
	result.ReleasedHolds = released
	return result, nil
}

// SetVariantStatus is the administrative switch between available and
// unavailable. Existing bookings are kept; new ones are refused while the
// variant is unavailable.
func (c *Coordinator) SetVariantStatus(ctx context.Context, actor *uuid.UUID, variantID uuid.UUID, to enums.VariantStatus) (_ *VariantStatusResult, err error) {
	started := time.Now()
	defer func() { c.observe(ctx, opSetVariantStatus, started, err) }()

	release, err := c.lockVariants(ctx, []uuid.UUID{variantID})
	if err != nil {
		return nil, err
	}
	defer release()

	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		variant, err := c.lockVariant(ctx, tx, variantID)
		if err != nil {
			return err
		}
		from := variant.Status
		if err := status.TransitionVariant(from, to, status.ActionManual); err != nil {
			return err
		}
		if from == to {
			return nil
		}
		if err := c.catalog.WithTx(tx).SetVariantStatus(ctx, variant.ID, to); err != nil {
			return storeError(err, "variant", "update variant status")
		}
		return emit(ctx, c.outbox, tx, outbox.DomainEvent{
			EventType:     enums.EventVariantStatusChanged,
			AggregateType: enums.AggregateVariant,
			AggregateID:   variant.ID,
			Data: payloads.VariantStatusChangedEvent{
				VariantID: variant.ID,
				From:      from,
				To:        to,
				Action:    string(status.ActionManual),
			},
		}, actor)
	})
	if err != nil {
		return nil, err
	}
	return c.variantResult(ctx, variantID)
}

func (c *Coordinator) lockVariant(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Variant, error) {
	variants, err := c.catalog.WithTx(tx).LockVariants(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, storeError(err, "variant", "lock variant")
	}
	variant, ok := variants[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
			WithDetails(map[string]any{"variant_id": id.String()})
	}
	if variant.IsArchived {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "variant is archived").
			WithDetails(map[string]any{"variant_id": id.String()})
	}
	return variant, nil
}

func (c *Coordinator) variantResult(ctx context.Context, id uuid.UUID) (*VariantStatusResult, error) {
	variant, err := c.catalog.FindVariant(ctx, id)
	if err != nil {
		return nil, storeError(err, "variant", "load variant")
	}
	return &VariantStatusResult{Variant: catalog.NewVariantDTO(*variant)}, nil
}
