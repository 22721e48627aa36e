// Package availability decides whether a variant can be rented for a window.
package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/internal/reservations"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

// Result is the availability of one variant for one window.
type Result struct {
	VariantID uuid.UUID `json:"variant_id"`
	Available bool      `json:"available"`
	Remaining int       `json:"remaining"`
}

// VariantAvailability annotates a variant with its availability.
type VariantAvailability struct {
	catalog.VariantDTO
	Available bool `json:"available"`
	Remaining int  `json:"remaining"`
}

// ItemAvailability is an item whose variants carry live availability.
type ItemAvailability struct {
	catalog.ItemDTO
	Start    types.Date            `json:"start_time"`
	End      types.Date            `json:"end_time"`
	Variants []VariantAvailability `json:"variants"`
}

// Checker is the read-only availability surface.
type Checker interface {
	Check(ctx context.Context, variantID uuid.UUID, start, end types.Date) (Result, error)
	ItemAvailability(ctx context.Context, itemID uuid.UUID, start, end types.Date) (*ItemAvailability, error)
}

var _ Checker = (*Calculator)(nil)

// Calculator answers availability questions against the catalog and the
// reservation ledger. Bind it to a transaction with WithTx when the answer
// must stay valid until commit.
type Calculator struct {
	catalog *catalog.Repository
	ledger  reservations.Repository
}

func NewCalculator(catalogRepo *catalog.Repository, ledger reservations.Repository) *Calculator {
	return &Calculator{catalog: catalogRepo, ledger: ledger}
}

// WithTx returns a calculator reading through tx.
func (c *Calculator) WithTx(tx *gorm.DB) *Calculator {
	if tx == nil {
		return c
	}
	return &Calculator{catalog: c.catalog.WithTx(tx), ledger: c.ledger.WithTx(tx)}
}

// ValidateWindow checks both bounds are present and start is strictly before end.
func ValidateWindow(start, end types.Date) (types.DateRange, error) {
	var missing []string
	if start.IsZero() {
		missing = append(missing, "start_time")
	}
	if end.IsZero() {
		missing = append(missing, "end_time")
	}
	if len(missing) > 0 {
		return types.DateRange{}, pkgerrors.New(pkgerrors.CodeMissingParameter, "rental window requires start and end").
			WithDetails(map[string]any{"missing": missing})
	}
	if !start.Before(end) {
		return types.DateRange{}, pkgerrors.New(pkgerrors.CodeInvalidRange, "start must be before end").
			WithDetails(map[string]any{"start": start.String(), "end": end.String()})
	}
	return types.DateRange{Start: start, End: end}, nil
}

// Remaining clamps stock minus committed units into [0, stock].
func Remaining(stock, committed int) int {
	if stock <= 0 {
		return 0
	}
	left := stock - committed
	if left < 0 {
		return 0
	}
	if left > stock {
		return stock
	}
	return left
}

// Evaluate computes the result for a variant given its committed units.
// Variants outside the available status have nothing to rent.
func Evaluate(variant *models.Variant, committed int) Result {
	res := Result{VariantID: variant.ID}
	if variant.Status != enums.VariantStatusAvailable || variant.IsArchived {
		return res
	}
	res.Remaining = Remaining(variant.StockQuantity, committed)
	res.Available = res.Remaining > 0
	return res
}

// Check reports whether the variant has a free unit for [start, end).
func (c *Calculator) Check(ctx context.Context, variantID uuid.UUID, start, end types.Date) (Result, error) {
	window, err := ValidateWindow(start, end)
	if err != nil {
		return Result{}, err
	}
	return c.CheckExcluding(ctx, variantID, window, nil)
}

// CheckExcluding is Check with one order's own lines left out of the count.
func (c *Calculator) CheckExcluding(ctx context.Context, variantID uuid.UUID, window types.DateRange, excludeOrderID *uuid.UUID) (Result, error) {
	if _, err := ValidateWindow(window.Start, window.End); err != nil {
		return Result{}, err
	}
	variant, err := c.catalog.FindVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "variant not found").
				WithDetails(map[string]any{"variant_id": variantID.String()})
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	results, err := c.EvaluateVariants(ctx, []*models.Variant{variant}, window, excludeOrderID)
	if err != nil {
		return Result{}, err
	}
	return results[variantID], nil
}

// EvaluateVariants computes availability for already loaded variants with a
// single pair of aggregate queries.
func (c *Calculator) EvaluateVariants(ctx context.Context, variants []*models.Variant, window types.DateRange, excludeOrderID *uuid.UUID) (map[uuid.UUID]Result, error) {
	ids := make([]uuid.UUID, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.ID)
	}
	committed, err := c.ledger.CommittedUnits(ctx, ids, window, excludeOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum committed units")
	}
	out := make(map[uuid.UUID]Result, len(variants))
	for _, v := range variants {
		out[v.ID] = Evaluate(v, committed[v.ID])
	}
	return out, nil
}

// ItemAvailability annotates every non-archived variant of the item.
func (c *Calculator) ItemAvailability(ctx context.Context, itemID uuid.UUID, start, end types.Date) (*ItemAvailability, error) {
	window, err := ValidateWindow(start, end)
	if err != nil {
		return nil, err
	}
	item, err := c.catalog.FindItem(ctx, itemID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}

	variants := make([]*models.Variant, 0, len(item.Variants))
	for i := range item.Variants {
		variants = append(variants, &item.Variants[i])
	}
	results, err := c.EvaluateVariants(ctx, variants, window, nil)
	if err != nil {
		return nil, err
	}

	out := &ItemAvailability{
		ItemDTO:  catalog.NewItemDTO(*item),
		Start:    window.Start,
		End:      window.End,
		Variants: make([]VariantAvailability, 0, len(item.Variants)),
	}
	for _, v := range item.Variants {
		res := results[v.ID]
		out.Variants = append(out.Variants, VariantAvailability{
			VariantDTO: catalog.NewVariantDTO(v),
			Available:  res.Available,
			Remaining:  res.Remaining,
		})
	}
	return out, nil
}

// ConflictError reports that a variant cannot cover the requested quantity.
func ConflictError(variantID uuid.UUID, requested, remaining int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("variant %s is not available for the requested window", variantID)).
		WithDetails(map[string]any{
			"variant_id": variantID.String(),
			"requested":  requested,
			"remaining":  remaining,
		})
}
