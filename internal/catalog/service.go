package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/db"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/locks"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
)

// Facet names a field whose distinct values feed the catalog filters.
type Facet string

const (
	FacetCategories      Facet = "categories"
	FacetColors          Facet = "colors"
	FacetSizes           Facet = "sizes"
	FacetStatuses        Facet = "statuses"
	FacetVariantStatuses Facet = "variant_statuses"
)

// knownSortColumn reports whether column is empty or one of allowed's values.
func knownSortColumn(allowed map[string]string, column string) bool {
	if column == "" {
		return true
	}
	for _, c := range allowed {
		if c == column {
			return true
		}
	}
	return false
}

// Facets lists every facet in a stable order.
func Facets() []Facet {
	return []Facet{FacetCategories, FacetColors, FacetSizes, FacetStatuses, FacetVariantStatuses}
}

// ParseFacet maps a path segment to a Facet.
func ParseFacet(value string) (Facet, bool) {
	f := Facet(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Facets() {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Service exposes catalog management operations.
type Service interface {
	GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error)
	ListItems(ctx context.Context, filter ItemFilter, page pagination.Params) (pagination.Page[ItemDTO], error)
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	DeleteItem(ctx context.Context, id uuid.UUID) (archived bool, err error)

	GetVariant(ctx context.Context, id uuid.UUID) (*VariantDTO, error)
	CreateVariant(ctx context.Context, itemID uuid.UUID, input VariantInput) (*VariantDTO, error)
	UpdateVariant(ctx context.Context, id uuid.UUID, input UpdateVariantInput) (*VariantDTO, error)
	DeleteVariant(ctx context.Context, id uuid.UUID) (archived bool, err error)
	UpdateVariantStock(ctx context.Context, id uuid.UUID, delta int) (*VariantDTO, error)

	ListDistinct(ctx context.Context, facet Facet) ([]string, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	locker   locks.Locker
}

// NewService constructs a catalog service. The locker is shared with the
// booking coordinator so stock changes never interleave with a booking check.
func NewService(repo *Repository, dbClient *db.Client, locker locks.Locker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	return &service{repo: repo, dbClient: dbClient, locker: locker}, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := s.repo.FindItem(ctx, id, false)
	if err != nil {
		return nil, mapStoreError(err, "item")
	}
	dto := NewItemDTO(*item)
	return &dto, nil
}

func (s *service) ListItems(ctx context.Context, filter ItemFilter, page pagination.Params) (pagination.Page[ItemDTO], error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return pagination.Page[ItemDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown item status %q", filter.Status))
	}
	if filter.VariantStatus != "" && !filter.VariantStatus.IsValid() {
		return pagination.Page[ItemDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown variant status %q", filter.VariantStatus))
	}
	if !knownSortColumn(ItemSortFields, page.SortBy) {
		return pagination.Page[ItemDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported sort column %q", page.SortBy))
	}
	if _, err := pagination.ParseCursor(page.Cursor); err != nil {
		return pagination.Page[ItemDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListItems(ctx, filter, page)
	if err != nil {
		return pagination.Page[ItemDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	trimmed := pagination.Trim(rows, page.Limit, func(item models.Item) pagination.Cursor {
		c := pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
		switch page.SortBy {
		case "title":
			c.Value = item.Title
		case "category":
			c.Value = item.Category
		}
		return c
	})
	return pagination.Map(trimmed, NewItemDTO), nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	status := input.Status
	if status == "" {
		status = enums.ItemStatusInStock
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown item status %q", status))
	}

	item := &models.Item{
		Title:       strings.TrimSpace(input.Title),
		Category:    strings.TrimSpace(input.Category),
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Tags:        normalizeTags(input.Tags),
		Status:      status,
	}
	for _, v := range input.Variants {
		variant, err := newVariant(v)
		if err != nil {
			return nil, err
		}
		item.Variants = append(item.Variants, *variant)
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "item title already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	return s.GetItem(ctx, item.ID)
}

func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	item, err := s.repo.FindItem(ctx, id, false)
	if err != nil {
		return nil, mapStoreError(err, "item")
	}

	if input.Title != nil {
		item.Title = strings.TrimSpace(*input.Title)
	}
	if input.Category != nil {
		item.Category = strings.TrimSpace(*input.Category)
	}
	if input.Description != nil {
		item.Description = input.Description
	}
	if input.ImageURL != nil {
		item.ImageURL = input.ImageURL
	}
	if input.Tags != nil {
		item.Tags = normalizeTags(*input.Tags)
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown item status %q", *input.Status))
		}
		item.Status = *input.Status
	}

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "item title already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
	}
	return s.GetItem(ctx, id)
}

// DeleteItem archives an item referenced by any order line and deletes it otherwise.
func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) (bool, error) {
	archived := false
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindItem(ctx, id, true); err != nil {
			return mapStoreError(err, "item")
		}
		referenced, err := txRepo.ItemReferenced(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check item references")
		}
		if referenced {
			archived = true
			if err := txRepo.ArchiveItem(ctx, id); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive item")
			}
			return nil
		}
		if err := txRepo.DeleteItem(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
		}
		return nil
	})
	return archived, err
}

func (s *service) GetVariant(ctx context.Context, id uuid.UUID) (*VariantDTO, error) {
	variant, err := s.repo.FindVariant(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "variant")
	}
	dto := NewVariantDTO(*variant)
	return &dto, nil
}

func (s *service) CreateVariant(ctx context.Context, itemID uuid.UUID, input VariantInput) (*VariantDTO, error) {
	variant, err := newVariant(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindItem(ctx, itemID, false); err != nil {
		return nil, mapStoreError(err, "item")
	}
	variant.ItemID = itemID
	if err := s.repo.CreateVariant(ctx, variant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant")
	}
	return s.GetVariant(ctx, variant.ID)
}

// UpdateVariant changes size or color and, when Prices is set, reconciles the
// price tiers: listed ids are updated, new entries inserted, missing ones
// removed. Tiers locked by finalized orders cannot change or disappear.
func (s *service) UpdateVariant(ctx context.Context, id uuid.UUID, input UpdateVariantInput) (*VariantDTO, error) {
	if input.Prices != nil {
		if err := validatePrices(*input.Prices); err != nil {
			return nil, err
		}
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		variant, err := txRepo.FindVariant(ctx, id)
		if err != nil {
			return mapStoreError(err, "variant")
		}

		if input.Size != nil {
			variant.Size = strings.TrimSpace(*input.Size)
		}
		if input.Color != nil {
			variant.Color = strings.TrimSpace(*input.Color)
		}
		if err := txRepo.UpdateVariant(ctx, variant); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update variant")
		}

		if input.Prices == nil {
			return nil
		}
		return reconcilePrices(ctx, txRepo, variant, *input.Prices)
	})
	if err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, id)
}

func reconcilePrices(ctx context.Context, repo *Repository, variant *models.Variant, desired []PriceInput) error {
	existing := make(map[uuid.UUID]models.VariantPrice, len(variant.Prices))
	ids := make([]uuid.UUID, 0, len(variant.Prices))
	for _, p := range variant.Prices {
		existing[p.ID] = p
		ids = append(ids, p.ID)
	}
	locked, err := repo.LockedPriceIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load locked prices")
	}

	kept := map[uuid.UUID]bool{}
	for _, in := range desired {
		if in.ID == nil {
			price := &models.VariantPrice{
				VariantID: variant.ID,
				Amount:    in.Amount,
				Deposit:   in.Deposit,
				PriceType: strings.TrimSpace(in.PriceType),
			}
			if err := repo.CreatePrice(ctx, price); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create price")
			}
			continue
		}

		current, ok := existing[*in.ID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "price tier not found").
				WithDetails(map[string]any{"price_id": in.ID.String()})
		}
		kept[current.ID] = true

		changed := !current.Amount.Equal(in.Amount) ||
			!current.Deposit.Equal(in.Deposit) ||
			current.PriceType != strings.TrimSpace(in.PriceType)
		if !changed {
			continue
		}
		if locked[current.ID] {
			return lockedPriceError(current.ID)
		}
		current.Amount = in.Amount
		current.Deposit = in.Deposit
		current.PriceType = strings.TrimSpace(in.PriceType)
		if err := repo.UpdatePrice(ctx, &current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update price")
		}
	}

	for _, id := range ids {
		if kept[id] {
			continue
		}
		if locked[id] {
			return lockedPriceError(id)
		}
		if err := repo.DeletePrice(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete price")
		}
	}
	return nil
}

func lockedPriceError(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "price tier is used by a finalized order").
		WithDetails(map[string]any{"price_id": id.String()})
}

// DeleteVariant archives a variant referenced by any order line and deletes it otherwise.
func (s *service) DeleteVariant(ctx context.Context, id uuid.UUID) (bool, error) {
	archived := false
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindVariant(ctx, id); err != nil {
			return mapStoreError(err, "variant")
		}
		referenced, err := txRepo.VariantReferenced(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check variant references")
		}
		if referenced {
			archived = true
			if err := txRepo.ArchiveVariant(ctx, id); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive variant")
			}
			return nil
		}
		if err := txRepo.DeleteVariant(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete variant")
		}
		return nil
	})
	return archived, err
}

// UpdateVariantStock applies delta to the physical unit count. The change
// runs under the variant's booking lock and never drops stock below zero.
func (s *service) UpdateVariantStock(ctx context.Context, id uuid.UUID, delta int) (*VariantDTO, error) {
	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "variant is busy").
				WithDetails(map[string]any{"variant_id": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire variant lock")
	}
	defer release()

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		locked, err := txRepo.LockVariants(ctx, []uuid.UUID{id})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock variant")
		}
		variant, ok := locked[id]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		rows, err := txRepo.AdjustStock(ctx, id, delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock cannot drop below zero").
				WithDetails(map[string]any{
					"variant_id": id.String(),
					"stock":      variant.StockQuantity,
					"delta":      delta,
				})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, id)
}

func (s *service) ListDistinct(ctx context.Context, facet Facet) ([]string, error) {
	switch facet {
	case FacetStatuses:
		values := enums.ItemStatusValues()
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, v.String())
		}
		return out, nil
	case FacetVariantStatuses:
		values := enums.VariantStatusValues()
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, v.String())
		}
		return out, nil
	}

	var table, column string
	switch facet {
	case FacetCategories:
		table, column = "items", "category"
	case FacetSizes:
		table, column = "variants", "size"
	case FacetColors:
		table, column = "variants", "color"
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown facet %q", facet))
	}

	values, err := s.repo.Distinct(ctx, table, column)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list "+string(facet))
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func newVariant(input VariantInput) (*models.Variant, error) {
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity must be >= 0")
	}
	status := input.Status
	if status == "" {
		status = enums.VariantStatusAvailable
	}
	// Maintenance is entered through the booking coordinator so it always carries a hold.
	if status != enums.VariantStatusAvailable && status != enums.VariantStatusUnavailable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new variants must be available or unavailable")
	}
	if err := validatePrices(input.Prices); err != nil {
		return nil, err
	}

	variant := &models.Variant{
		Size:          strings.TrimSpace(input.Size),
		Color:         strings.TrimSpace(input.Color),
		StockQuantity: input.StockQuantity,
		Status:        status,
	}
	for _, p := range input.Prices {
		variant.Prices = append(variant.Prices, models.VariantPrice{
			Amount:    p.Amount,
			Deposit:   p.Deposit,
			PriceType: strings.TrimSpace(p.PriceType),
		})
	}
	return variant, nil
}

func validatePrices(prices []PriceInput) error {
	for i, p := range prices {
		if p.Amount.LessThan(decimal.Zero) || p.Deposit.LessThan(decimal.Zero) {
			return pkgerrors.New(pkgerrors.CodeValidation, "price amount and deposit must be >= 0").
				WithDetails(map[string]any{"index": i})
		}
		if strings.TrimSpace(p.PriceType) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "price_type is required").
				WithDetails(map[string]any{"index": i})
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func mapStoreError(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, entity+" not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}
