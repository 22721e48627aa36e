package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
)

// Repository persists items, variants and price tiers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func preloadVariants(includeArchived bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !includeArchived {
			db = db.Where("is_archived = ?", false)
		}
		return db.Order("created_at ASC").Order("id ASC")
	}
}

func orderPrices(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// FindItem loads an item with its variants and their price tiers.
func (r *Repository) FindItem(ctx context.Context, id uuid.UUID, includeArchivedVariants bool) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Preload("Variants", preloadVariants(includeArchivedVariants)).
		Preload("Variants.Prices", orderPrices).
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns one keyset page of items with their variants.
func (r *Repository) ListItems(ctx context.Context, filter ItemFilter, page pagination.Params) ([]models.Item, error) {
	qb := r.db.WithContext(ctx).Model(&models.Item{})

	if !filter.IncludeArchived {
		qb = qb.Where("is_archived = ?", false)
	}
	if filter.Category != "" {
		qb = qb.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		qb = qb.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("LOWER(title) LIKE ?", pattern)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		qb = r.whereTag(qb, tag)
	}
	if filter.filtersVariants() {
		sub := r.db.WithContext(ctx).Model(&models.Variant{}).
			Select("1").
			Where("variants.item_id = items.id AND variants.is_archived = ?", false)
		if filter.Color != "" {
			sub = sub.Where("LOWER(variants.color) = ?", strings.ToLower(filter.Color))
		}
		if filter.Size != "" {
			sub = sub.Where("LOWER(variants.size) = ?", strings.ToLower(filter.Size))
		}
		if filter.VariantStatus != "" {
			sub = sub.Where("variants.status = ?", filter.VariantStatus)
		}
		qb = qb.Where("EXISTS (?)", sub)
	}

	qb, err := pagination.Apply(qb, "", page)
	if err != nil {
		return nil, err
	}

	var items []models.Item
	if err := qb.
		Preload("Variants", preloadVariants(false)).
		Preload("Variants.Prices", orderPrices).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) whereTag(qb *gorm.DB, tag string) *gorm.DB {
	encoded, _ := json.Marshal([]string{tag})
	if r.db.Dialector.Name() == "postgres" {
		return qb.Where("tags @> ?::jsonb", string(encoded))
	}
	quoted, _ := json.Marshal(tag)
	return qb.Where("tags LIKE ?", "%"+string(quoted)+"%")
}

// CreateItem inserts the item together with its variants and prices.
func (r *Repository) CreateItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItem saves the scalar columns of an item.
func (r *Repository) UpdateItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	variantIDs := db.Model(&models.Variant{}).Select("id").Where("item_id = ?", id)
	if err := db.Where("variant_id IN (?)", variantIDs).Delete(&models.VariantPrice{}).Error; err != nil {
		return err
	}
	if err := db.Where("item_id = ?", id).Delete(&models.Variant{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Item{}, "id = ?", id).Error
}

// ArchiveItem soft-retires an item and every variant it owns.
func (r *Repository) ArchiveItem(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Variant{}).Where("item_id = ?", id).Update("is_archived", true).Error; err != nil {
		return err
	}
	return db.Model(&models.Item{}).Where("id = ?", id).Update("is_archived", true).Error
}

// ItemReferenced reports whether any order line points at the item.
func (r *Repository) ItemReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderLine{}).Where("item_id = ?", id).Limit(1).Count(&count).Error
	return count > 0, err
}

// VariantReferenced reports whether any order line points at the variant.
func (r *Repository) VariantReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderLine{}).Where("variant_id = ?", id).Limit(1).Count(&count).Error
	return count > 0, err
}

// FindVariant loads a variant with its price tiers.
func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := r.db.WithContext(ctx).Preload("Prices", orderPrices).First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// LockVariants loads the variants and their price tiers with a row lock held
// until the surrounding transaction ends. Rows are locked in id order. sqlite
// ignores the lock clause and relies on its single writer.
func (r *Repository) LockVariants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Variant, error) {
	out := make(map[uuid.UUID]*models.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var variants []models.Variant
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Preload("Prices", orderPrices).
		Find(&variants).Error; err != nil {
		return nil, err
	}
	for i := range variants {
		out[variants[i].ID] = &variants[i]
	}
	return out, nil
}

func (r *Repository) CreateVariant(ctx context.Context, variant *models.Variant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

// UpdateVariant saves the descriptive columns. Stock and status change only
// through AdjustStock and SetVariantStatus.
func (r *Repository) UpdateVariant(ctx context.Context, variant *models.Variant) error {
	return r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", variant.ID).
		Updates(map[string]any{"size": variant.Size, "color": variant.Color}).Error
}

func (r *Repository) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("variant_id = ?", id).Delete(&models.VariantPrice{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Variant{}, "id = ?", id).Error
}

func (r *Repository) ArchiveVariant(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Variant{}).Where("id = ?", id).Update("is_archived", true).Error
}

// AdjustStock applies delta atomically and refuses to go below zero. It
// returns the number of rows changed: zero means missing or insufficient.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ? AND stock_quantity + ? >= 0", id, delta).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	return res.RowsAffected, res.Error
}

// SetVariantStatus writes a status already validated by the state machine.
func (r *Repository) SetVariantStatus(ctx context.Context, id uuid.UUID, status enums.VariantStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Variant{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) CreatePrice(ctx context.Context, price *models.VariantPrice) error {
	return r.db.WithContext(ctx).Create(price).Error
}

func (r *Repository) UpdatePrice(ctx context.Context, price *models.VariantPrice) error {
	return r.db.WithContext(ctx).
		Model(&models.VariantPrice{}).
		Where("id = ?", price.ID).
		Updates(map[string]any{"amount": price.Amount, "deposit": price.Deposit, "price_type": price.PriceType}).Error
}

func (r *Repository) DeletePrice(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.VariantPrice{}, "id = ?", id).Error
}

// LockedPriceIDs returns the subset of ids referenced by lines of finalized
// orders. Those tiers are frozen so historical orders never change.
func (r *Repository) LockedPriceIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	if len(ids) == 0 {
		return out, nil
	}
	var locked []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("order_lines ol").
		Joins("JOIN orders o ON o.id = ol.order_id").
		Where("ol.price_id IN ?", ids).
		Where("o.status IN ?", finalizedOrderStatuses).
		Distinct().
		Pluck("ol.price_id", &locked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range locked {
		out[id] = true
	}
	return out, nil
}

var finalizedOrderStatuses = []enums.OrderStatus{
	enums.OrderStatusIssued,
	enums.OrderStatusReturned,
	enums.OrderStatusDone,
}

// Distinct returns the sorted distinct non-empty values of a whitelisted
// column among non-archived rows.
func (r *Repository) Distinct(ctx context.Context, table, column string) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).
		Table(table).
		Where("is_archived = ?", false).
		Where(fmt.Sprintf("%s <> ''", column)).
		Distinct(column).
		Order(column + " ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, err
	}
	return values, nil
}
