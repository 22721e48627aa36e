// Package reservations persists orders, their lines and maintenance holds,
// and answers how many units of a variant are committed over a window.
package reservations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
	"github.com/angelmondragon/rentals-backend/pkg/types"
)

// OrderFilter narrows order listings. Window matches orders overlapping it,
// Phone is a substring of the client's phone, ItemIDs matches orders with a
// line on any of the items, and CreatedFrom/CreatedTo bound created_at as
// [from, to).
type OrderFilter struct {
	Status          enums.OrderStatus
	ClientID        *uuid.UUID
	Phone           string
	Tag             string
	PickupType      enums.DeliveryType
	ItemIDs         []uuid.UUID
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Window          *types.DateRange
	IncludeArchived bool
}

// OrderSortFields maps public sort names to order columns.
var OrderSortFields = map[string]string{
	"created_at": "created_at",
	"start_time": "start_date",
	"end_time":   "end_date",
}

// Repository defines persistence operations for the reservation tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter, page pagination.Params) ([]models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	ReplaceLines(ctx context.Context, orderID uuid.UUID, lines []models.OrderLine) error
	SetOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	ArchiveOrder(ctx context.Context, id uuid.UUID) error
	CountClientOrders(ctx context.Context, clientID uuid.UUID) (int64, error)

	CreateHold(ctx context.Context, hold *models.MaintenanceHold) error
	ActiveHolds(ctx context.Context, variantID uuid.UUID) ([]models.MaintenanceHold, error)
	ReleaseHolds(ctx context.Context, variantID uuid.UUID, at time.Time) (int64, error)

	CommittedUnits(ctx context.Context, variantIDs []uuid.UUID, window types.DateRange, excludeOrderID *uuid.UUID) (map[uuid.UUID]int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func orderLines(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// CreateOrder inserts the order together with its lines.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", orderLines).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder loads the order row FOR UPDATE so concurrent status changes of
// the same order serialize.
func (r *repository) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	var lines []models.OrderLine
	if err := orderLines(r.db.WithContext(ctx)).Where("order_id = ?", id).Find(&lines).Error; err != nil {
		return nil, err
	}
	order.Lines = lines
	return &order, nil
}

func (r *repository) ListOrders(ctx context.Context, filter OrderFilter, page pagination.Params) ([]models.Order, error) {
	qb := r.db.WithContext(ctx).Model(&models.Order{})
	if !filter.IncludeArchived {
		qb = qb.Where("is_archived = ?", false)
	}
	if filter.Status != "" {
		qb = qb.Where("status = ?", filter.Status)
	}
	if filter.ClientID != nil {
		qb = qb.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Window != nil {
		qb = qb.Where("start_date < ? AND end_date > ?", filter.Window.End, filter.Window.Start)
	}
	if phone := strings.TrimSpace(filter.Phone); phone != "" {
		clients := r.db.WithContext(ctx).Model(&models.Client{}).Select("id").Where("phone LIKE ?", "%"+phone+"%")
		qb = qb.Where("client_id IN (?)", clients)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		qb = r.whereTag(qb, tag)
	}
	if filter.PickupType != "" {
		qb = qb.Where(r.jsonField("delivery_info", "pickup_type")+" = ?", string(filter.PickupType))
	}
	if len(filter.ItemIDs) > 0 {
		lines := r.db.WithContext(ctx).Model(&models.OrderLine{}).Select("order_id").Where("item_id IN ?", filter.ItemIDs)
		qb = qb.Where("id IN (?)", lines)
	}
	if filter.CreatedFrom != nil {
		qb = qb.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		qb = qb.Where("created_at < ?", *filter.CreatedTo)
	}

	qb, err := pagination.Apply(qb, "", page)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := qb.Preload("Lines", orderLines).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) isPostgres() bool {
	return r.db.Dialector.Name() == "postgres"
}

func (r *repository) whereTag(qb *gorm.DB, tag string) *gorm.DB {
	encoded, _ := json.Marshal([]string{tag})
	if r.isPostgres() {
		return qb.Where("tags @> ?::jsonb", string(encoded))
	}
	quoted, _ := json.Marshal(tag)
	return qb.Where("tags LIKE ?", "%"+string(quoted)+"%")
}

// jsonField renders a text accessor for a top-level key of a JSON column.
func (r *repository) jsonField(column, key string) string {
	if r.isPostgres() {
		return fmt.Sprintf("%s->>'%s'", column, key)
	}
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, key)
}

// UpdateOrder saves the scalar columns of an order; lines are replaced separately.
func (r *repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func (r *repository) ReplaceLines(ctx context.Context, orderID uuid.UUID, lines []models.OrderLine) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&models.OrderLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].OrderID = orderID
		lines[i].ID = uuid.Nil
	}
	return db.Create(&lines).Error
}

func (r *repository) SetOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ArchiveOrder(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("is_archived", true).Error
}

func (r *repository) CountClientOrders(ctx context.Context, clientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("client_id = ?", clientID).Count(&count).Error
	return count, err
}

func (r *repository) CreateHold(ctx context.Context, hold *models.MaintenanceHold) error {
	return r.db.WithContext(ctx).Create(hold).Error
}

func (r *repository) ActiveHolds(ctx context.Context, variantID uuid.UUID) ([]models.MaintenanceHold, error) {
	var holds []models.MaintenanceHold
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND released_at IS NULL", variantID).
		Order("start_date ASC").
		Find(&holds).Error
	return holds, err
}

// ReleaseHolds stamps every unreleased hold of the variant.
func (r *repository) ReleaseHolds(ctx context.Context, variantID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MaintenanceHold{}).
		Where("variant_id = ? AND released_at IS NULL", variantID).
		Update("released_at", at)
	return res.RowsAffected, res.Error
}

type committedRow struct {
	VariantID uuid.UUID
	Units     int64
}

// CommittedUnits sums, per variant, the quantities of lines belonging to
// stock-holding orders and of unreleased maintenance holds whose half-open
// window overlaps the given one. Each overlapping entry counts in full for the
// whole window. excludeOrderID leaves one order's own lines out.
func (r *repository) CommittedUnits(ctx context.Context, variantIDs []uuid.UUID, window types.DateRange, excludeOrderID *uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}

	var lineRows []committedRow
	lines := r.db.WithContext(ctx).
		Table("order_lines ol").
		Select("ol.variant_id AS variant_id, COALESCE(SUM(ol.quantity), 0) AS units").
		Joins("JOIN orders o ON o.id = ol.order_id").
		Where("ol.variant_id IN ?", variantIDs).
		Where("o.status IN ?", enums.StockHoldingOrderStatuses()).
		Where("o.start_date < ? AND o.end_date > ?", window.End, window.Start)
	if excludeOrderID != nil {
		lines = lines.Where("o.id <> ?", *excludeOrderID)
	}
	if err := lines.Group("ol.variant_id").Scan(&lineRows).Error; err != nil {
		return nil, err
	}

	var holdRows []committedRow
	if err := r.db.WithContext(ctx).
		Table("maintenance_holds").
		Select("variant_id, COALESCE(SUM(quantity), 0) AS units").
		Where("variant_id IN ?", variantIDs).
		Where("released_at IS NULL").
		Where("start_date < ? AND end_date > ?", window.End, window.Start).
		Group("variant_id").
		Scan(&holdRows).Error; err != nil {
		return nil, err
	}

	for _, row := range append(lineRows, holdRows...) {
		out[row.VariantID] += int(row.Units)
	}
	return out, nil
}
