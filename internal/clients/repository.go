package clients

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
)

// Filter narrows client listings. Query matches phone, given name or surname.
type Filter struct {
	Query           string
	Discount        *int
	IncludeArchived bool
}

// Repository defines persistence operations for clients.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, id uuid.UUID) (*models.Client, error)
	List(ctx context.Context, filter Filter, page pagination.Params) ([]models.Client, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	Archive(ctx context.Context, id uuid.UUID) error
	HasOrders(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a clients repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repository) List(ctx context.Context, filter Filter, page pagination.Params) ([]models.Client, error) {
	qb := r.db.WithContext(ctx).Model(&models.Client{})
	if !filter.IncludeArchived {
		qb = qb.Where("is_archived = ?", false)
	}
	if filter.Discount != nil {
		qb = qb.Where("discount = ?", *filter.Discount)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("phone LIKE ? OR LOWER(given_name) LIKE ? OR LOWER(COALESCE(surname, '')) LIKE ?", pattern, pattern, pattern)
	}

	qb, err := pagination.Apply(qb, "", page)
	if err != nil {
		return nil, err
	}
	var out []models.Client
	if err := qb.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) Create(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *repository) Update(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Save(client).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Client{}, "id = ?", id).Error
}

func (r *repository) Archive(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).Update("is_archived", true).Error
}

func (r *repository) HasOrders(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("client_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
