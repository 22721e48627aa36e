package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/enums"
)

// ItemFilter narrows item listings. Color, Size and VariantStatus match items
// with at least one non-archived variant carrying all of them.
type ItemFilter struct {
	Query           string
	Category        string
	Status          enums.ItemStatus
	Tag             string
	Color           string
	Size            string
	VariantStatus   enums.VariantStatus
	IncludeArchived bool
}

// ItemSortFields maps public sort names to item columns.
var ItemSortFields = map[string]string{
	"created_at": "created_at",
	"title":      "title",
	"category":   "category",
}

func (f ItemFilter) filtersVariants() bool {
	return f.Color != "" || f.Size != "" || f.VariantStatus != ""
}

// PriceInput describes one price tier. ID refers to an existing tier on update.
type PriceInput struct {
	ID        *uuid.UUID      `json:"id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Deposit   decimal.Decimal `json:"deposit"`
	PriceType string          `json:"price_type" validate:"required,max=64"`
}

// VariantInput holds the validated payload to create a variant.
type VariantInput struct {
	Size          string              `json:"size" validate:"required,max=32"`
	Color         string              `json:"color" validate:"required,max=64"`
	StockQuantity int                 `json:"stock_quantity" validate:"gte=0"`
	Status        enums.VariantStatus `json:"status,omitempty" validate:"omitempty,oneof=available unavailable"`
	Prices        []PriceInput        `json:"prices" validate:"dive"`
}

// UpdateVariantInput holds optional variant mutations. A non-nil Prices
// replaces the tier list; tiers locked by finalized orders must be kept as is.
type UpdateVariantInput struct {
	Size   *string       `json:"size,omitempty" validate:"omitempty,min=1,max=32"`
	Color  *string       `json:"color,omitempty" validate:"omitempty,min=1,max=64"`
	Prices *[]PriceInput `json:"prices,omitempty" validate:"omitempty,dive"`
}

// CreateItemInput holds the validated payload to create an item.
type CreateItemInput struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Category    string           `json:"category" validate:"required,max=100"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	ImageURL    *string          `json:"image_url,omitempty" validate:"omitempty,max=2048"`
	Tags        []string         `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=64"`
	Status      enums.ItemStatus `json:"status,omitempty" validate:"omitempty,oneof=in_stock out_of_stock"`
	Variants    []VariantInput   `json:"variants,omitempty" validate:"omitempty,dive"`
}

// UpdateItemInput holds optional item mutations.
type UpdateItemInput struct {
	Title       *string           `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Category    *string           `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=5000"`
	ImageURL    *string           `json:"image_url,omitempty" validate:"omitempty,max=2048"`
	Tags        *[]string         `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=64"`
	Status      *enums.ItemStatus `json:"status,omitempty" validate:"omitempty,oneof=in_stock out_of_stock"`
}

// PriceDTO is the API shape of a price tier.
type PriceDTO struct {
	ID        uuid.UUID       `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Deposit   decimal.Decimal `json:"deposit"`
	PriceType string          `json:"price_type"`
}

// VariantDTO is the API shape of a variant.
type VariantDTO struct {
	ID            uuid.UUID           `json:"id"`
	ItemID        uuid.UUID           `json:"item_id"`
	Size          string              `json:"size"`
	Color         string              `json:"color"`
	StockQuantity int                 `json:"stock_quantity"`
	Status        enums.VariantStatus `json:"status"`
	IsArchived    bool                `json:"is_archived"`
	Prices        []PriceDTO          `json:"prices"`
}

// ItemDTO is the API shape of an item.
type ItemDTO struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Category    string           `json:"category"`
	Description *string          `json:"description,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Tags        []string         `json:"tags"`
	Status      enums.ItemStatus `json:"status"`
	IsArchived  bool             `json:"is_archived"`
	Variants    []VariantDTO     `json:"variants"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func NewPriceDTO(p models.VariantPrice) PriceDTO {
	return PriceDTO{ID: p.ID, Amount: p.Amount, Deposit: p.Deposit, PriceType: p.PriceType}
}

func NewVariantDTO(v models.Variant) VariantDTO {
	prices := make([]PriceDTO, 0, len(v.Prices))
	for _, p := range v.Prices {
		prices = append(prices, NewPriceDTO(p))
	}
	return VariantDTO{
		ID:            v.ID,
		ItemID:        v.ItemID,
		Size:          v.Size,
		Color:         v.Color,
		StockQuantity: v.StockQuantity,
		Status:        v.Status,
		IsArchived:    v.IsArchived,
		Prices:        prices,
	}
}

func NewItemDTO(item models.Item) ItemDTO {
	variants := make([]VariantDTO, 0, len(item.Variants))
	for _, v := range item.Variants {
		variants = append(variants, NewVariantDTO(v))
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return ItemDTO{
		ID:          item.ID,
		Title:       item.Title,
		Category:    item.Category,
		Description: item.Description,
		ImageURL:    item.ImageURL,
		Tags:        tags,
		Status:      item.Status,
		IsArchived:  item.IsArchived,
		Variants:    variants,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}
