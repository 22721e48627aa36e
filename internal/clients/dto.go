package clients

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
)

// CreateClientInput holds the validated payload to create a client.
type CreateClientInput struct {
	GivenName string  `json:"given_name" validate:"required,max=120"`
	Surname   *string `json:"surname,omitempty" validate:"omitempty,max=120"`
	Phone     string  `json:"phone" validate:"required,min=5,max=32"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Instagram *string `json:"instagram,omitempty" validate:"omitempty,max=64"`
	Discount  int     `json:"discount" validate:"gte=0,lte=100"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// UpdateClientInput holds optional client mutations.
type UpdateClientInput struct {
	GivenName *string `json:"given_name,omitempty" validate:"omitempty,min=1,max=120"`
	Surname   *string `json:"surname,omitempty" validate:"omitempty,max=120"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Instagram *string `json:"instagram,omitempty" validate:"omitempty,max=64"`
	Discount  *int    `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// ClientDTO is the API shape of a client.
type ClientDTO struct {
	ID         uuid.UUID `json:"id"`
	GivenName  string    `json:"given_name"`
	Surname    *string   `json:"surname,omitempty"`
	Phone      string    `json:"phone"`
	Email      *string   `json:"email,omitempty"`
	Instagram  *string   `json:"instagram,omitempty"`
	Discount   int       `json:"discount"`
	Notes      *string   `json:"notes,omitempty"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewClientDTO(c models.Client) ClientDTO {
	return ClientDTO{
		ID:         c.ID,
		GivenName:  c.GivenName,
		Surname:    c.Surname,
		Phone:      c.Phone,
		Email:      c.Email,
		Instagram:  c.Instagram,
		Discount:   c.Discount,
		Notes:      c.Notes,
		IsArchived: c.IsArchived,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
