package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentals-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    *string    `json:"full_name,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateUserInput is the payload to register a back-office user. Active
// defaults to true.
type CreateUserInput struct {
	Username    string  `json:"username" validate:"required,min=3,max=255"`
	Email       string  `json:"email" validate:"required,email,max=255"`
	FullName    *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Password    string  `json:"password" validate:"required,min=8,max=40"`
	IsSuperuser bool    `json:"is_superuser"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
