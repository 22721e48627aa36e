// Package clients manages renters. Clients referenced by orders are archived
// instead of deleted.
package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/db"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
)

// Service exposes client management operations.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*ClientDTO, error)
	List(ctx context.Context, filter Filter, page pagination.Params) (pagination.Page[ClientDTO], error)
	Create(ctx context.Context, input CreateClientInput) (*ClientDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateClientInput) (*ClientDTO, error)
	Delete(ctx context.Context, id uuid.UUID) (archived bool, err error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("clients repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ClientDTO, error) {
	client, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "load client")
	}
	dto := NewClientDTO(*client)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter Filter, page pagination.Params) (pagination.Page[ClientDTO], error) {
	if filter.Discount != nil && (*filter.Discount < 0 || *filter.Discount > 100) {
		return pagination.Page[ClientDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}
	if _, err := pagination.ParseCursor(page.Cursor); err != nil {
		return pagination.Page[ClientDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return pagination.Page[ClientDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list clients")
	}
	trimmed := pagination.Trim(rows, page.Limit, func(c models.Client) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return pagination.Map(trimmed, NewClientDTO), nil
}

func (s *service) Create(ctx context.Context, input CreateClientInput) (*ClientDTO, error) {
	if input.Discount < 0 || input.Discount > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}
	phone := normalizePhone(input.Phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	client := &models.Client{
		GivenName: strings.TrimSpace(input.GivenName),
		Surname:   trimmed(input.Surname),
		Phone:     phone,
		Email:     trimmed(input.Email),
		Instagram: trimmed(input.Instagram),
		Discount:  input.Discount,
		Notes:     input.Notes,
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, mapStoreError(err, "create client")
	}
	dto := NewClientDTO(*client)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateClientInput) (*ClientDTO, error) {
	client, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "load client")
	}
	if input.GivenName != nil {
		client.GivenName = strings.TrimSpace(*input.GivenName)
	}
	if input.Surname != nil {
		client.Surname = trimmed(input.Surname)
	}
	if input.Phone != nil {
		phone := normalizePhone(*input.Phone)
		if phone == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone cannot be empty")
		}
		client.Phone = phone
	}
	if input.Email != nil {
		client.Email = trimmed(input.Email)
	}
	if input.Instagram != nil {
		client.Instagram = trimmed(input.Instagram)
	}
	if input.Discount != nil {
		if *input.Discount < 0 || *input.Discount > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
		}
		client.Discount = *input.Discount
	}
	if input.Notes != nil {
		client.Notes = input.Notes
	}
	if err := s.repo.Update(ctx, client); err != nil {
		return nil, mapStoreError(err, "update client")
	}
	dto := NewClientDTO(*client)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, err := s.repo.Find(ctx, id); err != nil {
		return false, mapStoreError(err, "load client")
	}
	referenced, err := s.repo.HasOrders(ctx, id)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count client orders")
	}
	if referenced {
		if err := s.repo.Archive(ctx, id); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive client")
		}
		return true, nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete client")
	}
	return false, nil
}

func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func mapStoreError(err error, action string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "client not found")
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "phone already registered")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
}
