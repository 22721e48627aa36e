package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentals-backend/pkg/config"
	"github.com/angelmondragon/rentals-backend/pkg/db"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/rentals-backend/pkg/errors"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
	"github.com/angelmondragon/rentals-backend/pkg/security"
)

// Service manages back-office users.
type Service interface {
	Create(ctx context.Context, input CreateUserInput) (*UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	List(ctx context.Context, page pagination.Params) (pagination.Page[UserDTO], error)
	SetPassword(ctx context.Context, login, password string) error
	SetActive(ctx context.Context, login string, active bool) (*UserDTO, error)
}

type service struct {
	repo     *Repository
	password config.PasswordConfig
}

func NewService(repo *Repository, password config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, password: password}, nil
}

func (s *service) Create(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" {
		return nil, fieldError("username", "username is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fieldError("email", "a valid email is required")
	}
	if err := security.ValidatePassword(input.Password); err != nil {
		return nil, fieldError("password", err.Error())
	}

	exists, err := s.repo.Exists(ctx, username, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing users")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a user with this username or email already exists")
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     trimmed(input.FullName),
		PasswordHash: hash,
		IsActive:     active,
		IsSuperuser:  input.IsSuperuser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a user with this username or email already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return FromModel(user), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context, page pagination.Params) (pagination.Page[UserDTO], error) {
	if _, err := pagination.ParseCursor(page.Cursor); err != nil {
		return pagination.Page[UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, page)
	if err != nil {
		return pagination.Page[UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	trimmedPage := pagination.Trim(rows, page.Limit, func(u models.User) pagination.Cursor {
		return pagination.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	})
	return pagination.Map(trimmedPage, func(u models.User) UserDTO { return *FromModel(&u) }), nil
}

func (s *service) SetPassword(ctx context.Context, login, password string) error {
	if err := security.ValidatePassword(password); err != nil {
		return fieldError("password", err.Error())
	}
	user, err := s.repo.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return mapStoreError(err, "load user")
	}
	hash, err := security.HashPassword(password, s.password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return mapStoreError(err, "update password")
	}
	return nil
}

func (s *service) SetActive(ctx context.Context, login string, active bool) (*UserDTO, error) {
	user, err := s.repo.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return nil, mapStoreError(err, "load user")
	}
	if err := s.repo.SetActive(ctx, user.ID, active); err != nil {
		return nil, mapStoreError(err, "update user")
	}
	user.IsActive = active
	return FromModel(user), nil
}

func mapStoreError(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func fieldError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}
