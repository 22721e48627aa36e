package auth

import "github.com/angelmondragon/rentals-backend/internal/users"

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// LoginRequest carries OAuth2 password-grant credentials. Username may be
// either the username or the email of the user.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=255"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	User        *users.UserDTO `json:"user"`
}
