package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminRole scopes operator tokens.
type AdminRole string

const RoleAdmin AdminRole = "admin"

// AdminLoginRequest holds operator credentials.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AdminLoginResponse returns the issued token.
type AdminLoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// AdminClaims is the JWT payload for operator tokens.
type AdminClaims struct {
	Username string    `json:"username"`
	Role     AdminRole `json:"role"`
	jwt.RegisteredClaims
}
