package handler

import (
	"time"

	"github.com/erp/dashboard/internal/domain/identity"
)

// LoginRequest represents the request body for user login
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required,max=100"`
	Password string `json:"password" form:"password" binding:"required,max=128"`
}

// TokenResponse represents the token data in auth responses
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// LoginResponse represents the response body for successful login
type LoginResponse struct {
	Token    TokenResponse      `json:"token"`
	User     *identity.Identity `json:"user"`
	Redirect string             `json:"redirect"`
}

// LogoutResponse represents the response body for logout
type LogoutResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

// SessionResponse is the client-visible session snapshot
type SessionResponse struct {
	Identity *identity.Identity `json:"identity"`
	Loading  bool               `json:"loading"`
}
