package identity

import (
	"time"

	"github.com/erp/dashboard/internal/domain/identity"
)

// LoginInput contains the input for user login
type LoginInput struct {
	Username string
	Password string
	IP       string // Client IP for login tracking
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	Identity    *identity.Identity
	AccessToken string
	TokenID     string
	ExpiresAt   time.Time
}
