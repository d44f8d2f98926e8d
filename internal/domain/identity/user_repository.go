package identity

import (
	"context"

	"github.com/erp/dashboard/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrUserNotFound is returned when the directory has no matching user
var ErrUserNotFound = shared.NewDomainError("USER_NOT_FOUND", "User not found")

// UserDirectory is the read side of the account store
type UserDirectory interface {
	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	// FindByUsername finds a user by (case-insensitive) username
	FindByUsername(ctx context.Context, username string) (*User, error)
}
