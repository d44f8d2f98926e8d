package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/erp/dashboard/internal/domain/identity"
	"github.com/erp/dashboard/internal/infrastructure/config"
	"github.com/google/uuid"
)

// InMemoryUserDirectory implements identity.UserDirectory over a fixed set
// of accounts loaded at startup
type InMemoryUserDirectory struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*identity.User
	byUsername map[string]*identity.User
}

// NewInMemoryUserDirectory creates a directory holding users.
// Usernames must be unique.
func NewInMemoryUserDirectory(users ...*identity.User) (*InMemoryUserDirectory, error) {
	d := &InMemoryUserDirectory{
		byID:       make(map[uuid.UUID]*identity.User, len(users)),
		byUsername: make(map[string]*identity.User, len(users)),
	}
	for _, u := range users {
		if err := d.add(u); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// NewUserDirectoryFromSeeds builds the directory from configured accounts
func NewUserDirectoryFromSeeds(seeds []config.UserSeed) (*InMemoryUserDirectory, error) {
	users := make([]*identity.User, 0, len(seeds))
	for i, seed := range seeds {
		u, err := identity.NewUserWithHash(seed.Username, seed.PasswordHash, identity.Role(seed.Role))
		if err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}
		if err := u.SetDisplayName(seed.DisplayName); err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}
		if err := u.SetEmail(seed.Email); err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}
		if seed.Disabled {
			u.Deactivate()
		}
		users = append(users, u)
	}
	return NewInMemoryUserDirectory(users...)
}

func (d *InMemoryUserDirectory) add(u *identity.User) error {
	key := strings.ToLower(u.Username)
	if _, exists := d.byUsername[key]; exists {
		return fmt.Errorf("duplicate username %q", u.Username)
	}
	d.byID[u.ID] = u
	d.byUsername[key] = u
	return nil
}

// FindByID implements identity.UserDirectory
func (d *InMemoryUserDirectory) FindByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// FindByUsername implements identity.UserDirectory
func (d *InMemoryUserDirectory) FindByUsername(_ context.Context, username string) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// Len returns the number of accounts
func (d *InMemoryUserDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

var _ identity.UserDirectory = (*InMemoryUserDirectory)(nil)
