package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/erp/dashboard/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserStatus represents the status of a user
type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusLocked      UserStatus = "locked"
	UserStatusDeactivated UserStatus = "deactivated"
)

// Role is the coarse dashboard role of a user
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Password cost for bcrypt
const bcryptCost = 12

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

// User is an account known to the local identity provider
type User struct {
	ID           uuid.UUID
	Username     string
	DisplayName  string
	Email        string
	Role         Role
	PasswordHash string
	Status       UserStatus
	LockedUntil  *time.Time
}

// Identity is the public view of an authenticated user.
// It is what the session holds; it never carries credentials.
type Identity struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Role        Role      `json:"role"`
}

// Name returns the display name if set, otherwise the username
func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Username
}

// NewUser creates an active user from a plain password
func NewUser(username, password string, role Role) (*User, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	return NewUserWithHash(username, hash, role)
}

// NewUserWithHash creates an active user from an existing bcrypt hash.
// Seeded accounts are configured this way so no plain password is kept.
func NewUserWithHash(username, passwordHash string, role Role) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, shared.NewDomainError("INVALID_PASSWORD_HASH", "Password hash is not a bcrypt hash")
	}
	if role == "" {
		role = RoleStaff
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("INVALID_ROLE", "Unknown role: "+string(role))
	}

	return &User{
		ID:           uuid.New(),
		Username:     strings.ToLower(strings.TrimSpace(username)),
		PasswordHash: passwordHash,
		Role:         role,
		Status:       UserStatusActive,
	}, nil
}

// SetDisplayName sets the display name
func (u *User) SetDisplayName(displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > 200 {
		return shared.NewDomainError("INVALID_DISPLAY_NAME", "Display name cannot exceed 200 characters")
	}
	u.DisplayName = displayName
	return nil
}

// SetEmail sets the email address; empty clears it
func (u *User) SetEmail(email string) error {
	email = strings.TrimSpace(email)
	if email != "" {
		if err := validateEmail(email); err != nil {
			return err
		}
	}
	u.Email = strings.ToLower(email)
	return nil
}

// VerifyPassword checks password against the stored hash
func (u *User) VerifyPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// Deactivate disables the account
func (u *User) Deactivate() {
	u.Status = UserStatusDeactivated
}

// Lock locks the account for duration
func (u *User) Lock(duration time.Duration) {
	until := time.Now().Add(duration)
	u.Status = UserStatusLocked
	u.LockedUntil = &until
}

// IsLocked returns true while a lock is in effect
func (u *User) IsLocked() bool {
	if u.Status != UserStatusLocked {
		return false
	}
	if u.LockedUntil != nil && time.Now().After(*u.LockedUntil) {
		return false
	}
	return true
}

// CanLogin returns true if user can login
func (u *User) CanLogin() bool {
	if u.Status == UserStatusDeactivated {
		return false
	}
	return !u.IsLocked()
}

// Identity returns the public view of the user
func (u *User) Identity() *Identity {
	return &Identity{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
	}
}

// HashPassword hashes a plain password with the account bcrypt cost
func HashPassword(password string) (string, error) {
	if err := validatePassword(password); err != nil {
		return "", err
	}
	return hashPassword(password)
}

func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if len(username) < 3 {
		return shared.NewDomainError("INVALID_USERNAME", "Username must be at least 3 characters")
	}
	if len(username) > 100 {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot exceed 100 characters")
	}
	if !usernameRegex.MatchString(username) {
		return shared.NewDomainError("INVALID_USERNAME", "Username can only contain letters, numbers, underscores, hyphens, and dots")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot be empty")
	}
	if len(password) < 8 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 8 characters")
	}
	if len(password) > 72 {
		// bcrypt ignores anything past 72 bytes
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot exceed 72 characters")
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if len(email) > 200 {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}
	if !emailRegex.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
