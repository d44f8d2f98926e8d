package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/dashboard/internal/domain/identity"
	"github.com/erp/dashboard/internal/domain/shared"
	"github.com/erp/dashboard/internal/infrastructure/auth"
	"github.com/erp/dashboard/internal/infrastructure/logger"
	"github.com/erp/dashboard/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Login errors
var (
	ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid username or password")
	ErrAccountLocked      = shared.NewDomainError("ACCOUNT_LOCKED", "Account is locked. Please try again later or contact support")
	ErrAccountDisabled    = shared.NewDomainError("ACCOUNT_DEACTIVATED", "Account has been deactivated")
	ErrTokenIssue         = shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication token")
)

// Login outcomes reported to the LoginObserver
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid_credentials"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LoginObserver counts login attempts by outcome
type LoginObserver interface {
	ObserveLogin(outcome string)
}

// AuthService is the dashboard's identity provider. It issues the stored
// credential on login, resolves it back to an identity and revokes it on
// logout.
type AuthService struct {
	users      identity.UserDirectory
	jwtService *auth.JWTService
	blacklist  auth.TokenBlacklist
	observer   LoginObserver
	logger     *zap.Logger
}

// NewAuthService creates a new authentication service.
// blacklist and observer may be nil.
func NewAuthService(
	users identity.UserDirectory,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	observer LoginObserver,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		jwtService: jwtService,
		blacklist:  blacklist,
		observer:   observer,
		logger:     logger,
	}
}

// Login authenticates a user and issues a credential
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.login")
	defer span.End()
	log := logger.With(ctx, s.logger)

	username := strings.TrimSpace(input.Username)
	log.Info("Login attempt", zap.String("username", username), zap.String("ip", input.IP))

	if username == "" || input.Password == "" {
		s.observe(OutcomeInvalid)
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, identity.ErrUserNotFound) {
			log.Error("User lookup failed during login", zap.Error(err))
			telemetry.RecordError(span, err)
			s.observe(OutcomeError)
			return nil, err
		}
		log.Warn("User not found during login", zap.String("username", username))
		s.observe(OutcomeInvalid)
		return nil, ErrInvalidCredentials
	}

	if !user.CanLogin() {
		s.observe(OutcomeRejected)
		if user.IsLocked() {
			log.Warn("Login attempt for locked account", zap.String("username", username))
			return nil, ErrAccountLocked
		}
		log.Warn("Login attempt for deactivated account", zap.String("username", username))
		return nil, ErrAccountDisabled
	}

	if !user.VerifyPassword(input.Password) {
		log.Warn("Invalid password attempt", zap.String("username", username))
		s.observe(OutcomeInvalid)
		return nil, ErrInvalidCredentials
	}

	issued, err := s.jwtService.Generate(auth.GenerateTokenInput{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
	})
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		telemetry.RecordError(span, err)
		s.observe(OutcomeError)
		return nil, ErrTokenIssue
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrUserID, user.ID.String())
	log.Info("User logged in successfully",
		zap.String("username", user.Username),
		zap.String("user_id", user.ID.String()))
	s.observe(OutcomeSuccess)

	return &LoginResult{
		Identity:    user.Identity(),
		AccessToken: issued.Token,
		TokenID:     issued.ID,
		ExpiresAt:   issued.ExpiresAt,
	}, nil
}

// Resolve turns a stored credential into an identity. Any invalid, expired,
// revoked or orphaned credential resolves to nil. A failing blacklist is
// logged and treated as not revoked.
func (s *AuthService) Resolve(ctx context.Context, token string) *identity.Identity {
	if token == "" {
		return nil
	}
	ctx, span := telemetry.StartSpan(ctx, "auth.resolve")
	defer span.End()
	log := logger.With(ctx, s.logger)

	claims, err := s.jwtService.Validate(token)
	if err != nil {
		log.Debug("Stored credential rejected", zap.Error(err))
		return nil
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			log.Warn("Token blacklist unavailable, accepting credential", zap.Error(err))
			telemetry.RecordError(span, err)
		} else if revoked {
			log.Debug("Stored credential revoked", zap.String("jti", claims.ID))
			return nil
		}
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		log.Warn("Credential carries an invalid user id", zap.Error(err))
		return nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		log.Warn("Credential user no longer exists", zap.String("user_id", userID.String()), zap.Error(err))
		return nil
	}
	if !user.CanLogin() {
		log.Info("Credential user can no longer log in", zap.String("user_id", userID.String()))
		return nil
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrUserID, user.ID.String())
	return user.Identity()
}

// Logout revokes token for the rest of its lifetime. Tokens that no longer
// validate need no revocation.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" || s.blacklist == nil {
		return nil
	}
	ctx, span := telemetry.StartSpan(ctx, "auth.logout")
	defer span.End()
	log := logger.With(ctx, s.logger)

	claims, err := s.jwtService.Validate(token)
	if err != nil {
		log.Debug("Logout with unusable credential", zap.Error(err))
		return nil
	}

	if err := s.blacklist.AddToBlacklist(ctx, claims.ID, claims.GetRemainingTTL()); err != nil {
		log.Error("Failed to revoke token", zap.String("jti", claims.ID), zap.Error(err))
		telemetry.RecordError(span, err)
		return err
	}

	log.Info("User logged out",
		zap.String("user_id", claims.UserID),
		zap.String("jti", claims.ID))
	return nil
}

func (s *AuthService) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveLogin(outcome)
	}
}
