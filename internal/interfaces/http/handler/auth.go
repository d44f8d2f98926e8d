package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	appidentity "github.com/erp/dashboard/internal/application/identity"
	"github.com/erp/dashboard/internal/application/dashboard"
	"github.com/erp/dashboard/internal/infrastructure/logger"
	"github.com/erp/dashboard/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authenticator issues and revokes the stored credential
type Authenticator interface {
	Login(ctx context.Context, input appidentity.LoginInput) (*appidentity.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	BaseHandler
	auth    Authenticator
	cookies middleware.Cookies
	logger  *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator, cookies middleware.Cookies, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, cookies: cookies, logger: log}
}

// signIn authenticates req and resolves the client's session with the
// identity. The credential cookie is written before the session changes so
// a live view navigating on the change already carries it.
func (h *AuthHandler) signIn(c *gin.Context, client *dashboard.Client, req LoginRequest) (*appidentity.LoginResult, error) {
	result, err := h.auth.Login(c.Request.Context(), appidentity.LoginInput{
		Username: req.Username,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		return nil, err
	}
	h.cookies.SetToken(c, result.AccessToken, result.ExpiresAt)
	client.SignIn(result.Identity, result.AccessToken)
	return result, nil
}

// Login authenticates a JSON login request
func (h *AuthHandler) Login(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.signIn(c, client, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, LoginResponse{
		Token: TokenResponse{
			AccessToken: result.AccessToken,
			ExpiresAt:   result.ExpiresAt,
			TokenType:   "Bearer",
		},
		User:     result.Identity,
		Redirect: client.Routes().Landing,
	})
}

// LoginForm authenticates the login page form and redirects the browser
func (h *AuthHandler) LoginForm(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	routes := client.Routes()

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Redirect(http.StatusSeeOther, loginErrorURL(routes.Login, "invalid"))
		return
	}

	if _, err := h.signIn(c, client, req); err != nil {
		c.Redirect(http.StatusSeeOther, loginErrorURL(routes.Login, loginErrorKey(err)))
		return
	}
	c.Redirect(http.StatusSeeOther, routes.Landing)
}

func loginErrorKey(err error) string {
	switch {
	case errors.Is(err, appidentity.ErrInvalidCredentials):
		return "invalid"
	case errors.Is(err, appidentity.ErrAccountLocked):
		return "locked"
	case errors.Is(err, appidentity.ErrAccountDisabled):
		return "disabled"
	default:
		return "failed"
	}
}

func loginErrorURL(login, key string) string {
	return login + "?" + url.Values{"error": {key}}.Encode()
}

// logout ends the client's session. A credential presented with the request
// that differs from the one the session was resolved from is revoked too.
func (h *AuthHandler) logout(c *gin.Context, client *dashboard.Client) {
	ctx := c.Request.Context()
	log := logger.With(ctx, h.logger)

	presented := middleware.Credential(c)
	if presented != "" && presented != client.Credential() {
		if err := h.auth.Logout(ctx, presented); err != nil {
			log.Warn("Failed to revoke presented credential", zap.Error(err))
		}
	}

	h.cookies.ClearToken(c)
	// The session is reset even when revocation fails; open views are sent
	// to the login route by their guards
	if err := client.Logout(ctx); err != nil {
		log.Warn("Session ended without revoking its credential", zap.Error(err))
	}
}

// Logout ends the session for an API client
func (h *AuthHandler) Logout(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	h.logout(c, client)
	h.Success(c, LogoutResponse{
		Message:  "Logged out successfully",
		Redirect: client.Routes().Login,
	})
}

// LogoutForm ends the session from the sidebar form
func (h *AuthHandler) LogoutForm(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	h.logout(c, client)
	c.Redirect(http.StatusSeeOther, client.Routes().Login)
}

// Me returns the current session snapshot
func (h *AuthHandler) Me(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	s := client.Session().Current()
	h.Success(c, SessionResponse{Identity: s.Identity, Loading: s.Loading})
}
