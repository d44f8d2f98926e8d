package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erp/dashboard/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
)

// Cookie names
const (
	ClientCookie   = "dash_cid"
	TokenCookie    = "dash_token"
	ViewportCookie = "dash_vw"
)

const (
	clientCookieMaxAge   = 365 * 24 * 60 * 60
	viewportCookieMaxAge = 30 * 24 * 60 * 60
)

// Cookies writes the dashboard cookies with the configured attributes
type Cookies struct {
	domain   string
	path     string
	secure   bool
	sameSite http.SameSite
}

// NewCookies creates a cookie writer from configuration
func NewCookies(cfg config.CookieConfig) Cookies {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return Cookies{
		domain:   cfg.Domain,
		path:     path,
		secure:   cfg.Secure,
		sameSite: ParseSameSite(cfg.SameSite),
	}
}

// ParseSameSite maps a configured SameSite name; unknown values are lax
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (k Cookies) set(c *gin.Context, name, value string, maxAge int, httpOnly bool) {
	c.SetSameSite(k.sameSite)
	c.SetCookie(name, value, maxAge, k.path, k.domain, k.secure, httpOnly)
}

// SetClient stores the client id
func (k Cookies) SetClient(c *gin.Context, id string) {
	k.set(c, ClientCookie, id, clientCookieMaxAge, true)
}

// SetToken stores the credential until it expires
func (k Cookies) SetToken(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		k.ClearToken(c)
		return
	}
	k.set(c, TokenCookie, token, maxAge, true)
}

// ClearToken removes the stored credential
func (k Cookies) ClearToken(c *gin.Context) {
	k.set(c, TokenCookie, "", -1, true)
}

// SetViewport remembers the last measured width for full page loads. Page
// scripts may read it.
func (k Cookies) SetViewport(c *gin.Context, width int) {
	k.set(c, ViewportCookie, strconv.Itoa(width), viewportCookieMaxAge, false)
}

// Credential returns the credential presented with the request. A bearer
// Authorization header wins over the cookie.
func Credential(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	token, err := c.Cookie(TokenCookie)
	if err != nil {
		return ""
	}
	return token
}
