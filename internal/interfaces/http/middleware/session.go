package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erp/dashboard/internal/application/dashboard"
	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/infrastructure/logger"
	"github.com/erp/dashboard/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Context keys for the client view context
const (
	ClientKey   = "dashboard_client"
	SessionKey  = "dashboard_session"
	DecisionKey = "guard_decision"
)

// Viewport hint headers, most specific first
var viewportHintHeaders = []string{"Sec-CH-Viewport-Width", "Viewport-Width"}

// maxViewportHint rejects absurd client hints
const maxViewportHint = 100000

// ClientAcquirer hands out the view context of a browser
type ClientAcquirer interface {
	Acquire(ctx context.Context, clientID, credential string) (*dashboard.Client, bool)
}

// ClientSession attaches the browser's client to the request, issuing a
// client id cookie on the first visit
func ClientSession(clients ClientAcquirer, cookies Cookies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(ClientCookie)
		if err != nil || !dashboard.ValidClientID(id) {
			id = dashboard.NewClientID()
			cookies.SetClient(c, id)
		}

		ctx := logger.WithClientID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		client, _ := clients.Acquire(ctx, id, Credential(c))
		applyViewportHint(c, client)
		c.Set(ClientKey, client)
		c.Next()
	}
}

// GetClient returns the client attached by ClientSession
func GetClient(c *gin.Context) (*dashboard.Client, bool) {
	v, ok := c.Get(ClientKey)
	if !ok {
		return nil, false
	}
	client, ok := v.(*dashboard.Client)
	return client, ok && client != nil
}

// applyViewportHint seeds an unmeasured viewport from request hints. A width
// measured by a live view is never overridden.
func applyViewportHint(c *gin.Context, client *dashboard.Client) {
	if _, measured := client.Viewport().Width(); measured {
		return
	}
	if width, ok := ViewportHint(c); ok {
		client.Viewport().Set(width)
	}
}

// ViewportHint reads the viewport width from client hint headers or the
// viewport cookie
func ViewportHint(c *gin.Context) (int, bool) {
	for _, h := range viewportHintHeaders {
		if width, ok := parseWidth(c.GetHeader(h)); ok {
			return width, true
		}
	}
	if v, err := c.Cookie(ViewportCookie); err == nil {
		return parseWidth(v)
	}
	return 0, false
}

func parseWidth(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Client hints may carry fractional CSS pixels
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	width, err := strconv.Atoi(s)
	if err != nil || width < 0 || width > maxViewportHint {
		return 0, false
	}
	return width, true
}

// DecisionObserver records guard decisions
type DecisionObserver interface {
	ObserveDecision(action, route, target string, pushed bool)
}

// GuardConfig configures PageGuard
type GuardConfig struct {
	Routes   session.Routes
	Grace    time.Duration
	Observer DecisionObserver
}

// PageGuard decides whether the requested page renders. It waits up to the
// grace period for a resolving session; a session still loading after that
// renders the loading placeholder. Redirects are answered with 302.
func PageGuard(cfg GuardConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := GetClient(c)
		if !ok {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		s := client.WaitResolved(c.Request.Context(), cfg.Grace)
		d := session.Decide(s, c.Request.URL.Path, cfg.Routes)
		if cfg.Observer != nil {
			cfg.Observer.ObserveDecision(string(d.Action), d.Route.String(), d.Target, false)
		}
		setSession(c, s)
		c.Set(DecisionKey, d)

		if d.Action == session.ActionRedirect {
			c.Redirect(http.StatusFound, d.Target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireIdentity rejects API requests whose client has no resolved identity
func RequireIdentity(grace time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := GetClient(c)
		if !ok {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		s := client.WaitResolved(c.Request.Context(), grace)
		if !s.Authenticated() {
			message := "Authentication required"
			if s.Loading {
				message = "Session is still being resolved"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, message, GetRequestID(c)))
			return
		}
		setSession(c, s)
		c.Next()
	}
}

func setSession(c *gin.Context, s session.Session) {
	c.Set(SessionKey, s)
	if s.Identity != nil {
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), s.Identity.ID.String()))
	}
}

// GetSession returns the session snapshot taken by PageGuard or RequireIdentity
func GetSession(c *gin.Context) (session.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return session.Session{}, false
	}
	s, ok := v.(session.Session)
	return s, ok
}

// GetDecision returns the decision taken by PageGuard
func GetDecision(c *gin.Context) (session.Decision, bool) {
	v, ok := c.Get(DecisionKey)
	if !ok {
		return session.Decision{}, false
	}
	d, ok := v.(session.Decision)
	return d, ok
}
