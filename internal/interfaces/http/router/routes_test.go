package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	appidentity "github.com/erp/dashboard/internal/application/identity"
	"github.com/erp/dashboard/internal/application/dashboard"
	"github.com/erp/dashboard/internal/domain/identity"
	"github.com/erp/dashboard/internal/domain/listing"
	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/infrastructure/config"
	"github.com/erp/dashboard/internal/interfaces/http/handler"
	"github.com/erp/dashboard/internal/interfaces/http/middleware"
	"github.com/erp/dashboard/web"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejectingAuth struct{}

func (rejectingAuth) Login(context.Context, appidentity.LoginInput) (*appidentity.LoginResult, error) {
	return nil, appidentity.ErrInvalidCredentials
}

func (rejectingAuth) Logout(context.Context, string) error { return nil }

func mountedEngine(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	engine, _ := mountWithRegistry(t, limiter)
	return engine
}

func mountWithRegistry(t *testing.T, limiter *middleware.RateLimiter) (*gin.Engine, *dashboard.Registry) {
	t.Helper()

	registry := dashboard.NewRegistry(dashboard.RegistryConfig{Routes: session.DefaultRoutes()}, nil, nil, nil, nil)
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	tmpl, err := web.Templates()
	require.NoError(t, err)
	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)

	cookies := middleware.NewCookies(config.CookieConfig{})
	Mount(engine, Handlers{
		Pages:      handler.NewPageHandler("Kho hàng", listing.NewCatalog(listing.DefaultSections()), nil),
		Auth:       handler.NewAuthHandler(rejectingAuth{}, cookies, nil),
		Events:     handler.NewSessionEventsHandler(time.Hour, nil, nil),
		Navigation: handler.NewNavigationHandler(),
		Viewport:   handler.NewViewportHandler(cookies),
		Format:     handler.NewFormatHandler(),
		System:     handler.NewSystemHandler("warehouse-dashboard", "test", nil, registry),
	}, Config{
		Clients:     registry,
		Cookies:     cookies,
		Routes:      session.DefaultRoutes(),
		Grace:       100 * time.Millisecond,
		AuthLimiter: limiter,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
	return engine, registry
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func hasClientCookie(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.ClientCookie {
			return true
		}
	}
	return false
}

func TestMount_OperationalRoutesHaveNoClient(t *testing.T) {
	engine := mountedEngine(t, nil)

	for _, p := range []string{"/health", "/metrics", "/static/app.js", "/api/v1/system/ping", "/api/v1/system/info"} {
		w := serve(engine, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, w.Code, p)
		assert.False(t, hasClientCookie(w), p)
	}
}

func TestMount_DroppedCredentialSendsKnownClientToLogin(t *testing.T) {
	engine, registry := mountWithRegistry(t, nil)
	cid := dashboard.NewClientID()
	client, _ := registry.Acquire(context.Background(), cid, "")
	client.SignIn(&identity.Identity{ID: uuid.New(), Username: "thukho"}, "token-a")

	page := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: middleware.ClientCookie, Value: cid})
		if token != "" {
			req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: token})
		}
		return serve(engine, req)
	}

	w := page("token-a")
	assert.Equal(t, http.StatusOK, w.Code)

	// The token cookie expired; the client id cookie outlives it
	w = page("")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.False(t, client.Session().Current().Authenticated())
	assert.Empty(t, client.Credential())
}

func TestMount_PagesAreGuarded(t *testing.T) {
	engine := mountedEngine(t, nil)

	tests := []struct {
		path     string
		code     int
		location string
	}{
		{"/", http.StatusFound, "/login"},
		{"/dashboard", http.StatusFound, "/login"},
		{"/dashboard/inventory", http.StatusFound, "/login"},
		{"/login", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := serve(engine, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
			assert.True(t, hasClientCookie(w))
		})
	}
}

func TestMount_APIRoutes(t *testing.T) {
	engine := mountedEngine(t, nil)

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/format/currency?amount=1500000", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1,500,000 VNĐ")
	assert.True(t, hasClientCookie(w))

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/navigation", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/viewport", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/navigation/select", strings.NewReader(`{"target_path":"/dashboard/invoices"}`))
	req.Header.Set("Content-Type", "application/json")
	w = serve(engine, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMount_LoginFormIsRateLimited(t *testing.T) {
	engine := mountedEngine(t, middleware.NewRateLimiter(1, time.Hour))

	post := func() *httptest.ResponseRecorder {
		form := url.Values{"username": {"thukho"}, "password": {"wrong"}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return serve(engine, req)
	}

	w := post()
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?error=invalid", w.Header().Get("Location"))

	w = post()
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?error=limited", w.Header().Get("Location"))
}

func TestMount_APILoginIsRateLimited(t *testing.T) {
	engine := mountedEngine(t, middleware.NewRateLimiter(1, time.Hour))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"thukho","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		return serve(engine, req)
	}

	assert.Equal(t, http.StatusUnauthorized, post().Code)
	assert.Equal(t, http.StatusTooManyRequests, post().Code)
}
