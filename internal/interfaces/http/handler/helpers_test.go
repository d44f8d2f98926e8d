package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appidentity "github.com/erp/dashboard/internal/application/identity"
	"github.com/erp/dashboard/internal/application/dashboard"
	"github.com/erp/dashboard/internal/domain/identity"
	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/domain/shared"
	"github.com/erp/dashboard/internal/infrastructure/auth"
	"github.com/erp/dashboard/internal/infrastructure/config"
	"github.com/erp/dashboard/internal/infrastructure/persistence"
	"github.com/erp/dashboard/internal/interfaces/http/middleware"
	"github.com/erp/dashboard/web"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "Password123"

// testEnv is a gin engine wired like the server: request id, client
// session and the page templates
type testEnv struct {
	engine    *gin.Engine
	registry  *dashboard.Registry
	auth      *appidentity.AuthService
	blacklist *auth.InMemoryTokenBlacklist
	cookies   middleware.Cookies
	user      *identity.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := identity.NewUserWithHash("thukho", string(hash), identity.RoleStaff)
	require.NoError(t, err)
	users, err := persistence.NewInMemoryUserDirectory(user)
	require.NoError(t, err)

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-32-characters-long",
		AccessTokenExpiration: time.Hour,
		Issuer:                "warehouse-dashboard-test",
	})
	blacklist := auth.NewInMemoryTokenBlacklist()
	authService := appidentity.NewAuthService(users, jwtService, blacklist, nil, nil)

	registry := dashboard.NewRegistry(dashboard.RegistryConfig{Routes: session.DefaultRoutes()}, authService, authService, nil, nil)
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	tmpl, err := web.Templates()
	require.NoError(t, err)

	cookies := middleware.NewCookies(config.CookieConfig{})
	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.Use(middleware.RequestID())
	engine.Use(middleware.ClientSession(registry, cookies))

	return &testEnv{
		engine:    engine,
		registry:  registry,
		auth:      authService,
		blacklist: blacklist,
		cookies:   cookies,
		user:      user,
	}
}

// pages mounts the page shells behind the guard
func (e *testEnv) pages(h *PageHandler) {
	g := e.engine.Group("")
	g.Use(middleware.PageGuard(middleware.GuardConfig{Routes: session.DefaultRoutes(), Grace: time.Second}))
	g.GET("/", h.Home)
	g.GET("/login", h.Login)
	g.GET("/dashboard", h.Overview)
	g.GET("/dashboard/:section", h.Section)
}

// signedIn returns a client id whose session is resolved to the test user
func (e *testEnv) signedIn(t *testing.T) (clientID, token string) {
	t.Helper()
	result, err := e.auth.Login(context.Background(), appidentity.LoginInput{Username: "thukho", Password: testPassword})
	require.NoError(t, err)

	clientID = uuid.NewString()
	c, _ := e.registry.Acquire(context.Background(), clientID, result.AccessToken)
	s := c.WaitResolved(context.Background(), 5*time.Second)
	require.True(t, s.Authenticated())
	return clientID, result.AccessToken
}

func (e *testEnv) serve(req *http.Request, clientID, token string) *httptest.ResponseRecorder {
	if clientID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.ClientCookie, Value: clientID})
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: token})
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) client(t *testing.T, clientID string) *dashboard.Client {
	t.Helper()
	c, ok := e.registry.Get(clientID)
	require.True(t, ok)
	return c
}

func cookieValue(w *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func navigatorRecorder(pushed *[]string) shared.NavigatorFunc {
	return func(path string) { *pushed = append(*pushed, path) }
}
