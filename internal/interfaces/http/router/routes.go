package router

import (
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/interfaces/http/handler"
	"github.com/erp/dashboard/internal/interfaces/http/middleware"
	"github.com/erp/dashboard/web"
	"github.com/gin-gonic/gin"
)

// Handlers are the endpoints mounted by Mount
type Handlers struct {
	Pages      *handler.PageHandler
	Auth       *handler.AuthHandler
	Events     *handler.SessionEventsHandler
	Navigation *handler.NavigationHandler
	Viewport   *handler.ViewportHandler
	Format     *handler.FormatHandler
	System     *handler.SystemHandler
}

// Config controls how the dashboard is mounted
type Config struct {
	Clients  middleware.ClientAcquirer
	Cookies  middleware.Cookies
	Routes   session.Routes
	Grace    time.Duration
	Observer middleware.DecisionObserver

	// AuthLimiter limits login attempts per client IP; nil disables it
	AuthLimiter *middleware.RateLimiter

	// Metrics is served on MetricsPath when set
	Metrics     http.Handler
	MetricsPath string
}

// Mount registers the page shells, the versioned API, static assets and the
// operational endpoints on engine. Only pages and the API carry a client
// session; assets and probes never create one.
func Mount(engine *gin.Engine, h Handlers, cfg Config) {
	engine.GET("/health", h.System.Health)
	if cfg.Metrics != nil {
		metricsPath := cfg.MetricsPath
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		engine.GET(metricsPath, gin.WrapH(cfg.Metrics))
	}
	engine.StaticFS("/static", http.FS(web.Static()))

	clientSession := middleware.ClientSession(cfg.Clients, cfg.Cookies)
	requireIdentity := middleware.RequireIdentity(cfg.Grace)

	loginForm := []gin.HandlerFunc{h.Auth.LoginForm}
	loginAPI := []gin.HandlerFunc{h.Auth.Login}
	if cfg.AuthLimiter != nil {
		limited := cfg.Routes.Login + "?" + url.Values{"error": {"limited"}}.Encode()
		loginForm = append([]gin.HandlerFunc{middleware.RateLimitRedirect(cfg.AuthLimiter, limited)}, loginForm...)
		loginAPI = append([]gin.HandlerFunc{middleware.RateLimit(cfg.AuthLimiter)}, loginAPI...)
	}

	// Page shells
	pages := engine.Group("", clientSession)
	pages.POST(cfg.Routes.Login, loginForm...)
	pages.POST("/logout", h.Auth.LogoutForm)

	guarded := pages.Group("", middleware.PageGuard(middleware.GuardConfig{
		Routes:   cfg.Routes,
		Grace:    cfg.Grace,
		Observer: cfg.Observer,
	}))
	guarded.GET(cfg.Routes.Root, h.Pages.Home)
	guarded.GET(cfg.Routes.Login, h.Pages.Login)
	guarded.GET(cfg.Routes.Landing, h.Pages.Overview)
	guarded.GET(path.Join(cfg.Routes.Landing, ":section"), h.Pages.Section)

	// Versioned API bound to the browser's client
	r := NewRouter(engine, WithAPIVersion("v1")).Use(clientSession)

	authRoutes := NewDomainGroup("auth", "/auth")
	authRoutes.POST("/login", loginAPI...)
	authRoutes.POST("/logout", h.Auth.Logout)
	authRoutes.GET("/me", h.Auth.Me)

	sessionRoutes := NewDomainGroup("session", "/session")
	sessionRoutes.GET("/events", h.Events.Stream)

	navigationRoutes := NewDomainGroup("navigation", "/navigation")
	navigationRoutes.GET("", h.Navigation.List)
	navigationRoutes.POST("/select", requireIdentity, h.Navigation.Select)

	viewportRoutes := NewDomainGroup("viewport", "/viewport")
	viewportRoutes.GET("", h.Viewport.Current)
	viewportRoutes.POST("", h.Viewport.Report)

	formatRoutes := NewDomainGroup("format", "/format")
	formatRoutes.GET("/currency", h.Format.Currency)
	formatRoutes.GET("/quantity", h.Format.Quantity)

	r.Register(authRoutes).
		Register(sessionRoutes).
		Register(navigationRoutes).
		Register(viewportRoutes).
		Register(formatRoutes)
	r.Setup()

	// System routes answer without a client
	systemRoutes := NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", h.System.GetSystemInfo)
	systemRoutes.GET("/ping", h.System.Ping)
	NewRouter(engine, WithAPIVersion("v1")).Register(systemRoutes).Setup()
}
