package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appidentity "github.com/erp/dashboard/internal/application/identity"
	"github.com/erp/dashboard/internal/application/dashboard"
	"github.com/erp/dashboard/internal/domain/listing"
	"github.com/erp/dashboard/internal/domain/navigation"
	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/infrastructure/auth"
	"github.com/erp/dashboard/internal/infrastructure/config"
	"github.com/erp/dashboard/internal/infrastructure/logger"
	"github.com/erp/dashboard/internal/infrastructure/persistence"
	"github.com/erp/dashboard/internal/infrastructure/telemetry"
	"github.com/erp/dashboard/internal/infrastructure/upstream"
	"github.com/erp/dashboard/internal/interfaces/http/handler"
	"github.com/erp/dashboard/internal/interfaces/http/middleware"
	"github.com/erp/dashboard/internal/interfaces/http/router"
	"github.com/erp/dashboard/web"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting warehouse dashboard",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Tracing
	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics("dashboard")
	}

	// Token revocation: redis when enabled, memory otherwise
	var (
		blacklist   auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
		redisPinger handler.Pinger
	)
	if cfg.Redis.Enabled {
		redisClient, err := auth.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, revoked tokens are kept in memory", zap.Error(err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Error("Error closing Redis", zap.Error(err))
				}
			}()
			blacklist = auth.NewRedisTokenBlacklist(redisClient)
			redisPinger = redisPing(redisClient)
			log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	// Identity provider
	users, err := persistence.NewUserDirectoryFromSeeds(cfg.Users)
	if err != nil {
		log.Fatal("Failed to load users", zap.Error(err))
	}
	if users.Len() == 0 {
		log.Warn("No users configured, nobody can sign in")
	}

	jwtCfg := cfg.JWT
	if jwtCfg.Secret == "" {
		jwtCfg.Secret = uuid.NewString() + uuid.NewString()
		log.Warn("jwt.secret not set, using a random secret; sessions end on restart")
	}
	authService := appidentity.NewAuthService(users, auth.NewJWTService(jwtCfg), blacklist, metrics, log)

	// Per-browser view contexts
	routes := session.Routes{
		Login:   cfg.Routes.Login,
		Root:    cfg.Routes.Root,
		Landing: cfg.Routes.Landing,
		Public:  cfg.Routes.Public,
	}
	registry := dashboard.NewRegistry(dashboard.RegistryConfig{
		Routes:     routes,
		Menu:       navigation.NewMenu(menuEntries(cfg.Navigation)),
		IdleTTL:    cfg.Session.IdleTTL,
		MaxClients: cfg.Session.MaxClients,
		Revalidate: cfg.Session.Revalidate,
	}, authService, authService, metrics, log)
	go registry.Run(ctx, cfg.Session.SweepInterval)

	// Section rows from the ERP API
	upstreamClient, err := upstream.NewClient(cfg.Upstream, log, metrics)
	if err != nil {
		log.Fatal("Failed to create upstream client", zap.Error(err))
	}
	if !upstreamClient.Configured() {
		log.Info("Upstream not configured, section listings stay empty")
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	tmpl, err := web.Templates()
	if err != nil {
		log.Fatal("Failed to parse templates", zap.Error(err))
	}
	engine.SetHTMLTemplate(tmpl)

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - Start the request span
	// 4. Logger - Log requests
	// 5. Metrics - Observe request durations
	// 6. Security - Add security headers
	// 7. CORS - Handle cross-origin requests
	// 8. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	if cfg.Telemetry.Enabled {
		tracingCfg := middleware.DefaultTracingConfig()
		tracingCfg.ServiceName = cfg.Telemetry.ServiceName
		engine.Use(middleware.TracingWithConfig(tracingCfg))
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(logger.GinMiddleware(log, "/health", cfg.Metrics.Path))
	if metrics != nil {
		engine.Use(middleware.HTTPMetrics(metrics, cfg.Metrics.Path))
	}
	engine.Use(middleware.SecureWithConfig(middleware.DefaultSecurityConfig()))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	var authLimiter *middleware.RateLimiter
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter = middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		go authLimiter.Run(ctx)
		log.Info("Login rate limiting enabled",
			zap.Int("requests", cfg.HTTP.AuthRateLimitRequests),
			zap.Duration("window", cfg.HTTP.AuthRateLimitWindow),
		)
	}

	cookies := middleware.NewCookies(cfg.Cookie)
	catalog := listing.NewCatalog(listing.DefaultSections())

	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = metrics.Handler()
	}

	router.Mount(engine, router.Handlers{
		Pages:      handler.NewPageHandler(cfg.App.Name, catalog, upstreamClient),
		Auth:       handler.NewAuthHandler(authService, cookies, log),
		Events:     handler.NewSessionEventsHandler(cfg.Session.Heartbeat, metrics, log),
		Navigation: handler.NewNavigationHandler(),
		Viewport:   handler.NewViewportHandler(cookies),
		Format:     handler.NewFormatHandler(),
		System:     handler.NewSystemHandler(cfg.App.Name, version, redisPinger, registry),
	}, router.Config{
		Clients:     registry,
		Cookies:     cookies,
		Routes:      routes,
		Grace:       cfg.Session.ResolveGrace,
		Observer:    metrics,
		AuthLimiter: authLimiter,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Path,
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Stop the janitor and the limiter cleanup
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Event streams end when their client closes, so close the registry
	// before waiting on in-flight requests
	if err := registry.Close(shutdownCtx); err != nil {
		log.Warn("Pending session resolutions abandoned", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// menuEntries converts the configured sidebar, falling back to the
// built-in menu
func menuEntries(cfg config.NavigationConfig) []navigation.Entry {
	if len(cfg.Entries) == 0 {
		return navigation.DefaultEntries()
	}
	entries := make([]navigation.Entry, len(cfg.Entries))
	for i, e := range cfg.Entries {
		entries[i] = navigation.Entry{Title: e.Title, TargetPath: e.TargetPath, Icon: e.Icon}
	}
	return entries
}

func redisPing(client redis.UniversalClient) handler.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
