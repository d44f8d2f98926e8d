package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	HTTP       HTTPConfig
	JWT        JWTConfig
	Cookie     CookieConfig
	Redis      RedisConfig
	Session    SessionConfig
	Routes     RoutesConfig
	Navigation NavigationConfig
	Users      []UserSeed
	Upstream   UpstreamConfig
	Telemetry  TelemetryConfig
	Metrics    MetricsConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration // not applied to event streams
	IdleTimeout           time.Duration
	MaxHeaderBytes        int
	MaxBodySize           int64
	AuthRateLimitEnabled  bool
	AuthRateLimitRequests int
	AuthRateLimitWindow   time.Duration
	CORSAllowOrigins      []string
	CORSAllowMethods      []string
	CORSAllowHeaders      []string
	TrustedProxies        []string
}

// JWTConfig holds settings of the stored credential
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// CookieConfig holds cookie settings shared by the token and client cookies
type CookieConfig struct {
	Domain   string // Domain for cookies (empty = current domain)
	Path     string
	Secure   bool   // should be true in production for HTTPS
	SameSite string // "strict", "lax", or "none"
}

// RedisConfig holds Redis connection settings.
// When disabled, revoked tokens are kept in memory.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SessionConfig controls the per-browser view context
type SessionConfig struct {
	ResolveGrace  time.Duration // how long a page render waits for credential resolution
	IdleTTL       time.Duration // clients unseen for longer are evicted
	SweepInterval time.Duration
	Heartbeat     time.Duration // event stream keep-alive
	MaxClients    int           // oldest idle clients are evicted beyond this
	Revalidate    time.Duration // resolved credentials are checked again after this
}

// RoutesConfig names the guarded routes
type RoutesConfig struct {
	Login   string
	Root    string
	Landing string
	Public  []string
}

// NavigationConfig holds the sidebar; empty means the built-in menu
type NavigationConfig struct {
	Entries []NavigationEntry `mapstructure:"entries"`
}

// NavigationEntry is one configured sidebar destination
type NavigationEntry struct {
	Title      string `mapstructure:"title"`
	TargetPath string `mapstructure:"target_path"`
	Icon       string `mapstructure:"icon"`
}

// UserSeed is an account of the local identity provider
type UserSeed struct {
	Username     string `mapstructure:"username"`
	DisplayName  string `mapstructure:"display_name"`
	Email        string `mapstructure:"email"`
	Role         string `mapstructure:"role"`
	PasswordHash string `mapstructure:"password_hash"`
	Disabled     bool   `mapstructure:"disabled"`
}

// UpstreamConfig points at the ERP data API; empty BaseURL disables listings
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DASH_ prefix (e.g., DASH_JWT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("metrics.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:           v.GetDuration("http.read_timeout"),
			WriteTimeout:          v.GetDuration("http.write_timeout"),
			IdleTimeout:           v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:        v.GetInt("http.max_header_bytes"),
			MaxBodySize:           v.GetInt64("http.max_body_size"),
			AuthRateLimitEnabled:  v.GetBool("http.auth_rate_limit_enabled"),
			AuthRateLimitRequests: v.GetInt("http.auth_rate_limit_requests"),
			AuthRateLimitWindow:   v.GetDuration("http.auth_rate_limit_window"),
			CORSAllowOrigins:      v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:      v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:      v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:        v.GetStringSlice("http.trusted_proxies"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Cookie: CookieConfig{
			Domain:   v.GetString("cookie.domain"),
			Path:     v.GetString("cookie.path"),
			Secure:   v.GetBool("cookie.secure"),
			SameSite: v.GetString("cookie.same_site"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Session: SessionConfig{
			ResolveGrace:  v.GetDuration("session.resolve_grace"),
			IdleTTL:       v.GetDuration("session.idle_ttl"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
			Heartbeat:     v.GetDuration("session.heartbeat"),
			MaxClients:    v.GetInt("session.max_clients"),
			Revalidate:    v.GetDuration("session.revalidate"),
		},
		Routes: RoutesConfig{
			Login:   v.GetString("routes.login"),
			Root:    v.GetString("routes.root"),
			Landing: v.GetString("routes.landing"),
			Public:  v.GetStringSlice("routes.public"),
		},
		Upstream: UpstreamConfig{
			BaseURL: v.GetString("upstream.base_url"),
			Timeout: v.GetDuration("upstream.timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
	}

	// Lists of tables only come from the config file
	if err := v.UnmarshalKey("navigation", &cfg.Navigation); err != nil {
		return nil, fmt.Errorf("error reading navigation entries: %w", err)
	}
	if err := v.UnmarshalKey("users", &cfg.Users); err != nil {
		return nil, fmt.Errorf("error reading users: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "warehouse-dashboard"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.AuthRateLimitRequests == 0 {
		cfg.HTTP.AuthRateLimitRequests = 5
	}
	if cfg.HTTP.AuthRateLimitWindow == 0 {
		cfg.HTTP.AuthRateLimitWindow = time.Minute
	}
	// No CORS origin fallback: cross-origin requests stay closed until configured
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 8 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "warehouse-dashboard"
	}
	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = "/"
	}
	if cfg.Cookie.SameSite == "" {
		cfg.Cookie.SameSite = "lax"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Session.ResolveGrace == 0 {
		cfg.Session.ResolveGrace = 300 * time.Millisecond
	}
	if cfg.Session.IdleTTL == 0 {
		cfg.Session.IdleTTL = 30 * time.Minute
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = time.Minute
	}
	if cfg.Session.Heartbeat == 0 {
		cfg.Session.Heartbeat = 25 * time.Second
	}
	if cfg.Session.MaxClients == 0 {
		cfg.Session.MaxClients = 10000
	}
	if cfg.Session.Revalidate == 0 {
		cfg.Session.Revalidate = time.Minute
	}
	if cfg.Routes.Login == "" {
		cfg.Routes.Login = "/login"
	}
	if cfg.Routes.Root == "" {
		cfg.Routes.Root = "/"
	}
	if cfg.Routes.Landing == "" {
		cfg.Routes.Landing = "/dashboard"
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 5 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Routes.Login == c.Routes.Landing {
		return fmt.Errorf("routes.login and routes.landing must differ")
	}
	for _, p := range c.Routes.Public {
		if p == c.Routes.Landing {
			return fmt.Errorf("routes.public cannot contain the landing route %q", p)
		}
	}
	for i, e := range c.Navigation.Entries {
		if e.Title == "" || e.TargetPath == "" {
			return fmt.Errorf("navigation.entries[%d] needs a title and a target_path", i)
		}
	}
	for i, u := range c.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("users[%d] needs a username and a password_hash", i)
		}
	}
	if c.Session.ResolveGrace < 0 {
		return fmt.Errorf("session.resolve_grace cannot be negative")
	}
	if c.Session.MaxClients < 0 {
		return fmt.Errorf("session.max_clients cannot be negative")
	}
	if c.Upstream.BaseURL != "" {
		u, err := url.Parse(c.Upstream.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream.base_url must be an absolute URL, got %q", c.Upstream.BaseURL)
		}
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if !c.Cookie.Secure {
			return fmt.Errorf("cookie.secure must be true in production (HTTPS required for secure cookies)")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	// SameSite=None requires Secure flag
	if c.Cookie.SameSite == "none" && !c.Cookie.Secure {
		return fmt.Errorf("cookie.same_site=none requires cookie.secure=true")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}
