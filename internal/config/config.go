// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Session       SessionConfig       `yaml:"session"`
	Cache         QueryCacheConfig    `yaml:"cache"`
	Confirmations ConfirmationConfig  `yaml:"confirmations"`
	Audit         AuditConfig         `yaml:"audit"`
	Capability    CapabilityConfig    `yaml:"capability"`
	Views         ViewsConfig         `yaml:"views"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// BackendConfig describes the marketplace REST backend.
type BackendConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	Paths          BackendPaths         `yaml:"paths"`
}

// BackendPaths are the backend endpoints that are not plain resource
// collections. They are relative to BaseURL.
type BackendPaths struct {
	Login          string `yaml:"login"`
	ForgotPassword string `yaml:"forgot_password"`
	VerifyOTP      string `yaml:"verify_otp"`
	Profile        string `yaml:"profile"`
	Dashboard      string `yaml:"dashboard"`
}

// CircuitBreakerConfig describes circuit breaker settings.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// RetryConfig describes retry settings for backend calls.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	IdempotentOnly    bool          `yaml:"idempotent_only"`
}

// SessionConfig describes console sessions and the session cookie.
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	SecretEnv  string        `yaml:"secret_env"`
	Secret     string        `yaml:"-"`
	TTL        time.Duration `yaml:"ttl"`
	Secure     bool          `yaml:"secure"`
	Store      StoreConfig   `yaml:"store"`
}

// StoreConfig selects a key/value store backend.
type StoreConfig struct {
	Driver    string `yaml:"driver"`
	AddrEnv   string `yaml:"addr_env"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// QueryCacheConfig describes the response cache of the data access layer.
type QueryCacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Store      StoreConfig   `yaml:"store"`
}

// ConfirmationConfig describes pending confirmation storage.
type ConfirmationConfig struct {
	TTL   time.Duration `yaml:"ttl"`
	Store StoreConfig   `yaml:"store"`
}

// AuditConfig describes the audit trail of confirmed actions.
type AuditConfig struct {
	Enabled bool           `yaml:"enabled"`
	Store   DatabaseConfig `yaml:"store"`
}

// DatabaseConfig describes a SQL store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CapabilityConfig describes authorization settings.
type CapabilityConfig struct {
	StaticPolicyFile string      `yaml:"static_policy_file"`
	Cache            CacheConfig `yaml:"cache"`
}

// CacheConfig describes in-process cache settings.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// ViewsConfig describes resource view defaults.
type ViewsConfig struct {
	PageSize int `yaml:"page_size"`
}

// RateLimitConfig describes request throttling. Client addresses are read
// from X-Real-IP or X-Forwarded-For only when the connecting peer is one of
// TrustedProxies (addresses or CIDR ranges).
type RateLimitConfig struct {
	Login          LimitConfig `yaml:"login"`
	TrustedProxies []string    `yaml:"trusted_proxies"`
}

// Proxies parses TrustedProxies. Bare addresses become single-host
// prefixes; entries that do not parse are skipped (Validate reports them).
func (c RateLimitConfig) Proxies() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, s := range c.TrustedProxies {
		if p, err := parseProxy(s); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func parseProxy(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		return p.Masked(), err
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

// LimitConfig is a token bucket: RPS tokens per second, Burst capacity.
type LimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id"},
				MaxAge:         86400,
			},
		},
		Backend: BackendConfig{
			Timeout: 10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:       2,
				BackoffInitial:    100 * time.Millisecond,
				BackoffMultiplier: 2,
				BackoffMax:        2 * time.Second,
				IdempotentOnly:    true,
			},
			Paths: BackendPaths{
				Login:          "admin/auth/login",
				ForgotPassword: "admin/auth/forgot-password",
				VerifyOTP:      "admin/auth/verify-otp",
				Profile:        "admin/profile",
				Dashboard:      "admin/dashboard",
			},
		},
		Session: SessionConfig{
			CookieName: "bazaar_session",
			SecretEnv:  "BAZAAR_SESSION_SECRET",
			TTL:        12 * time.Hour,
			Secure:     true,
			Store:      StoreConfig{Driver: DriverMemory, AddrEnv: "BAZAAR_REDIS_ADDR", KeyPrefix: "session:"},
		},
		Cache: QueryCacheConfig{
			TTL:        30 * time.Second,
			MaxEntries: 5000,
			Store:      StoreConfig{Driver: DriverMemory, AddrEnv: "BAZAAR_REDIS_ADDR", KeyPrefix: "qc:"},
		},
		Confirmations: ConfirmationConfig{
			TTL:   5 * time.Minute,
			Store: StoreConfig{Driver: DriverMemory, AddrEnv: "BAZAAR_REDIS_ADDR", KeyPrefix: "confirm:"},
		},
		Audit: AuditConfig{
			Enabled: true,
			Store: DatabaseConfig{
				Driver:          DriverMemory,
				DSNEnv:          "BAZAAR_AUDIT_DSN",
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Capability: CapabilityConfig{
			Cache: CacheConfig{
				TTL:        5 * time.Minute,
				MaxEntries: 10000,
			},
		},
		Views: ViewsConfig{
			PageSize: 10,
		},
		RateLimit: RateLimitConfig{
			Login: LimitConfig{RPS: 0.2, Burst: 5},
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment without overwriting variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: loading env file %s: %w", path, err)
	}
	return nil
}

// Load reads a YAML config file, applies environment variable overrides,
// resolves secrets, and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	resolveSecrets(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "backend.base_url must be an absolute URL")
	}
	if c.Session.Secret == "" {
		errs = append(errs, fmt.Sprintf("session secret is required (set %s)", c.Session.SecretEnv))
	} else if len(c.Session.Secret) < 32 {
		errs = append(errs, "session secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "session.ttl must be positive")
	}
	if c.Views.PageSize < 1 {
		errs = append(errs, "views.page_size must be positive")
	}
	for name, store := range map[string]StoreConfig{
		"session.store":       c.Session.Store,
		"cache.store":         c.Cache.Store,
		"confirmations.store": c.Confirmations.Store,
	} {
		switch store.Driver {
		case DriverMemory, DriverRedis, "":
		default:
			errs = append(errs, fmt.Sprintf("%s.driver %q is not supported (memory, redis)", name, store.Driver))
		}
	}
	for _, p := range c.RateLimit.TrustedProxies {
		if _, err := parseProxy(p); err != nil {
			errs = append(errs, fmt.Sprintf("rate_limit.trusted_proxies: %q is not an address or CIDR", p))
		}
	}
	switch c.Audit.Store.Driver {
	case DriverMemory, DriverPostgres, "":
	default:
		errs = append(errs, fmt.Sprintf("audit.store.driver %q is not supported (memory, postgres)", c.Audit.Store.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads BAZAAR_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BAZAAR_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BAZAAR_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("BAZAAR_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("BAZAAR_SESSION_STORE_DRIVER"); v != "" {
		cfg.Session.Store.Driver = v
	}
	if v := os.Getenv("BAZAAR_CACHE_STORE_DRIVER"); v != "" {
		cfg.Cache.Store.Driver = v
	}
	if v := os.Getenv("BAZAAR_AUDIT_STORE_DRIVER"); v != "" {
		cfg.Audit.Store.Driver = v
	}
	if v := os.Getenv("BAZAAR_TRUSTED_PROXIES"); v != "" {
		cfg.RateLimit.TrustedProxies = strings.Split(v, ",")
	}
}

func resolveSecrets(cfg *Config) {
	if cfg.Session.Secret == "" && cfg.Session.SecretEnv != "" {
		cfg.Session.Secret = os.Getenv(cfg.Session.SecretEnv)
	}
}
