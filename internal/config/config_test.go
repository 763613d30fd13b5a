package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_valid(t *testing.T) {
	t.Setenv("BAZAAR_TEST_SESSION_SECRET", testSecret)

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Backend.BaseURL != "https://api.bazaar.example.com/api/" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 8*time.Second {
		t.Errorf("Backend.Timeout = %v, want 8s", cfg.Backend.Timeout)
	}
	if cfg.Backend.CircuitBreaker.FailureThreshold != 4 {
		t.Errorf("CircuitBreaker.FailureThreshold = %d, want 4", cfg.Backend.CircuitBreaker.FailureThreshold)
	}
	// Untouched nested defaults survive a partial section.
	if cfg.Backend.CircuitBreaker.SuccessThreshold != 2 {
		t.Errorf("CircuitBreaker.SuccessThreshold = %d, want default 2", cfg.Backend.CircuitBreaker.SuccessThreshold)
	}
	if cfg.Backend.Paths.Login != "admin/auth/login" {
		t.Errorf("Backend.Paths.Login = %q, want default", cfg.Backend.Paths.Login)
	}
	if cfg.Session.Secret != testSecret {
		t.Error("Session.Secret was not resolved from secret_env")
	}
	if cfg.Session.Store.Driver != DriverRedis {
		t.Errorf("Session.Store.Driver = %q, want redis", cfg.Session.Store.Driver)
	}
	if cfg.Views.PageSize != 20 {
		t.Errorf("Views.PageSize = %d, want 20", cfg.Views.PageSize)
	}
	if cfg.Audit.Store.Driver != DriverPostgres {
		t.Errorf("Audit.Store.Driver = %q, want postgres", cfg.Audit.Store.Driver)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_missing_backend(t *testing.T) {
	t.Setenv("BAZAAR_TEST_SESSION_SECRET", testSecret)

	_, err := Load("testdata/missing_backend.yaml")
	if err == nil {
		t.Fatal("Load() without backend.base_url should return error")
	}
	if !strings.Contains(err.Error(), "backend.base_url") {
		t.Errorf("error = %v, want mention of backend.base_url", err)
	}
}

func TestLoad_unsupported_store_driver(t *testing.T) {
	t.Setenv("BAZAAR_TEST_SESSION_SECRET", testSecret)

	_, err := Load("testdata/bad_driver.yaml")
	if err == nil {
		t.Fatal("Load() with memcached driver should return error")
	}
	if !strings.Contains(err.Error(), "cache.store.driver") {
		t.Errorf("error = %v, want mention of cache.store.driver", err)
	}
}

func TestLoad_missing_secret(t *testing.T) {
	t.Setenv("BAZAAR_TEST_SESSION_SECRET", "")

	_, err := Load("testdata/valid.yaml")
	if err == nil {
		t.Fatal("Load() without a session secret should return error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Views.PageSize != 10 {
		t.Errorf("default Views.PageSize = %d, want 10", cfg.Views.PageSize)
	}
	if cfg.Capability.Cache.TTL != 5*time.Minute {
		t.Errorf("default Capability.Cache.TTL = %v, want 5m", cfg.Capability.Cache.TTL)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
	if cfg.Cache.Store.Driver != DriverMemory {
		t.Errorf("default Cache.Store.Driver = %q, want memory", cfg.Cache.Store.Driver)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BAZAAR_TEST_SESSION_SECRET", testSecret)
	t.Setenv("BAZAAR_SERVER_PORT", "3000")
	t.Setenv("BAZAAR_BACKEND_BASE_URL", "http://localhost:4000/api/")
	t.Setenv("BAZAAR_OBSERVABILITY_LOG_LEVEL", "error")
	t.Setenv("BAZAAR_CACHE_STORE_DRIVER", "redis")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Backend.BaseURL != "http://localhost:4000/api/" {
		t.Errorf("Backend.BaseURL = %q, want env override", cfg.Backend.BaseURL)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
	if cfg.Cache.Store.Driver != DriverRedis {
		t.Errorf("Cache.Store.Driver = %q, want redis (env override)", cfg.Cache.Store.Driver)
	}
}

func TestValidate_invalid_port(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.BaseURL = "https://api.bazaar.example.com/api/"
	cfg.Session.Secret = testSecret
	cfg.Server.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with port 0 should return error")
	}
}

func TestValidate_relative_base_url(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.BaseURL = "api/"
	cfg.Session.Secret = testSecret

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with relative base URL should return error")
	}
}

func TestValidate_short_secret(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.BaseURL = "https://api.bazaar.example.com/api/"
	cfg.Session.Secret = "short"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with short secret should return error")
	}
}

func TestValidate_trusted_proxies(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.BaseURL = "https://api.bazaar.example.com/api/"
	cfg.Session.Secret = testSecret
	cfg.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1", "::1", "proxy.internal"}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "proxy.internal") {
		t.Fatalf("Validate() error = %v, want one naming proxy.internal", err)
	}

	proxies := cfg.RateLimit.Proxies()
	if len(proxies) != 3 {
		t.Fatalf("Proxies() = %v, want 3 prefixes", proxies)
	}
	if got := proxies[1].String(); got != "192.0.2.1/32" {
		t.Errorf("bare address = %s, want 192.0.2.1/32", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	os.Unsetenv("BAZAAR_TEST_DOTENV_VALUE")
	t.Cleanup(func() { os.Unsetenv("BAZAAR_TEST_DOTENV_VALUE") })

	if err := LoadEnvFile("testdata/test.env"); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("BAZAAR_TEST_DOTENV_VALUE"); got != "from-dotenv" {
		t.Errorf("BAZAAR_TEST_DOTENV_VALUE = %q, want from-dotenv", got)
	}
}

func TestLoadEnvFile_missing_is_ignored(t *testing.T) {
	if err := LoadEnvFile("testdata/absent.env"); err != nil {
		t.Errorf("LoadEnvFile(missing) error = %v, want nil", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("LoadEnvFile(\"\") error = %v, want nil", err)
	}
}
