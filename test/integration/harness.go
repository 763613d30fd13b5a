// Package integration provides a reusable test harness for end-to-end
// testing of the admin console server. It starts the full HTTP stack against
// a mock marketplace API with in-memory or miniredis-backed stores.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/bazaar/internal/audit"
	"github.com/pitabwire/bazaar/internal/cache"
	"github.com/pitabwire/bazaar/internal/capability"
	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/internal/confirm"
	"github.com/pitabwire/bazaar/internal/events"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/internal/query"
	"github.com/pitabwire/bazaar/internal/session"
	"github.com/pitabwire/bazaar/internal/transport"
	"github.com/pitabwire/bazaar/internal/views"
)

// TestSecret signs session cookies in every harness instance.
var TestSecret = strings.Repeat("integration-secret-", 2)

// TestHarness encapsulates a fully wired console instance.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	cfg    *config.Config

	// Internal components exposed for advanced test scenarios.
	Backend  *MockMarketplace
	Bus      *events.Bus
	Client   *client.Client
	Sessions *session.Manager
	Confirms *confirm.Manager
	Audit    *audit.MemoryStore
	Hub      *transport.Hub
	Metrics  *prometheus.Registry
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	backend    *MockMarketplace
	redis      *miniredis.Miniredis
	policyFile string
	tweaks     []func(*config.Config)
}

// WithBackend shares an existing mock marketplace between instances.
func WithBackend(mb *MockMarketplace) HarnessOption {
	return func(c *harnessConfig) { c.backend = mb }
}

// WithRedis keeps sessions, confirmations, and the query cache in mr.
func WithRedis(mr *miniredis.Miniredis) HarnessOption {
	return func(c *harnessConfig) { c.redis = mr }
}

// WithPolicyFile sets the static policy YAML file for capability resolution.
func WithPolicyFile(path string) HarnessOption {
	return func(c *harnessConfig) { c.policyFile = path }
}

// WithConfig adjusts the configuration before anything is built.
func WithConfig(fn func(*config.Config)) HarnessOption {
	return func(c *harnessConfig) { c.tweaks = append(c.tweaks, fn) }
}

// NewTestHarness creates and starts a full console instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{}
	for _, opt := range opts {
		opt(hc)
	}
	if hc.backend == nil {
		hc.backend = NewMockMarketplace(t)
	}

	// Step 1: Build config.
	cfg := config.Defaults()
	cfg.Backend.BaseURL = hc.backend.URL() + "/api"
	cfg.Backend.Timeout = 2 * time.Second
	cfg.Backend.Retry = config.RetryConfig{MaxAttempts: 1, IdempotentOnly: true}
	cfg.Session.Secret = TestSecret
	cfg.Session.Secure = false
	cfg.Server.HandlerTimeout = 10 * time.Second
	cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.RateLimit.Login = config.LimitConfig{RPS: 50, Burst: 50}
	cfg.Capability.StaticPolicyFile = hc.policyFile
	for _, fn := range hc.tweaks {
		fn(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid harness config: %v", err)
	}

	h := &TestHarness{
		t:       t,
		cfg:     cfg,
		Backend: hc.backend,
		Bus:     events.NewBus(),
		Metrics: prometheus.NewRegistry(),
	}
	metrics := observability.InitMetrics(h.Metrics)

	// Step 2: Build stores.
	var (
		sessionStore session.Store = session.NewMemoryStore()
		confirmStore confirm.Store = confirm.NewMemoryStore()
		cacheStore   cache.Store   = cache.NewMemoryStore(cfg.Cache.MaxEntries)
	)
	if hc.redis != nil {
		rdb := redis.NewClient(&redis.Options{Addr: hc.redis.Addr()})
		t.Cleanup(func() { rdb.Close() })
		sessionStore = session.NewRedisStore(rdb, cfg.Session.Store.KeyPrefix)
		confirmStore = confirm.NewRedisStore(rdb, cfg.Confirmations.Store.KeyPrefix)
		cacheStore = cache.NewRedisStore(rdb, cfg.Cache.Store.KeyPrefix)
	}
	h.Audit = audit.NewMemoryStore(1000)

	// Step 3: Backend client, cache, and tracker.
	var err error
	h.Client, err = client.New(cfg.Backend, client.WithNotifier(h.Bus), client.WithMetrics(metrics))
	if err != nil {
		t.Fatalf("backend client: %v", err)
	}
	qc := cache.New(cacheStore, cfg.Cache.TTL, cache.WithNotifier(h.Bus), cache.WithMetrics(metrics))
	tracker := query.NewTracker(query.WithMetrics(metrics))

	// Step 4: Capabilities and sessions.
	evaluator, err := capability.NewStaticPolicyEvaluator(hc.policyFile)
	if err != nil {
		t.Fatalf("load policy file: %v", err)
	}
	resolver := capability.NewResolver(evaluator, 0) // no caching in tests

	codec, err := session.NewCodec(cfg.Session.Secret)
	if err != nil {
		t.Fatalf("session codec: %v", err)
	}
	h.Sessions = session.NewManager(cfg.Session, sessionStore, codec,
		session.WithTracker(tracker),
		session.WithCapabilities(resolver),
		session.WithMetrics(metrics),
	)
	t.Cleanup(h.Sessions.Watch(h.Bus))

	// Step 5: Confirmations and views.
	h.Confirms = confirm.NewManager(confirmStore, cfg.Confirmations.TTL,
		confirm.WithAudit(h.Audit),
		confirm.WithMetrics(metrics),
	)
	account := client.NewAccount(h.Client, qc)
	registry := views.NewRegistry(client.NewResources(h.Client, qc), account, tracker,
		views.WithAudit(h.Audit),
		views.WithPageSize(cfg.Views.PageSize),
	)

	// Step 6: Event hub and login limiter.
	h.Hub = transport.NewHub(cfg.Server.CORS.AllowedOrigins, transport.WithHubMetrics(metrics))
	t.Cleanup(h.Hub.Attach(h.Bus))
	limiter := transport.NewRateLimiter(cfg.RateLimit, metrics)
	t.Cleanup(limiter.Stop)

	// Step 7: Build router and start the test server.
	router := transport.NewRouter(transport.Dependencies{
		Config:        cfg,
		Metrics:       metrics,
		Gatherer:      h.Metrics,
		Sessions:      h.Sessions,
		Capabilities:  resolver,
		Account:       account,
		Views:         registry,
		Confirmations: h.Confirms,
		Hub:           h.Hub,
		LoginLimiter:  limiter,
		Readiness: observability.ReadinessChecks{
			ViewsRegistered:   func() bool { return len(registry.Views()) > 0 },
			Backend:           h.Client,
			SessionStore:      h.Sessions,
			QueryCache:        qc,
			ConfirmationStore: h.Confirms,
			AuditStore:        h.Audit,
		},
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.Hub.Close()
		h.server.Close()
	})
	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Config returns the configuration the instance was built with.
func (h *TestHarness) Config() *config.Config {
	return h.cfg
}

// --- Browser sessions ---

// Browser is an HTTP client with its own cookie jar, standing in for one
// signed-in console tab.
type Browser struct {
	h    *TestHarness
	http *http.Client
	base string
}

// NewBrowser returns a browser with an empty cookie jar.
func (h *TestHarness) NewBrowser() *Browser {
	h.t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		h.t.Fatalf("cookie jar: %v", err)
	}
	return &Browser{
		h:    h,
		base: h.server.URL,
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// On points the browser at another instance while keeping its cookies.
func (b *Browser) On(other *TestHarness) *Browser {
	return &Browser{h: other, http: b.http, base: other.server.URL}
}

// Cookie returns the current session cookie, or nil.
func (b *Browser) Cookie() *http.Cookie {
	req, _ := http.NewRequest(http.MethodGet, b.base, nil)
	for _, c := range b.http.Jar.Cookies(req.URL) {
		if c.Name == b.h.cfg.Session.CookieName {
			return c
		}
	}
	return nil
}

// Login signs in through the console after queueing answer as the
// marketplace login response.
func (b *Browser) Login(answer any) *http.Response {
	b.h.t.Helper()
	b.h.Backend.On("POST", "admin/auth/login").RespondWith(http.StatusOK, answer)
	return b.POST("/ui/auth/login", map[string]string{"email": "ada@example.com", "password": "secret1"})
}

// MustLogin signs in and fails the test unless the console accepts it.
func (b *Browser) MustLogin(answer any) {
	b.h.t.Helper()
	resp := b.Login(answer)
	AssertStatus(b.h.t, resp, http.StatusOK)
	resp.Body.Close()
}

// GET performs a GET request.
func (b *Browser) GET(path string) *http.Response {
	b.h.t.Helper()
	return b.Do(http.MethodGet, path, nil, nil)
}

// POST performs a POST request with a JSON body.
func (b *Browser) POST(path string, body any) *http.Response {
	b.h.t.Helper()
	return b.Do(http.MethodPost, path, body, nil)
}

// PUT performs a PUT request with a JSON body.
func (b *Browser) PUT(path string, body any) *http.Response {
	b.h.t.Helper()
	return b.Do(http.MethodPut, path, body, nil)
}

// DELETE performs a DELETE request.
func (b *Browser) DELETE(path string) *http.Response {
	b.h.t.Helper()
	return b.Do(http.MethodDelete, path, nil, nil)
}

// Do performs a request with optional extra headers.
func (b *Browser) Do(method, path string, body any, headers map[string]string) *http.Response {
	b.h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			b.h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, b.base+path, bodyReader)
	if err != nil {
		b.h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		b.h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// --- Response helpers ---

// ParseJSON reads the response body and unmarshals it into target.
func ParseJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks the status and parses the body.
func AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	ParseJSON(t, resp, target)
}

// --- Fixtures ---

// AdminLogin is the marketplace answer for an admin sign-in.
func AdminLogin() map[string]any {
	return map[string]any{"data": map[string]any{
		"token": "backend-admin-token",
		"admin": map[string]any{
			"_id": "a1", "email": "ada@example.com",
			"firstname": "Ada", "lastname": "Lovelace", "role": "admin",
		},
	}}
}

// SubadminLogin is the marketplace answer for a subadmin sign-in.
func SubadminLogin() map[string]any {
	return map[string]any{"data": map[string]any{
		"token": "backend-subadmin-token",
		"admin": map[string]any{
			"_id": "s1", "email": "sam@example.com",
			"firstname": "Sam", "lastname": "Ward", "role": "subadmin",
		},
	}}
}

// ProductFixture returns a marketplace product record.
func ProductFixture(id, name, status string) map[string]any {
	return map[string]any{
		"_id":    id,
		"name":   name,
		"status": status,
		"price":  1250,
		"stock":  4,
		"vendor": map[string]any{"_id": "v1", "businessName": "Lamp Works"},
	}
}

// ProductPage wraps products in the marketplace list envelope.
func ProductPage(total int, products ...map[string]any) map[string]any {
	items := make([]any, len(products))
	for i, p := range products {
		items[i] = p
	}
	return map[string]any{"data": map[string]any{"products": items, "totalProducts": total}}
}
