package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	"github.com/pitabwire/bazaar/internal/views"
	"github.com/pitabwire/bazaar/model"
)

// --- Test helpers ---

// fakeMarketplace answers "METHOD path" with a canned body and records
// request bodies.
type fakeMarketplace struct {
	mu     sync.Mutex
	routes map[string]string
	status map[string]int
	bodies map[string]map[string]any
	auth   map[string]string
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{
		routes: map[string]string{},
		status: map[string]int{},
		bodies: map[string]map[string]any{},
		auth:   map[string]string{},
	}
}

func (b *fakeMarketplace) on(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = body
	b.status[method+" "+path] = status
}

func (b *fakeMarketplace) body(method, path string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[method+" "+path]
}

func (b *fakeMarketplace) authorization(method, path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth[method+" "+path]
}

func (b *fakeMarketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.bodies[key] = body
	b.auth[key] = r.Header.Get("Authorization")
	resp, ok := b.routes[key]
	status := b.status[key]
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
		return
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

type harness struct {
	backend  *fakeMarketplace
	router   http.Handler
	sessions *session.Manager
	bus      *events.Bus
	audit    *audit.MemoryStore
	hub      *Hub
	cfg      *config.Config
}

func newHarness(t *testing.T, tweak ...func(*config.Config)) *harness {
	t.Helper()
	backend := newFakeMarketplace()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.Backend.BaseURL = srv.URL + "/api"
	cfg.Backend.Retry = config.RetryConfig{MaxAttempts: 1}
	cfg.Session.Secure = false
	cfg.RateLimit.Login = config.LimitConfig{RPS: 100, Burst: 100}
	cfg.Server.HandlerTimeout = 5 * time.Second
	for _, fn := range tweak {
		fn(cfg)
	}

	bus := events.NewBus()
	reg := prometheus.NewRegistry()
	metrics := observability.InitMetrics(reg)

	c, err := client.New(cfg.Backend, client.WithNotifier(bus))
	require.NoError(t, err)
	qc := cache.New(cache.NewMemoryStore(0), time.Minute)
	tracker := query.NewTracker()

	eval, err := capability.NewStaticPolicyEvaluator("")
	require.NoError(t, err)
	resolver := capability.NewResolver(eval, time.Minute)

	codec, err := session.NewCodec(strings.Repeat("s", session.MinSecretLength))
	require.NoError(t, err)
	sessions := session.NewManager(cfg.Session, session.NewMemoryStore(), codec,
		session.WithTracker(tracker),
		session.WithCapabilities(resolver),
	)
	t.Cleanup(sessions.Watch(bus))

	auditStore := audit.NewMemoryStore(100)
	confirms := confirm.NewManager(confirm.NewMemoryStore(), time.Minute, confirm.WithAudit(auditStore))
	account := client.NewAccount(c, qc)
	registry := views.NewRegistry(client.NewResources(c, qc), account, tracker, views.WithAudit(auditStore))

	hub := NewHub(nil, WithHubMetrics(metrics))
	t.Cleanup(hub.Attach(bus))
	t.Cleanup(hub.Close)

	limiter := NewRateLimiter(cfg.RateLimit, metrics)
	t.Cleanup(limiter.Stop)

	router := NewRouter(Dependencies{
		Config:        cfg,
		Metrics:       metrics,
		Gatherer:      reg,
		Sessions:      sessions,
		Capabilities:  resolver,
		Account:       account,
		Views:         registry,
		Confirmations: confirms,
		Hub:           hub,
		LoginLimiter:  limiter,
		Readiness: observability.ReadinessChecks{
			ViewsRegistered: func() bool { return len(registry.Views()) > 0 },
			SessionStore:    sessions,
		},
	})
	return &harness{
		backend:  backend,
		router:   router,
		sessions: sessions,
		bus:      bus,
		audit:    auditStore,
		hub:      hub,
		cfg:      cfg,
	}
}

const adminLogin = `{"data":{"token":"backend-token","admin":{"_id":"a1","email":"ada@example.com","firstname":"Ada","lastname":"Lovelace","role":"admin"}}}`

func (h *harness) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// login signs in with the given backend answer and returns the session
// cookie.
func (h *harness) login(t *testing.T, answer string) *http.Cookie {
	t.Helper()
	h.backend.on("POST", "/api/admin/auth/login", 200, answer)
	w := h.do("POST", "/ui/auth/login", map[string]string{"email": "ada@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c := sessionCookie(w, h.cfg.Session.CookieName)
	require.NotNil(t, c)
	return c
}

func sessionCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

// --- Login ---

func TestLogin_startsSession(t *testing.T) {
	h := newHarness(t)
	h.backend.on("POST", "/api/admin/auth/login", 200, adminLogin)

	w := h.do("POST", "/ui/auth/login", map[string]string{"email": " ada@example.com ", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c := sessionCookie(w, "bazaar_session")
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, map[string]any{"email": "ada@example.com", "password": "secret1"},
		h.backend.body("POST", "/api/admin/auth/login"))

	resp := decodeJSON[sessionResponse](t, w)
	assert.Equal(t, "a1", resp.SubjectID)
	assert.Equal(t, "Ada Lovelace", resp.Name)
	assert.Equal(t, []string{"admin"}, resp.Roles)
	assert.Equal(t, c.Value, resp.Token)
}

func TestLogin_validation(t *testing.T) {
	h := newHarness(t)
	w := h.do("POST", "/ui/auth/login", map[string]string{"email": "not-an-email", "password": "123"})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, model.ErrValidationError, env.Code)
	fields := map[string]string{}
	for _, d := range env.Details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "Invalid email address", fields["email"])
	assert.Equal(t, "Password must be at least 6 characters", fields["password"])
}

func TestLogin_invalidJSON(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest("POST", "/ui/auth/login", strings.NewReader("{"))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_backendRejects(t *testing.T) {
	h := newHarness(t)
	h.backend.on("POST", "/api/admin/auth/login", 401, `{"message":"Invalid credentials"}`)

	w := h.do("POST", "/ui/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong-pw"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decodeEnvelope(t, w).Message)
}

func TestLogin_fetchesProfileWhenNotEmbedded(t *testing.T) {
	h := newHarness(t)
	h.backend.on("GET", "/api/admin/profile", 200, `{"data":{"_id":"s9","email":"sam@example.com","firstname":"Sam"}}`)
	c := h.login(t, `{"token":"tok-2"}`)

	assert.Equal(t, "Bearer tok-2", h.backend.authorization("GET", "/api/admin/profile"))

	// No backend role maps to the subadmin grant, which excludes the team.
	w := h.do("GET", "/ui/views/team", nil, c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin_rateLimited(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.RateLimit.Login = config.LimitConfig{RPS: 0.001, Burst: 1}
	})
	h.backend.on("POST", "/api/admin/auth/login", 401, `{}`)
	body := map[string]string{"email": "ada@example.com", "password": "secret1"}

	first := h.do("POST", "/ui/auth/login", body)
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	second := h.do("POST", "/ui/auth/login", body)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestForgotPasswordAndVerify(t *testing.T) {
	h := newHarness(t)
	h.backend.on("POST", "/api/admin/auth/forgot-password", 200, `{"message":"Code sent"}`)
	h.backend.on("POST", "/api/admin/auth/verify-otp", 200, `{}`)

	w := h.do("POST", "/ui/auth/forgot-password", map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Code sent", decodeJSON[model.CommandResponse](t, w).Message)

	w = h.do("POST", "/ui/auth/verify-otp", map[string]string{"email": "ada@example.com", "otp": "12ab"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do("POST", "/ui/auth/verify-otp", map[string]string{"email": "ada@example.com", "otp": "123456"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[model.CommandResponse](t, w)
	assert.Equal(t, "Code verified", resp.Message)
	assert.Equal(t, map[string]any{"email": "ada@example.com", "otp": "123456"},
		h.backend.body("POST", "/api/admin/auth/verify-otp"))
}

// --- Sessions ---

func TestAuthenticated_requiresSession(t *testing.T) {
	h := newHarness(t)
	w := h.do("GET", "/ui/navigation", nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, model.LoginRoute, decodeEnvelope(t, w).RecoveryRoute)
}

func TestAuthenticated_tamperedCookieIsCleared(t *testing.T) {
	h := newHarness(t)
	w := h.do("GET", "/ui/navigation", nil, &http.Cookie{Name: "bazaar_session", Value: "forged"})

	require.Equal(t, http.StatusUnauthorized, w.Code)
	c := sessionCookie(w, "bazaar_session")
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestAuthenticated_bearerToken(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)

	req := httptest.NewRequest("GET", "/ui/navigation", nil)
	req.Header.Set("Authorization", "Bearer "+c.Value)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	nav := decodeJSON[model.NavigationTree](t, w)
	require.NotEmpty(t, nav.Items)
	assert.Equal(t, "logout", nav.Items[len(nav.Items)-1].ID)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)

	w := h.do("POST", "/ui/auth/logout", nil, c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, -1, sessionCookie(w, "bazaar_session").MaxAge)

	w = h.do("GET", "/ui/navigation", nil, c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBackendUnauthorized_revokesSession(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	h.backend.on("GET", "/api/admin/products", 401, `{"message":"jwt expired"}`)

	w := h.do("GET", "/ui/views/products", nil, c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, -1, sessionCookie(w, "bazaar_session").MaxAge)
	assert.Equal(t, "Bearer backend-token", h.backend.authorization("GET", "/api/admin/products"))

	w = h.do("GET", "/ui/navigation", nil, c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Views ---

func TestList_products(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	h.backend.on("GET", "/api/admin/products", 200,
		`{"data":{"products":[{"_id":"p1","name":"Desk Lamp","status":"pending"}],"totalProducts":1}}`)

	w := h.do("GET", "/ui/views/products?q=lamp", nil, c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	lv := decodeJSON[model.ListView](t, w)
	assert.Equal(t, "products", lv.Resource)
	assert.Equal(t, model.StateLoaded, lv.State)
	require.Len(t, lv.Table.Rows, 1)
	assert.Equal(t, "lamp", lv.Filter.Search)
}

func TestList_unknownResource(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	w := h.do("GET", "/ui/views/widgets", nil, c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetail_notFound(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)

	w := h.do("GET", "/ui/views/vendors/missing", nil, c)
	require.Equal(t, http.StatusNotFound, w.Code)
	dv := decodeJSON[model.DetailView](t, w)
	assert.False(t, dv.Found)
	assert.Equal(t, "Vendor not found", dv.Title)
}

func TestCreateCategory(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	h.backend.on("POST", "/api/admin/categories", 201, `{"data":{"_id":"c9","name":"Garden"}}`)

	w := h.do("POST", "/ui/views/categories", map[string]string{"name": "G"}, c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do("POST", "/ui/views/categories", map[string]string{"name": "Garden"}, c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "c9", decodeJSON[model.CommandResponse](t, w).Result["id"])
}

func TestCreate_notCreatable(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	w := h.do("POST", "/ui/views/orders", map[string]string{"name": "x"}, c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	h.backend.on("GET", "/api/admin/profile", 200, `{"data":{"_id":"a1","email":"ada@example.com","firstname":"Ada","role":"admin","isActive":true}}`)

	w := h.do("GET", "/ui/profile", nil, c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "My Profile", decodeJSON[model.DetailView](t, w).Title)
}

// --- Confirmations ---

func openConfirmation(t *testing.T, h *harness, c *http.Cookie, path string) model.ConfirmationDescriptor {
	t.Helper()
	w := h.do("POST", path, nil, c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeJSON[model.ConfirmationDescriptor](t, w)
}

func TestConfirmation_deleteFlow(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	h.backend.on("DELETE", "/api/admin/categories/c1", 200, `{}`)

	cd := openConfirmation(t, h, c, "/ui/views/categories/c1/actions/delete")
	assert.Equal(t, "danger", cd.Style)
	assert.Nil(t, h.backend.body("DELETE", "/api/admin/categories/c1"), "nothing is sent before confirming")

	w := h.do("POST", cd.ConfirmURL, nil, c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeJSON[model.CommandResponse](t, w).Success)

	entries, total, err := h.audit.List(t.Context(), audit.Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, audit.OutcomeSucceeded, entries[0].Outcome)
	assert.Equal(t, "ada@example.com", entries[0].Email)

	w = h.do("POST", cd.ConfirmURL, nil, c)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestConfirmation_reasonRequired(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	h.backend.on("GET", "/api/admin/vendors/v1", 200, `{"data":{"vendor":{"_id":"v1","status":"pending"}}}`)
	h.backend.on("PUT", "/api/admin/vendors/v1/approval", 200, `{}`)

	cd := openConfirmation(t, h, c, "/ui/views/vendors/v1/actions/reject")
	require.True(t, cd.RequiresReason)

	w := h.do("POST", cd.ConfirmURL, map[string]string{"reason": "  "}, c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "reason", decodeEnvelope(t, w).Details[0].Field)

	w = h.do("POST", cd.ConfirmURL, map[string]string{"reason": "Incomplete documents"}, c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Incomplete documents", h.backend.body("PUT", "/api/admin/vendors/v1/approval")["reason"])
}

func TestConfirmation_actionMustMatchRecordStatus(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	h.backend.on("GET", "/api/admin/vendors/v1", 200, `{"data":{"vendor":{"_id":"v1","status":"active"}}}`)

	w := h.do("POST", "/ui/views/vendors/v1/actions/approve", nil, c)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, model.ErrConflict, decodeEnvelope(t, w).Code)
	assert.Contains(t, decodeEnvelope(t, h.do("POST", "/ui/views/vendors/v1/actions/approve", nil, c)).Message, "while the vendor is active")

	w = h.do("POST", "/ui/views/vendors/v1/actions/deactivate", nil, c)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestConfirmation_statusBoundActionOnMissingRecord(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)

	w := h.do("POST", "/ui/views/vendors/v9/actions/approve", nil, c)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}

func TestConfirmation_failureKeepsDialogOpen(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	h.backend.on("DELETE", "/api/admin/products/p1", 409, `{"message":"Product has open orders"}`)

	cd := openConfirmation(t, h, c, "/ui/views/products/p1/actions/delete")
	w := h.do("POST", cd.ConfirmURL, nil, c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Product has open orders", decodeEnvelope(t, w).Message)

	w = h.do("GET", cd.CancelURL, nil, c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeJSON[model.ConfirmationDescriptor](t, w).Busy)
}

func TestConfirmation_cancel(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)

	cd := openConfirmation(t, h, c, "/ui/views/users/u1/actions/delete")
	w := h.do("DELETE", cd.CancelURL, nil, c)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = h.do("POST", cd.ConfirmURL, nil, c)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestConfirmation_otherSessionCannotConfirm(t *testing.T) {
	h := newHarness(t)
	first := h.login(t, adminLogin)
	second := h.login(t, adminLogin)

	cd := openConfirmation(t, h, first, "/ui/views/users/u1/actions/delete")
	w := h.do("POST", cd.ConfirmURL, nil, second)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestConfirmation_forbiddenForSubadminOnTeam(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, `{"data":{"token":"t","admin":{"_id":"s1","email":"sam@example.com","role":"subadmin"}}}`)

	w := h.do("POST", "/ui/views/team/s2/actions/delete", nil, c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestConfirmation_unknownAction(t *testing.T) {
	h := newHarness(t)
	c := h.login(t, adminLogin)
	w := h.do("POST", "/ui/views/orders/o1/actions/delete", nil, c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
