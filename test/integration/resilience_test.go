package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/model"
)

type errorBody struct {
	Error model.ErrorEnvelope `json:"error"`
}

func TestResilience_backendTimeout(t *testing.T) {
	h := NewTestHarness(t, WithConfig(func(cfg *config.Config) {
		cfg.Backend.Timeout = 200 * time.Millisecond
	}))
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())
	h.Backend.On("GET", "admin/orders").RespondWithDelay(2*time.Second, http.StatusOK, map[string]any{})

	var body errorBody
	AssertJSON(t, b.GET("/ui/views/orders"), http.StatusGatewayTimeout, &body)
	assert.Equal(t, model.ErrBackendTimeout, body.Error.Code)

	// A timeout does not end the session.
	AssertStatus(t, b.GET("/ui/navigation"), http.StatusOK)
}

func TestResilience_backendDropsConnection(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())
	h.Backend.On("GET", "admin/payouts").RespondWithConnectionError()

	var body errorBody
	AssertJSON(t, b.GET("/ui/views/payouts"), http.StatusBadGateway, &body)
	assert.Equal(t, model.ErrBackendUnavailable, body.Error.Code)
}

func TestResilience_backendDown(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())
	h.Backend.Stop()

	var body errorBody
	AssertJSON(t, b.GET("/ui/views/users"), http.StatusBadGateway, &body)
	assert.Equal(t, model.ErrBackendUnavailable, body.Error.Code)
}

func TestResilience_circuitBreakerOpens(t *testing.T) {
	h := NewTestHarness(t, WithConfig(func(cfg *config.Config) {
		cfg.Backend.CircuitBreaker.FailureThreshold = 2
		cfg.Backend.CircuitBreaker.Timeout = time.Minute
	}))
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())
	h.Backend.On("GET", "admin/vendors").RespondWith(http.StatusInternalServerError, map[string]any{"message": "boom"})

	AssertStatus(t, b.GET("/ui/views/vendors"), http.StatusBadGateway)
	AssertStatus(t, b.GET("/ui/views/vendors?page=2"), http.StatusBadGateway)

	// The breaker is open: the backend is no longer called.
	AssertStatus(t, b.GET("/ui/views/vendors?page=3"), http.StatusBadGateway)
	h.Backend.AssertCalled(t, "GET", "admin/vendors", 2)

	var ready struct {
		Status string `json:"status"`
	}
	resp := b.GET("/ui/ready")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	ParseJSON(t, resp, &ready)
	assert.NotEqual(t, "ready", ready.Status)
}

func TestResilience_backendErrorDoesNotLeakDetails(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())
	h.Backend.On("GET", "admin/users").RespondWith(http.StatusInternalServerError,
		`{"message":"pq: relation \"users\" does not exist","stack":"at db.go:42"}`)

	var body errorBody
	AssertJSON(t, b.GET("/ui/views/users"), http.StatusBadGateway, &body)
	assert.NotContains(t, body.Error.Message, "pq:")
	assert.NotContains(t, body.Error.Message, "db.go")
}
