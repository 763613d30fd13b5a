package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/pitabwire/bazaar/model"
)

func TestHarness_Startup(t *testing.T) {
	h := NewTestHarness(t)
	resp := h.NewBrowser().GET("/ui/health")
	AssertStatus(t, resp, http.StatusOK)
}

func TestHarness_HealthEndpoints(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()

	t.Run("health", func(t *testing.T) {
		var body map[string]string
		AssertJSON(t, b.GET("/ui/health"), http.StatusOK, &body)
		if body["status"] != "ok" {
			t.Errorf("health status = %q, want ok", body["status"])
		}
	})

	t.Run("ready", func(t *testing.T) {
		AssertStatus(t, b.GET("/ui/ready"), http.StatusOK)
	})

	t.Run("metrics", func(t *testing.T) {
		resp := b.GET("/metrics")
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(data), "bazaar_http_requests_total") {
			t.Error("metrics output does not contain request counters")
		}
	})
}

func TestHarness_AuthenticationRequired(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()

	for _, path := range []string{"/ui/navigation", "/ui/dashboard", "/ui/views/products", "/ui/profile"} {
		t.Run(path, func(t *testing.T) {
			var body struct {
				Error model.ErrorEnvelope `json:"error"`
			}
			AssertJSON(t, b.GET(path), http.StatusUnauthorized, &body)
			if body.Error.RecoveryRoute != model.LoginRoute {
				t.Errorf("recovery_route = %q, want %q", body.Error.RecoveryRoute, model.LoginRoute)
			}
		})
	}
}
