package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MockMarketplace is a configurable HTTP test server that stands in for the
// marketplace admin API. Responses are configured per "METHOD /path" route
// and every request is recorded for later assertion.
type MockMarketplace struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.RWMutex
	routes   map[string]*routeConfig
	received map[string][]*RecordedRequest
}

// RecordedRequest captures the details of a request received by the mock.
type RecordedRequest struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     http.Header
	Body        map[string]any
	ReceivedAt  time.Time
}

// routeConfig holds the queued responses for a single route. The last
// response repeats once the queue is exhausted.
type routeConfig struct {
	mu        sync.Mutex
	responses []*mockResponse
	current   int
}

type mockResponse struct {
	status    int
	body      any
	delay     time.Duration
	connError bool
}

// RouteMock is a builder for configuring the responses of one route.
type RouteMock struct {
	backend *MockMarketplace
	key     string
}

// NewMockMarketplace starts a mock marketplace API. Its admin API lives under
// URL()+"/api".
func NewMockMarketplace(t *testing.T) *MockMarketplace {
	t.Helper()
	mb := &MockMarketplace{
		t:        t,
		routes:   make(map[string]*routeConfig),
		received: make(map[string][]*RecordedRequest),
	}
	mb.server = httptest.NewServer(http.HandlerFunc(mb.handle))
	t.Cleanup(mb.server.Close)
	return mb
}

// URL returns the base URL of the mock server.
func (mb *MockMarketplace) URL() string {
	return mb.server.URL
}

// On returns a builder for the route "method path", where path is relative
// to the admin API root (for example "admin/products").
func (mb *MockMarketplace) On(method, path string) *RouteMock {
	return &RouteMock{backend: mb, key: routeKey(method, path)}
}

func routeKey(method, path string) string {
	return method + " /api/" + path
}

// RespondWith queues a JSON response. A string body is sent verbatim.
func (rm *RouteMock) RespondWith(status int, body any) *RouteMock {
	rm.backend.addResponse(rm.key, &mockResponse{status: status, body: body})
	return rm
}

// RespondWithDelay queues a delayed response to simulate a slow backend.
func (rm *RouteMock) RespondWithDelay(delay time.Duration, status int, body any) *RouteMock {
	rm.backend.addResponse(rm.key, &mockResponse{status: status, body: body, delay: delay})
	return rm
}

// RespondWithConnectionError queues a response that drops the connection.
func (rm *RouteMock) RespondWithConnectionError() *RouteMock {
	rm.backend.addResponse(rm.key, &mockResponse{connError: true})
	return rm
}

func (mb *MockMarketplace) addResponse(key string, resp *mockResponse) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	cfg, ok := mb.routes[key]
	if !ok {
		cfg = &routeConfig{}
		mb.routes[key] = cfg
	}
	cfg.responses = append(cfg.responses, resp)
}

func (mb *MockMarketplace) handle(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	rec := &RecordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryParams: make(map[string]string),
		Headers:     r.Header.Clone(),
		ReceivedAt:  time.Now(),
	}
	for k, values := range r.URL.Query() {
		if len(values) > 0 {
			rec.QueryParams[k] = values[0]
		}
	}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			rec.Body = parsed
		}
	}

	mb.mu.Lock()
	mb.received[key] = append(mb.received[key], rec)
	mb.mu.Unlock()

	resp := mb.nextResponse(key)
	w.Header().Set("Content-Type", "application/json")
	if resp == nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not found"})
		return
	}

	if resp.connError {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, _ := hj.Hijack(); conn != nil {
				conn.Close()
			}
		}
		return
	}

	if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-r.Context().Done():
			return
		}
	}

	w.WriteHeader(resp.status)
	switch b := resp.body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(w, b)
	default:
		_ = json.NewEncoder(w).Encode(b)
	}
}

func (mb *MockMarketplace) nextResponse(key string) *mockResponse {
	mb.mu.RLock()
	cfg, ok := mb.routes[key]
	mb.mu.RUnlock()
	if !ok {
		return nil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	if len(cfg.responses) == 0 {
		return nil
	}
	idx := cfg.current
	if idx >= len(cfg.responses) {
		idx = len(cfg.responses) - 1
	} else {
		cfg.current++
	}
	return cfg.responses[idx]
}

// Calls returns how many times the route was requested.
func (mb *MockMarketplace) Calls(method, path string) int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return len(mb.received[routeKey(method, path)])
}

// AssertCalled verifies that the route was requested the expected number of
// times.
func (mb *MockMarketplace) AssertCalled(t *testing.T, method, path string, expected int) {
	t.Helper()
	if actual := mb.Calls(method, path); actual != expected {
		t.Errorf("mock marketplace: %s %s called %d times, want %d", method, path, actual, expected)
	}
}

// AssertNotCalled verifies that the route was never requested.
func (mb *MockMarketplace) AssertNotCalled(t *testing.T, method, path string) {
	t.Helper()
	mb.AssertCalled(t, method, path, 0)
}

// LastRequest returns the last request received on the route, or nil.
func (mb *MockMarketplace) LastRequest(method, path string) *RecordedRequest {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	reqs := mb.received[routeKey(method, path)]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// Reset clears every configured response and recorded request.
func (mb *MockMarketplace) Reset() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.routes = make(map[string]*routeConfig)
	mb.received = make(map[string][]*RecordedRequest)
}

// Stop shuts the mock down so later requests are refused.
func (mb *MockMarketplace) Stop() {
	mb.server.Close()
}
