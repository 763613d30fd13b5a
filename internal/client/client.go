// Package client is the console's data access layer. It talks to the
// marketplace REST backend with the session's bearer token, guards it with a
// circuit breaker and bounded retries, maps failures to error envelopes, and
// exposes typed per-resource clients whose reads go through the query cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/model"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 10 << 20

// UnauthorizedNotifier is told about every 401/403 the backend returns.
type UnauthorizedNotifier interface {
	NotifyUnauthorized(ctx context.Context, status int)
}

// Request is a single backend call.
type Request struct {
	// Resource labels metrics and spans.
	Resource string
	Method   string
	// Path is relative to the backend base URL, e.g. "admin/categories/42".
	Path  string
	Query url.Values
	Body  any
}

// Client calls the marketplace backend.
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *CircuitBreaker
	retry    config.RetryConfig
	paths    config.BackendPaths
	notifier UnauthorizedNotifier
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithNotifier sets the receiver of unauthorized signals.
func WithNotifier(n UnauthorizedNotifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithMetrics records backend request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client for the backend described by cfg.
func New(cfg config.BackendConfig, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := cfg.CircuitBreaker
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/",
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		breaker: NewCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.Timeout,
			cb.ErrorRateThreshold, cb.ErrorRateWindow),
		retry:  cfg.Retry,
		paths:  cfg.Paths,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics != nil {
		m := c.metrics
		c.breaker.OnStateChange(func(s BreakerState) {
			m.SetBackendCircuitBreakerState(float64(s))
		})
	}
	return c, nil
}

// Breaker exposes the backend circuit breaker.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// HealthCheck fails while the circuit breaker is open.
func (c *Client) HealthCheck(context.Context) error {
	if s := c.breaker.State(); s == BreakerOpen {
		return fmt.Errorf("client: backend circuit breaker is %s", s)
	}
	return nil
}

// Do performs req and returns the decoded JSON body of a 2xx response. The
// body is nil when the backend sent nothing or something other than JSON.
// Non-2xx responses become *model.ErrorEnvelope values; a cancelled context
// is returned as ctx.Err().
func (c *Client) Do(ctx context.Context, req Request) (any, error) {
	ctx, span := observability.StartSpan(ctx, "backend.request",
		observability.AttrResource.String(req.Resource),
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path),
	)
	body, err := c.do(ctx, req)
	observability.EndSpanWithError(span, err)
	return body, err
}

func (c *Client) do(ctx context.Context, req Request) (any, error) {
	reqURL := c.baseURL + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		reqURL += "?" + req.Query.Encode()
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("client: marshal body: %w", err)
		}
	}

	headers := buildRequestHeaders(model.RequestContextFrom(ctx), req.Method)
	observability.InjectTraceHeaders(ctx, headers)

	resp, err := c.executeWithRetry(ctx, req, reqURL, headers, bodyBytes)
	if errors.Is(err, errBreakerOpen) {
		err = model.NewBackendUnavailableError()
	}
	var env *model.ErrorEnvelope
	if errors.As(err, &env) {
		env.TraceID = observability.TraceIDFromContext(ctx)
	}
	if err != nil {
		return nil, err
	}
	return c.interpret(ctx, req, resp)
}

type rawResponse struct {
	status int
	body   []byte
}

func (c *Client) executeWithRetry(ctx context.Context, req Request, reqURL string,
	headers http.Header, bodyBytes []byte) (*rawResponse, error) {
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	canRetry := isIdempotentMethod(req.Method) || !c.retry.IdempotentOnly

	var lastErr error
	var last *rawResponse
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.metrics.RecordBackendRetry(req.Resource)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(c.retry, attempt)):
			}
		}

		resp, err := c.executeOnce(ctx, req, reqURL, headers, bodyBytes)
		if err != nil {
			lastErr = err
			if !canRetry || !isRetryableError(err) {
				return nil, err
			}
			c.logger.Debug("client: retrying after error",
				zap.String("resource", req.Resource),
				zap.Int("attempt", attempt+1),
				zap.Int("max", maxAttempts),
				zap.Error(err),
			)
			continue
		}

		if isRetryableStatus(resp.status) && canRetry && attempt < maxAttempts-1 {
			last = resp
			lastErr = nil
			c.logger.Debug("client: retrying after status",
				zap.String("resource", req.Resource),
				zap.Int("attempt", attempt+1),
				zap.Int("max", maxAttempts),
				zap.Int("status", resp.status),
			)
			continue
		}
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return last, nil
}

func (c *Client) executeOnce(ctx context.Context, req Request, reqURL string,
	headers http.Header, bodyBytes []byte) (*rawResponse, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	httpReq.Header = headers.Clone()

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.RecordBackendRequest(req.Resource, req.Method, 0, time.Since(start))
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.RecordBackendRequest(req.Resource, req.Method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	switch {
	case isServerError(resp.StatusCode):
		c.breaker.RecordFailure()
	case !isClientError(resp.StatusCode):
		c.breaker.RecordSuccess()
	}
	return &rawResponse{status: resp.StatusCode, body: respBody}, nil
}

// transportError classifies a failed round trip. Cancellation by the caller
// is not a backend failure and does not count against the breaker.
func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	c.breaker.RecordFailure()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.NewBackendTimeoutError()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewBackendTimeoutError()
	}
	if isConnectionError(err) {
		return model.NewBackendUnavailableError()
	}
	return fmt.Errorf("client: request failed: %w", err)
}

// interpret maps a final response to its decoded body or an error envelope.
func (c *Client) interpret(ctx context.Context, req Request, resp *rawResponse) (any, error) {
	body := decodeBody(resp.body)
	if resp.status >= 200 && resp.status < 300 {
		return body, nil
	}

	msg := backendMessage(body)
	var env *model.ErrorEnvelope
	switch {
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		if c.notifier != nil {
			c.notifier.NotifyUnauthorized(ctx, resp.status)
		}
		if resp.status == http.StatusUnauthorized {
			env = model.NewUnauthorizedError(orDefault(msg, "Your session has expired. Please sign in again."))
		} else {
			env = model.NewForbiddenError(orDefault(msg, "You do not have access to this resource"))
		}
	case resp.status == http.StatusNotFound:
		env = model.NewNotFoundError(orDefault(msg, "The requested record was not found"))
	case resp.status == http.StatusBadRequest || resp.status == http.StatusUnprocessableEntity:
		env = model.NewValidationError(validationDetails(body, msg))
		if msg != "" {
			env.Message = msg
		}
	case resp.status == http.StatusConflict:
		env = model.NewConflictError(orDefault(msg, "The record was changed by someone else"))
	case resp.status == http.StatusTooManyRequests:
		env = model.NewRateLimitedError()
	case isServerError(resp.status):
		env = model.NewBackendUnavailableError()
	default:
		env = model.NewBadRequestError(orDefault(msg, http.StatusText(resp.status)))
	}
	env.TraceID = observability.TraceIDFromContext(ctx)

	fields := []zap.Field{
		zap.String("resource", req.Resource),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.status),
		zap.String("code", env.Code),
	}
	if req.Body != nil && c.logger.Core().Enabled(zap.DebugLevel) {
		fields = append(fields, observability.Redacted("body", req.Body))
	}
	c.logger.Debug("client: backend rejected request", fields...)
	return nil, env
}

func decodeBody(b []byte) any {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// backendMessage finds the human-readable message in an error body.
func backendMessage(body any) string {
	if s, ok := body.(string); ok {
		return s
	}
	return AsRecord(body).String("message", "error", "error.message", "data.message")
}

// validationDetails collects field errors from "errors" or "data.errors".
// Both arrays ({field, message} or plain strings) and field->message maps
// are accepted. With nothing to collect, msg becomes a single form-level
// error.
func validationDetails(body any, msg string) []model.FieldError {
	r := AsRecord(body)
	var details []model.FieldError
	for _, path := range []string{"errors", "data.errors"} {
		v, ok := r.Lookup(path)
		if !ok {
			continue
		}
		switch e := v.(type) {
		case []any:
			for _, item := range e {
				if s, isStr := item.(string); isStr {
					details = append(details, model.FieldError{Code: "invalid", Message: s})
					continue
				}
				if fr := AsRecord(item); fr != nil {
					details = append(details, model.FieldError{
						Field:   fr.String("field", "path", "param", "property"),
						Code:    orDefault(fr.String("code", "type"), "invalid"),
						Message: fr.String("message", "msg"),
					})
				}
			}
		case map[string]any:
			for field, m := range e {
				text, _ := m.(string)
				if text == "" {
					text = AsRecord(m).String("message", "msg")
				}
				details = append(details, model.FieldError{Field: field, Code: "invalid", Message: text})
			}
		}
		if len(details) > 0 {
			return details
		}
	}
	if msg != "" {
		return []model.FieldError{{Code: "invalid", Message: msg}}
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// --- headers ---

func buildRequestHeaders(rctx *model.RequestContext, method string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		h.Set("Content-Type", "application/json")
	}
	if rctx != nil {
		if rctx.Token != "" {
			h.Set("Authorization", "Bearer "+sanitizeHeader(rctx.Token))
		}
		if rctx.CorrelationID != "" {
			h.Set("X-Correlation-Id", sanitizeHeader(rctx.CorrelationID))
		}
	}
	return h
}

// sanitizeHeader strips CR and LF to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "")
}

// --- classification ---

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isServerError(code int) bool {
	return code >= 500
}

func isClientError(code int) bool {
	return code >= 400 && code < 500
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryableError reports whether a failed attempt may be repeated. An open
// breaker, a timeout, or a cancelled caller ends the call; a refused
// connection does not.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, errBreakerOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var env *model.ErrorEnvelope
	if errors.As(err, &env) {
		return env.Code == model.ErrBackendUnavailable
	}
	return true
}

func isConnectionError(err error) bool {
	// A backend that drops the connection mid-response surfaces as EOF.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func calculateBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}
	delay := cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.BackoffMax {
			return cfg.BackoffMax
		}
	}
	return delay
}
