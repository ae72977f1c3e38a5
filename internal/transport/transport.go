// Package transport is the outbound HTTP capability. Adapters only build
// Requests; components that dispatch hand them to a Transport.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"eventgate/internal/types"
)

// maxResponseBody bounds how much of a response body is retained.
const maxResponseBody = 1 << 20

// Request is a transport-agnostic outbound HTTP request.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body,omitempty"`
}

// Response is the status and body of a completed send.
type Response struct {
	Status int    `json:"status"`
	Body   []byte `json:"body,omitempty"`
}

// Transport sends requests. Failures are Transport-class errors.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport executes requests with an http.Client behind a circuit breaker.
// Any status >= 400 is a failure.
type HTTPTransport struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*Response]
	userAgent string
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(t *HTTPTransport) { t.userAgent = ua }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*Response]) Option {
	return func(t *HTTPTransport) { t.breaker = cb }
}

// NewHTTPTransport creates a transport around client. The default breaker opens
// after five consecutive failures and probes again after thirty seconds.
func NewHTTPTransport(client *http.Client, name string, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		client: client,
		breaker: gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req Request) (*Response, error) {
	resp, err := t.breaker.Execute(func() (*Response, error) {
		return t.do(ctx, req)
	})
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeTransportUnavailable,
			"circuit breaker is open; upstream unavailable", err, map[string]any{"url": req.URL})
	}
	return resp, err
}

func (t *HTTPTransport) do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeTransportSend, "build request", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	if id := types.GetRequestID(ctx); id != "" && httpReq.Header.Get("X-Request-Id") == "" {
		httpReq.Header.Set("X-Request-Id", id)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeTransportSend,
			"send failed", err, map[string]any{"url": req.URL})
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeTransportSend, "read response body", err)
	}
	resp := &Response{Status: httpResp.StatusCode, Body: body}
	if httpResp.StatusCode >= 400 {
		return resp, types.NewAppErrorWithDetails(types.ErrCodeTransportStatus,
			fmt.Sprintf("upstream returned %d", httpResp.StatusCode), nil,
			map[string]any{"url": req.URL, "status": httpResp.StatusCode})
	}
	return resp, nil
}

// Unavailable is the transport for hosts without outbound HTTP.
type Unavailable struct{}

// Send implements Transport and always fails.
func (Unavailable) Send(_ context.Context, req Request) (*Response, error) {
	return nil, types.NewAppErrorWithDetails(types.ErrCodeTransportUnavailable,
		"outbound http transport is not available", nil, map[string]any{"url": req.URL})
}

var (
	_ Transport = (*HTTPTransport)(nil)
	_ Transport = Unavailable{}
)
