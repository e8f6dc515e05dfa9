package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/courier/signature"
)

const (
	maxResponseBody = 1024 // 1KB cap on the failure detail

	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second

	// HeaderMessageID carries the relayed message ID downstream.
	HeaderMessageID = "X-Courier-Message-ID"
)

// compile-time interface check.
var _ Transport = (*HTTP)(nil)

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithTimeout bounds each attempt. Non-positive values are ignored.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithClient replaces the pooled default client.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) { h.headers.Set(key, value) }
}

// WithSigningSecret signs every payload with signature.SignRequest.
func WithSigningSecret(secret string) HTTPOption {
	return func(h *HTTP) { h.secret = secret }
}

// WithRateLimit caps outbound requests at rps per second with the given burst.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(h *HTTP) {
		if rps > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// HTTP posts payloads as JSON to a fixed downstream URL.
type HTTP struct {
	url     string
	client  *http.Client
	timeout time.Duration
	headers http.Header
	secret  string
	limiter *rate.Limiter
	now     func() time.Time
}

// NewHTTP creates an HTTP transport for url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		url:     url,
		client:  newPooledClient(),
		timeout: DefaultTimeout,
		headers: http.Header{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// URL returns the downstream URL.
func (h *HTTP) URL() string { return h.url }

// Deliver performs one POST and classifies the response.
func (h *HTTP) Deliver(ctx context.Context, payload []byte) Outcome {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return Retryable(fmt.Sprintf("rate limit: %v", err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return NonRetryable(fmt.Sprintf("create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Courier/1.0")
	if msgID, ok := MessageIDFrom(ctx); ok {
		req.Header.Set(HeaderMessageID, msgID.String())
		req.Header.Set("Idempotency-Key", msgID.String())
	}
	if h.secret != "" {
		signature.SignRequest(req.Header, payload, h.secret, h.now())
	}
	for k, vs := range h.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := h.client.Do(req) //nolint:gosec // G704: downstream URL comes from operator configuration.
	latency := time.Since(start)
	if err != nil {
		return Outcome{
			Kind:    RetryableFailure,
			Detail:  fmt.Sprintf("request: %v", err),
			Latency: latency,
		}
	}
	defer resp.Body.Close()

	out := Outcome{
		Kind:       Classify(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Latency:    latency,
	}
	if out.Kind == Success {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return out
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		out.Detail = fmt.Sprintf("downstream returned %d (read response: %v)", resp.StatusCode, readErr)
		return out
	}
	out.Detail = fmt.Sprintf("downstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	return out
}

func newPooledClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
