// Package httpjson sends JSON requests and hands back raw response bodies.
//
// The client deliberately does not interpret status codes or response
// payloads: every caller in the announcer decides for itself what a body
// means (the webhook inspects retry_after, the heartbeat only logs it).
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/loc-announcer/internal/metrics"
)

// Config tunes the underlying http.Client.
type Config struct {
	// Timeout bounds each request; zero means no timeout.
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Request describes one outbound call.
type Request struct {
	URL string
	// Method defaults to POST.
	Method string
	// Payload is JSON encoded as the body; nil sends an empty object.
	Payload any
	Headers map[string]string
}

// Client performs JSON requests.
type Client struct {
	http      *http.Client
	userAgent string
	logger    *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = newHTTPClient(cfg.Timeout)
	}
	return &Client{
		http:      hc,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Do sends req and returns the complete response body as text, whatever
// the status code.
func (c *Client) Do(ctx context.Context, req Request) (string, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	payload := req.Payload
	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.ContentLength = int64(len(body))
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	httpReq.Header.Set("Content-Length", strconv.Itoa(len(body)))
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveOutbound(req.URL, method, 0, time.Since(start))
		return "", fmt.Errorf("%s %s: %w", method, metrics.SanitizeHost(req.URL), err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(cerr))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	metrics.ObserveOutbound(req.URL, method, resp.StatusCode, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	c.logger.Debug("outbound request finished",
		zap.String("method", method),
		zap.String("host", metrics.SanitizeHost(req.URL)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
	)
	return string(data), nil
}
