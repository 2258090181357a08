// Package httpclient is the outbound HTTP transport: a tuned http.Client
// wrapped with bounded retry and capped exponential backoff.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/observability"
)

// Response is one completed upstream exchange. A non-2xx StatusCode is not
// an error at this layer; callers decide how to degrade.
type Response struct {
	StatusCode int
	Body       []byte
	URL        string
}

// OK reports whether the status code indicates success.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Option func(*Client)

// WithRetry overrides the retry count and backoff ceiling.
func WithRetry(maxRetries int, backoffCap time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoffCap = backoffCap
	}
}

// WithHTTPClient substitutes the underlying http.Client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

type Client struct {
	hc         *http.Client
	log        zerolog.Logger
	upstream   string
	maxRetries int
	backoffCap time.Duration
}

// New builds a transport client for the named upstream. Defaults: 3 retries,
// 60s backoff ceiling.
func New(upstream string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		hc:         newOutbound(),
		log:        log,
		upstream:   upstream,
		maxRetries: 3,
		backoffCap: 60 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newOutbound() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// Send performs one logical upstream exchange. Transient failures (429, 5xx,
// network errors) are retried with exponential backoff; once attempts are
// exhausted the last response is returned as-is, so a persistent 5xx reaches
// the caller as a non-success Response rather than an error. Send errors
// only when no HTTP response was obtained at all.
func (c *Client) Send(ctx context.Context, method, rawURL string, body []byte, contentType string) (Response, error) {
	backoff := time.Second
	if backoff > c.backoffCap {
		backoff = c.backoffCap
	}
	var lastResp Response
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		resp, err := c.do(ctx, method, rawURL, body, contentType)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		lastResp, lastErr = resp, err

		if attempt == c.maxRetries {
			break
		}
		observability.IncUpstreamRetry(c.upstream)
		c.log.Debug().
			Str("upstream", c.upstream).
			Str("url", rawURL).
			Int("attempt", attempt+1).
			Err(err).
			Msg("retrying upstream request")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > c.backoffCap {
			backoff = c.backoffCap
		}
	}

	if lastErr != nil {
		return Response{}, fmt.Errorf("send %s %s: %w", method, rawURL, lastErr)
	}
	return lastResp, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, contentType string) (Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstreamLatency(c.upstream, time.Since(start).Seconds())

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: b, URL: req.URL.String()}, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
