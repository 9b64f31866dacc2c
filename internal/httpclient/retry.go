// Package httpclient is the single shared HTTP client used for every
// upstream call, implementing the gateway's retry taxonomy: 403 triggers a
// credential refresh and an immediate retry, 429/5xx/network errors back
// off exponentially, and any other 4xx is returned to the caller at once.
package httpclient

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/kiro-gateway/kiro-gateway/internal/auth"
	"github.com/kiro-gateway/kiro-gateway/internal/config"
	gwerrors "github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/logger"
	"github.com/kiro-gateway/kiro-gateway/internal/metrics"
)

// RequestFactory builds a fresh *http.Request for one attempt, given the
// currently valid access token. It must be callable more than once: each
// retry calls it again so the body reader and Authorization header are
// always fresh.
type RequestFactory func(ctx context.Context, accessToken string) (*http.Request, error)

// Client is the shared retrying HTTP client.
type Client struct {
	http                *http.Client
	authMgr             *auth.Manager
	maxRetries          int
	streamingMaxRetries int
	baseDelay           time.Duration
	log                 *logger.Logger
	metrics             *metrics.Registry
}

// WithMetrics attaches a metrics registry so retry attempts are counted
// by reason. Optional: a nil registry (the zero value, i.e. never
// calling this) simply skips instrumentation.
func (c *Client) WithMetrics(m *metrics.Registry) *Client {
	c.metrics = m
	return c
}

// New builds a Client with a bounded connection pool (100 idle
// connections, 20 per host, 30s idle timeout) and, when DebugMode is
// enabled, a request/response dumping transport wrapped around it.
func New(cfg *config.Config, authMgr *auth.Manager, log *logger.Logger) *Client {
	base := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     30 * time.Second,
	}

	var transport http.RoundTripper = base
	if cfg.DebugMode != "" && cfg.DebugMode != "off" {
		dbg := NewDebugTransport(cfg.DebugMode, cfg.DebugDir, log)
		dbg.Transport = base
		transport = dbg
	}

	return &Client{
		http:                &http.Client{Transport: transport},
		authMgr:             authMgr,
		maxRetries:          cfg.MaxRetries,
		streamingMaxRetries: cfg.FirstByteMaxRetries,
		baseDelay:           cfg.BaseRetryDelay,
		log:                 log,
	}
}

// Do executes the retry loop. streaming selects both the attempt budget and
// the exhaustion status code: streaming callers get their own, separately
// configured budget (streamingMaxRetries, sourced from
// cfg.FirstByteMaxRetries) and exhaust to 504, mirroring the Stream
// Coordinator's own first-byte-timeout 504; non-streaming callers use
// maxRetries and exhaust to 502.
func (c *Client) Do(ctx context.Context, build RequestFactory, streaming bool) (*http.Response, error) {
	var lastErr error

	attempts := c.maxRetries
	if streaming {
		attempts = c.streamingMaxRetries
	}
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		token, err := c.authMgr.GetAccessToken(ctx)
		if err != nil {
			return nil, err
		}

		req, err := build(ctx, token)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logRetry(ctx, attempt, "network error", err)
			c.backoff(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil

		case resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			lastErr = &gwerrors.UpstreamError{Status: resp.StatusCode}
			if rerr := c.authMgr.ForceRefresh(ctx); rerr != nil {
				lastErr = rerr
			}
			c.logRetry(ctx, attempt, "403, forced credential refresh", lastErr)
			// No backoff: a forced refresh is retried immediately, but it
			// still counts against the attempt budget.

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &gwerrors.UpstreamError{Status: resp.StatusCode, Body: string(body)}
			c.logRetry(ctx, attempt, "retryable upstream status", lastErr)
			c.backoff(ctx, attempt)

		default:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, &gwerrors.UpstreamError{Status: resp.StatusCode, Body: string(body)}
		}
	}

	status := http.StatusBadGateway
	if streaming {
		status = http.StatusGatewayTimeout
	}
	body := ""
	if lastErr != nil {
		body = lastErr.Error()
	}
	return nil, &gwerrors.UpstreamError{Status: status, Body: body}
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	delay := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt)))
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (c *Client) logRetry(ctx context.Context, attempt int, reason string, err error) {
	if c.metrics != nil {
		c.metrics.RetriesTotal.WithLabelValues(reason).Inc()
	}
	if c.log == nil {
		return
	}
	c.log.WithComponent("httpclient").WithContext(ctx).Warn(
		"upstream request attempt failed, retrying",
		"attempt", attempt,
		"reason", reason,
		"error", err,
	)
}
