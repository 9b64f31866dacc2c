package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/kiro-gateway/kiro-gateway/internal/config"
	gwerrors "github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/logger"
	"github.com/kiro-gateway/kiro-gateway/internal/metrics"
)

// ObserveRequests records each completed request's route and status on
// reg, keyed by the route pattern (not the raw path) to keep cardinality
// bounded.
func ObserveRequests(reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		reg.ObserveRequest(route, c.Writer.Status())
	}
}

// RequestID stamps every request with an id, echoed back on
// X-Request-Id and threaded through the request context so every log
// line for this request carries it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = logger.GenerateRequestID()
		}
		c.Writer.Header().Set("X-Request-Id", id)
		ctx := logger.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireProxyAPIKey authenticates inbound callers against the gateway's
// own shared secret. It accepts either convention a client might use:
// Anthropic's `x-api-key` header or OpenAI's `Authorization: Bearer`
// header, checked with constant-time comparison so response timing
// never leaks how many leading bytes matched.
func RequireProxyAPIKey(cfg *config.Config) gin.HandlerFunc {
	expectedBearer := "Bearer " + cfg.ProxyAPIKey
	return func(c *gin.Context) {
		if xAPIKey := c.GetHeader("x-api-key"); xAPIKey != "" {
			if constantTimeEqual(xAPIKey, cfg.ProxyAPIKey) {
				c.Next()
				return
			}
		}
		if auth := c.GetHeader("Authorization"); auth != "" {
			if constantTimeEqual(auth, expectedBearer) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gwerrors.NewAPIError("invalid or missing API key", nil))
	}
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RateLimit enforces a simple per-process requests/minute ceiling via a
// single shared token bucket. perMinute <= 0 disables it entirely.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			gwerrors.AbortWithRateLimit(c, 1)
			return
		}
		c.Next()
	}
}

// CORS sets permissive cross-origin headers for browser-based clients,
// honoring a configured allowed-origin value ("*" or a literal origin).
func CORS(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, x-api-key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
