package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RateLimitError is the 429 body returned when the gateway's own
// rate_limit_per_minute guard trips, before the request ever reaches
// upstream.
type RateLimitError struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

// AbortWithRateLimit sends a 429 response and aborts the request.
func AbortWithRateLimit(c *gin.Context, retryAfterSeconds int) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, &RateLimitError{
		Error:      "rate limit exceeded",
		RetryAfter: retryAfterSeconds,
	})
}
