package errors

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthError indicates the Auth Manager could not obtain or refresh a valid
// access credential. Always surfaced to clients as a generic 502 — the
// underlying cause (bad refresh token, network failure) is not the
// client's concern.
type AuthError struct {
	Cause error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth error: %v", e.Cause) }
func (e *AuthError) Unwrap() error { return e.Cause }

// UpstreamError wraps a non-success response from the upstream vendor that
// survived the retry budget. Status carries the upstream's own status code
// when it is a plain passthrough (other 4xx), or a gateway-assigned code
// (502/504) on retry exhaustion.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status=%d body=%s", e.Status, e.Body)
}

// FirstByteTimeout indicates the upstream did not emit any bytes within the
// configured first-byte deadline. Recoverable at the Stream Coordinator via
// retry; surfaced as 504 once the retry budget is exhausted.
type FirstByteTimeout struct {
	Attempt int
}

func (e *FirstByteTimeout) Error() string {
	return fmt.Sprintf("first byte timeout on attempt %d", e.Attempt)
}

// UnsupportedInputError indicates the canonical request contains a shape the
// upstream cannot accept (e.g. a remote image URL instead of inline base64
// image data). Always a 400 — it is the caller's request that is invalid,
// not a transient condition.
type UnsupportedInputError struct {
	Reason string
}

func (e *UnsupportedInputError) Error() string { return e.Reason }

// ParseError reports input the gateway could not parse: a malformed client
// request body in either inbound dialect, or an invalid UPSTREAM model-list
// response. WriteError maps it to 400. Per-frame event-stream decode
// failures are not ParseErrors; the parser returns them from Feed and the
// coordinator logs them and skips the frame.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

// WriteError maps a gateway error to an HTTP status + JSON body and writes
// it, aborting the Gin context. Unknown error types fall back to 500.
func WriteError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *AuthError:
		c.AbortWithStatusJSON(http.StatusBadGateway, NewAPIError("upstream authentication failed", nil))
	case *UpstreamError:
		status := e.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		c.AbortWithStatusJSON(status, NewAPIError(e.Error(), map[string]interface{}{"upstream_status": e.Status}))
	case *FirstByteTimeout:
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, NewAPIError("model did not respond in time", nil))
	case *UnsupportedInputError:
		c.AbortWithStatusJSON(http.StatusBadRequest, NewAPIError(e.Reason, nil))
	case *ParseError:
		c.AbortWithStatusJSON(http.StatusBadRequest, NewAPIError(e.Reason, nil))
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, NewAPIError(err.Error(), nil))
	}
}
