package httpclient

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/kiro-gateway/kiro-gateway/internal/logger"
)

// DebugTransport wraps http.RoundTripper to dump raw upstream request/
// response bytes to DebugDir when DebugMode is "all" or "errors" (only
// non-2xx responses, in the latter case). Generalized from a single
// provider-specific condition to every request this client issues, using
// the structured logger rather than stdlib log.
type DebugTransport struct {
	Transport http.RoundTripper
	Mode      string // "off", "errors", "all"
	Dir       string
	Log       *logger.Logger

	seq int64
}

func NewDebugTransport(mode, dir string, log *logger.Logger) *DebugTransport {
	return &DebugTransport{Transport: http.DefaultTransport, Mode: mode, Dir: dir, Log: log}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Mode == "off" || t.Mode == "" {
		return t.Transport.RoundTrip(req)
	}

	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.dump(req, reqBody, nil, nil, err)
		return resp, err
	}

	if t.Mode == "errors" && resp.StatusCode < 400 {
		return resp, nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	t.dump(req, reqBody, resp, respBody, nil)
	return resp, nil
}

func (t *DebugTransport) dump(req *http.Request, reqBody []byte, resp *http.Response, respBody []byte, roundTripErr error) {
	if t.Dir == "" {
		return
	}
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		if t.Log != nil {
			t.Log.LogError(req.Context(), err, "debug transport: failed to create debug dir")
		}
		return
	}

	n := atomic.AddInt64(&t.seq, 1)
	name := strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.FormatInt(n, 10) + ".log"

	var buf bytes.Buffer
	buf.WriteString(req.Method + " " + req.URL.String() + "\n")
	buf.Write(reqBody)
	buf.WriteString("\n---\n")
	if roundTripErr != nil {
		buf.WriteString("error: " + roundTripErr.Error() + "\n")
	} else if resp != nil {
		buf.WriteString(resp.Status + "\n")
		buf.Write(respBody)
		buf.WriteString("\n")
	}

	if err := os.WriteFile(filepath.Join(t.Dir, name), buf.Bytes(), 0o644); err != nil && t.Log != nil {
		t.Log.LogError(req.Context(), err, "debug transport: failed to write debug dump")
	}
}
