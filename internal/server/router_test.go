package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiro-gateway/kiro-gateway/internal/auth"
	"github.com/kiro-gateway/kiro-gateway/internal/config"
	"github.com/kiro-gateway/kiro-gateway/internal/httpclient"
	"github.com/kiro-gateway/kiro-gateway/internal/metrics"
	"github.com/kiro-gateway/kiro-gateway/internal/modelcache"
	"github.com/kiro-gateway/kiro-gateway/internal/upstreamclient"
)

type stubRefresher struct{}

func (stubRefresher) Refresh(ctx context.Context, refreshToken, idp string) (string, string, time.Duration, error) {
	return "token", "", time.Hour, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		GinMode:            "test",
		ProxyAPIKey:        "secret123",
		MaxRetries:         1,
		BaseRetryDelay:     time.Millisecond,
		ModelCacheTTL:      time.Hour,
		RateLimitPerMinute: 0,
		CORSAllowedOrigins: "*",
	}
	authMgr := auth.NewManager(auth.CredentialSet{RefreshToken: "r1"}, 10*time.Minute, "", stubRefresher{}, nil)
	httpClient := httpclient.New(cfg, authMgr, nil)
	upstream := &upstreamclient.Client{HTTP: httpClient, APIEndpoint: "http://unused.invalid", MetadataEndpoint: "http://unused.invalid"}
	modelCache := modelcache.New(cfg.ModelCacheTTL, 200000, upstream, nil)
	metricsReg, promReg := metrics.New()

	return New(cfg, nil, authMgr, upstream, modelCache, metricsReg, promReg)
}

func TestRootAndHealthAreUnauthenticated(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, w.Code)
		}
	}
}

func TestModelsRequiresAuth(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestModelsAcceptsXAPIKeyHeader(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("x-api-key", "secret123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}

func TestModelsAcceptsBearerAuthorizationHeader(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}

func TestModelsRejectsWrongKey(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("x-api-key", "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestMetricsEndpointServed(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
