package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPRefresher exchanges a refresh credential for a new access credential
// against the upstream vendor's token endpoint. This is a plain,
// un-retried POST — retry-on-failure for this specific call belongs to
// the caller (the Auth Manager's single-flight wrapper already prevents
// redundant concurrent attempts; it is invoked through the Manager, either
// on demand by GetAccessToken or by ForceRefresh after a 403).
type HTTPRefresher struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewHTTPRefresher builds a refresher pointed at the given token endpoint.
func NewHTTPRefresher(endpoint string) *HTTPRefresher {
	return &HTTPRefresher{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type refreshRequestBody struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponseBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

// Refresh implements auth.Refresher.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken, identityProvider string) (string, string, time.Duration, error) {
	body, err := json.Marshal(refreshRequestBody{RefreshToken: refreshToken})
	if err != nil {
		return "", "", 0, fmt.Errorf("refresher: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", "", 0, fmt.Errorf("refresher: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if identityProvider != "" {
		req.Header.Set("amz-sdk-invocation-id", identityProvider)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "", "", 0, fmt.Errorf("refresher: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", 0, fmt.Errorf("refresher: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", "", 0, fmt.Errorf("refresher: status %d: %s", resp.StatusCode, string(data))
	}

	var parsed refreshResponseBody
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", "", 0, fmt.Errorf("refresher: parse response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", "", 0, fmt.Errorf("refresher: response had no access token")
	}

	expiresIn := time.Duration(parsed.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}

	return parsed.AccessToken, parsed.RefreshToken, expiresIn, nil
}
