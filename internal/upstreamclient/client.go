// Package upstreamclient builds the two outbound calls the gateway makes
// against UPSTREAM: the streaming completion call and the model-listing
// call the Model Metadata Cache uses to populate itself.
package upstreamclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kiro-gateway/kiro-gateway/internal/dialect/upstream"
	gwerrors "github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/httpclient"
	"github.com/kiro-gateway/kiro-gateway/internal/modelcache"
)

// Client wraps the shared retrying HTTP client with UPSTREAM's own
// endpoint shapes and envelope encoding.
type Client struct {
	HTTP             *httpclient.Client
	APIEndpoint      string
	MetadataEndpoint string
	ProfileARN       string
}

// Complete POSTs env to the completion endpoint and returns the open
// response body on success (200 only — the shared client's retry
// taxonomy has already absorbed 403/429/5xx before returning here). The
// caller owns closing the body; the Stream Coordinator does this itself.
func (c *Client) Complete(ctx context.Context, env *upstream.Envelope, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("upstreamclient: marshal envelope: %w", err)
	}

	endpoint := c.APIEndpoint + "/GenerateAssistantResponse"
	resp, err := c.HTTP.Do(ctx, func(ctx context.Context, accessToken string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	}, streaming)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// modelListResponse is UPSTREAM's ListAvailableModels response shape.
type modelListResponse struct {
	Models []struct {
		ModelID        string `json:"modelId"`
		MaxInputTokens int    `json:"maxInputTokens"`
	} `json:"models"`
}

// ListAvailableModels implements modelcache.Fetcher.
func (c *Client) ListAvailableModels(ctx context.Context) ([]modelcache.ModelInfo, error) {
	endpoint := c.MetadataEndpoint + "/ListAvailableModels?" + url.Values{
		"origin":     {"AI_EDITOR"},
		"profileArn": {c.ProfileARN},
	}.Encode()

	resp, err := c.HTTP.Do(ctx, func(ctx context.Context, accessToken string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	}, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstreamclient: read model list response: %w", err)
	}

	var parsed modelListResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &gwerrors.ParseError{Reason: "upstreamclient: invalid model list response: " + err.Error()}
	}

	models := make([]modelcache.ModelInfo, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		models = append(models, modelcache.ModelInfo{ModelID: m.ModelID, MaxInputTokens: m.MaxInputTokens})
	}
	return models, nil
}
