// Package auth manages the gateway's single set of upstream credentials:
// obtaining and caching a short-lived access credential from a long-lived
// refresh credential, with at most one refresh in flight at a time.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CredentialSet is the upstream credential pair persisted to disk and
// exchanged for a short-lived access token.
type CredentialSet struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ProfileARN       string    `json:"profileArn"`
	Region           string    `json:"region"`
	IdentityProvider string    `json:"identityProvider"`
}

// LoadCredentialsFile reads a CredentialSet from path. A missing file is
// not an error — the caller falls back to environment-sourced values.
func LoadCredentialsFile(path string) (*CredentialSet, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: read credentials file: %w", err)
	}
	var creds CredentialSet
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("auth: parse credentials file: %w", err)
	}
	return &creds, nil
}

// SaveCredentialsFile writes creds to path atomically: it writes to a
// sibling temp file and renames over the destination, so a crash or
// concurrent reader never observes a partially written file. Called
// whenever a refresh rotates the refresh token.
func SaveCredentialsFile(path string, creds *CredentialSet) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: marshal credentials: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("auth: create temp credentials file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: write temp credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth: close temp credentials file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("auth: rename credentials file into place: %w", err)
	}
	return nil
}
