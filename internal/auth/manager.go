package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/logger"
)

// Refresher performs the actual network exchange of a refresh credential
// for a new access credential. Implemented by HTTPRefresher in
// production; swappable in tests.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken, identityProvider string) (accessToken string, newRefreshToken string, expiresIn time.Duration, err error)
}

// Manager owns the gateway's single CredentialSet. It delegates the
// single-flight/early-renewal caching to oauth2.ReuseTokenSourceWithExpiry
// — at most one refresh call is ever in flight, and a credential is
// proactively renewed threshold before it actually expires rather than
// only once it has gone stale.
type Manager struct {
	mu         sync.Mutex // protects refreshToken and the expiry bookkeeping below
	refreshMu  sync.Mutex // serializes every path that can trigger an upstream refresh (on-demand and forced), so at most one is ever in flight
	threshold  time.Duration
	source     oauth2.TokenSource
	underlying *upstreamTokenSource
	credsFile  string
	log        *logger.Logger

	// onRefresh, when set, is called with "success" or "failure" after
	// every refresh attempt. Used to feed the gateway's metrics registry
	// without this package importing it directly.
	onRefresh func(outcome string)

	hasToken   bool
	lastExpiry time.Time
}

// OnRefresh registers a callback invoked with "success" or "failure"
// after every upstream refresh attempt.
func (m *Manager) OnRefresh(fn func(outcome string)) {
	m.onRefresh = fn
}

// NewManager constructs a Manager seeded with initial (from config/env or
// a credentials file). threshold is how long before expiry a credential
// is considered due for renewal. credsFile, if non-empty, is rewritten
// atomically whenever a refresh rotates the refresh token.
func NewManager(initial CredentialSet, threshold time.Duration, credsFile string, refresher Refresher, log *logger.Logger) *Manager {
	m := &Manager{credsFile: credsFile, log: log, threshold: threshold}

	underlying := &upstreamTokenSource{
		mgr:              m,
		refreshToken:     initial.RefreshToken,
		identityProvider: initial.IdentityProvider,
		refresher:        refresher,
	}
	m.underlying = underlying

	seed := &oauth2.Token{}
	if initial.AccessToken != "" {
		seed = &oauth2.Token{AccessToken: initial.AccessToken, Expiry: initial.ExpiresAt}
		m.hasToken = true
		m.lastExpiry = initial.ExpiresAt
	}

	m.source = oauth2.ReuseTokenSourceWithExpiry(seed, underlying, threshold)
	return m
}

// upstreamTokenSource adapts Refresher to oauth2.TokenSource. Its Token
// method only ever runs while Manager.refreshMu is held (through the reuse
// source in GetAccessToken, or directly in ForceRefresh), which is what
// gives the Manager its single-flight guarantee: a second caller blocked on
// refreshMu sees the first caller's refreshed token once it unblocks,
// instead of issuing its own redundant refresh.
type upstreamTokenSource struct {
	mgr              *Manager
	refreshToken     string
	identityProvider string
	refresher        Refresher
}

func (s *upstreamTokenSource) Token() (*oauth2.Token, error) {
	s.mgr.mu.Lock()
	refreshToken := s.refreshToken
	idp := s.identityProvider
	s.mgr.mu.Unlock()

	if refreshToken == "" {
		return nil, fmt.Errorf("auth: no refresh token available")
	}

	if s.mgr.log != nil {
		s.mgr.log.WithComponent("auth").Debug("refreshing upstream access token")
	}

	accessToken, newRefreshToken, expiresIn, err := s.refresher.Refresh(context.Background(), refreshToken, idp)
	if err != nil {
		if s.mgr.onRefresh != nil {
			s.mgr.onRefresh("failure")
		}
		return nil, fmt.Errorf("auth: refresh failed: %w", err)
	}
	if s.mgr.onRefresh != nil {
		s.mgr.onRefresh("success")
	}

	expiry := time.Now().Add(expiresIn)
	rotated := newRefreshToken != "" && newRefreshToken != refreshToken

	s.mgr.mu.Lock()
	if rotated {
		s.refreshToken = newRefreshToken
	}
	s.mgr.hasToken = true
	s.mgr.lastExpiry = expiry
	s.mgr.mu.Unlock()

	if rotated && s.mgr.credsFile != "" {
		creds := &CredentialSet{
			AccessToken:      accessToken,
			RefreshToken:     newRefreshToken,
			ExpiresAt:        expiry,
			IdentityProvider: idp,
		}
		if err := SaveCredentialsFile(s.mgr.credsFile, creds); err != nil && s.mgr.log != nil {
			s.mgr.log.LogError(context.Background(), err, "failed to persist rotated refresh token")
		}
	}

	return &oauth2.Token{AccessToken: accessToken, Expiry: expiry}, nil
}

// GetAccessToken returns a currently-valid access token, refreshing first
// if the cached one is within the configured threshold of expiry.
//
// refreshMu is held for the whole call, not just the bookkeeping around it,
// so this serializes against ForceRefresh too: the two never issue
// concurrent upstream refresh calls against the same underlying source.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	src := m.source
	m.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", &errors.AuthError{Cause: err}
	}
	return tok.AccessToken, nil
}

// ForceRefresh discards the cached token and refreshes immediately, used
// by the HTTP retry client after a 403. It shares refreshMu with
// GetAccessToken, so a ForceRefresh racing a concurrent on-demand refresh
// (or another ForceRefresh, as happens when several in-flight requests all
// see a 403 at once) never reaches the upstream refresher at the same time
// as another refresh: callers queue up on refreshMu and run one at a time,
// each against whatever refresh token the previous holder left behind, so
// two requests never race the IdP with the same refresh token.
//
// The refreshed token is fed back into a new reuse source so subsequent
// GetAccessToken calls see it without triggering another refresh.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	tok, err := m.underlying.Token()
	if err != nil {
		return &errors.AuthError{Cause: err}
	}

	m.mu.Lock()
	m.source = oauth2.ReuseTokenSourceWithExpiry(tok, m.underlying, m.threshold)
	m.mu.Unlock()
	return nil
}

// IsExpiringSoon reports whether the cached credential is within the
// refresh threshold of expiry (or no credential has been obtained yet),
// without triggering a refresh. Used by the health endpoint.
func (m *Manager) IsExpiringSoon() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasToken {
		return true
	}
	return time.Until(m.lastExpiry) <= m.threshold
}

// HasAccessToken reports whether any access token has been obtained yet.
func (m *Manager) HasAccessToken() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasToken
}
