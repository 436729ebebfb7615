// Package githubagent dispatches repository-automation intents against
// the GitHub REST API. Write operations require an OAuth credential for
// the active identity; a handful of read operations run unauthenticated.
package githubagent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"switchboard/internal/auth"
	"switchboard/internal/config"
	"switchboard/internal/logging"
)

// OAuthFlow implements the authorization-code flow for the configured
// OAuth app. States are recorded so callbacks can be matched to the
// request that produced them.
type OAuthFlow struct {
	cfg        config.GitHubConfig
	httpClient *http.Client

	mu     sync.Mutex
	states map[string]time.Time
}

// NewOAuthFlow builds a flow for the given OAuth app configuration.
func NewOAuthFlow(cfg config.GitHubConfig) *OAuthFlow {
	return &OAuthFlow{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		states:     make(map[string]time.Time),
	}
}

// AuthorizationURL returns the URL the user must visit to connect an
// account, with a fresh single-use state parameter.
func (f *OAuthFlow) AuthorizationURL() string {
	state := uuid.NewString()

	f.mu.Lock()
	f.states[state] = time.Now()
	f.mu.Unlock()

	q := url.Values{}
	q.Set("client_id", f.cfg.ClientID)
	q.Set("redirect_uri", f.cfg.RedirectURL)
	q.Set("scope", f.cfg.Scopes)
	q.Set("state", state)
	return f.cfg.AuthURL + "?" + q.Encode()
}

// ConsumeState validates and retires a state returned on the callback.
func (f *OAuthFlow) ConsumeState(state string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[state]; !ok {
		return false
	}
	delete(f.states, state)
	return true
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode trades an authorization code for a credential bound to
// the given identity.
func (f *OAuthFlow) ExchangeCode(ctx context.Context, identity, code string) (auth.Credential, error) {
	form := url.Values{}
	form.Set("client_id", f.cfg.ClientID)
	form.Set("client_secret", f.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", f.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return auth.Credential{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return auth.Credential{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return auth.Credential{}, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return auth.Credential{}, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return auth.Credential{}, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.Error != "" {
		return auth.Credential{}, fmt.Errorf("token exchange rejected: %s: %s", tok.Error, tok.ErrorDescription)
	}
	if tok.AccessToken == "" {
		return auth.Credential{}, fmt.Errorf("token response contained no access token")
	}

	logging.Auth("exchanged authorization code for identity %s (scope: %s)", identity, tok.Scope)
	return auth.Credential{
		Identity:    identity,
		AccessToken: tok.AccessToken,
		Scope:       tok.Scope,
		AcquiredAt:  time.Now(),
	}, nil
}
