package githubagent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"switchboard/internal/config"
	"switchboard/internal/logging"
)

// ErrCredentialInvalid reports that the provider rejected the stored
// token. The dispatcher reacts by discarding the credential and asking
// the user to reconnect.
var ErrCredentialInvalid = errors.New("stored credential rejected by provider")

// Client is a thin wrapper over the GitHub REST API. Methods take the
// token explicitly; credential lookup and lifecycle stay in the
// dispatcher.
type Client struct {
	cfg        config.GitHubConfig
	httpClient *http.Client
}

// NewClient builds a client against the configured API endpoint.
func NewClient(cfg config.GitHubConfig) *Client {
	timeout := 30 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do performs one API request. An empty token sends the request
// unauthenticated. The parsed JSON body is decoded into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, token, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	logging.GitHubDebug("%s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		logging.GitHubWarn("%s %s rejected with 401: credential no longer valid", method, path)
		return fmt.Errorf("%w: %s", ErrCredentialInvalid, apiErrorMessage(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, apiErrorMessage(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// apiErrorMessage extracts the "message" field from an API error body,
// falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return string(body)
}

// Repository is the subset of repository fields the dispatcher reports.
type Repository struct {
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	HTMLURL       string `json:"html_url"`
	Private       bool   `json:"private"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	OpenIssues    int    `json:"open_issues_count"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language"`
}

// User is the subset of profile fields the dispatcher reports.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	HTMLURL     string `json:"html_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// Issue is the subset of issue fields the dispatcher reports.
type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

// PullRequest is the subset of pull-request fields the dispatcher reports.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

func (c *Client) CreateRepository(ctx context.Context, token, name, description string, private bool) (*Repository, error) {
	payload := map[string]interface{}{
		"name":        name,
		"description": description,
		"private":     private,
	}
	var repo Repository
	if err := c.do(ctx, token, http.MethodPost, "/user/repos", payload, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

func (c *Client) StarRepository(ctx context.Context, token, owner, repo string) error {
	return c.do(ctx, token, http.MethodPut, fmt.Sprintf("/user/starred/%s/%s", owner, repo), nil, nil)
}

func (c *Client) CreateIssue(ctx context.Context, token, owner, repo, title, body string) (*Issue, error) {
	payload := map[string]interface{}{"title": title}
	if body != "" {
		payload["body"] = body
	}
	var issue Issue
	if err := c.do(ctx, token, http.MethodPost, fmt.Sprintf("/repos/%s/%s/issues", owner, repo), payload, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) ListOwnRepositories(ctx context.Context, token string) ([]Repository, error) {
	var repos []Repository
	if err := c.do(ctx, token, http.MethodGet, "/user/repos?sort=updated&per_page=30", nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// ListUserRepositories fetches another user's public repositories. This
// call does not require a credential.
func (c *Client) ListUserRepositories(ctx context.Context, username string) ([]Repository, error) {
	var repos []Repository
	path := fmt.Sprintf("/users/%s/repos?sort=updated&per_page=30", url.PathEscape(username))
	if err := c.do(ctx, "", http.MethodGet, path, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *Client) GetProfile(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.do(ctx, token, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserProfile fetches a public profile. This call does not require a
// credential.
func (c *Client) GetUserProfile(ctx context.Context, username string) (*User, error) {
	var u User
	if err := c.do(ctx, "", http.MethodGet, "/users/"+url.PathEscape(username), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetRepository(ctx context.Context, token, owner, repo string) (*Repository, error) {
	var r Repository
	if err := c.do(ctx, token, http.MethodGet, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListIssues(ctx context.Context, token, owner, repo string) ([]Issue, error) {
	var issues []Issue
	if err := c.do(ctx, token, http.MethodGet, fmt.Sprintf("/repos/%s/%s/issues?state=open&per_page=30", owner, repo), nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (c *Client) CreatePullRequest(ctx context.Context, token, owner, repo, title, head, base, body string) (*PullRequest, error) {
	payload := map[string]interface{}{
		"title": title,
		"head":  head,
		"base":  base,
	}
	if body != "" {
		payload["body"] = body
	}
	var pr PullRequest
	if err := c.do(ctx, token, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pulls", owner, repo), payload, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// PutFile creates or updates a single file through the contents API. The
// existing file's SHA is looked up first so updates do not conflict.
func (c *Client) PutFile(ctx context.Context, token, owner, repo, branch, path, message, content string) error {
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path)

	lookupPath := apiPath
	if branch != "" {
		lookupPath += "?ref=" + url.QueryEscape(branch)
	}
	var existing struct {
		SHA string `json:"sha"`
	}
	// A lookup failure means the file does not exist yet; that is fine.
	lookupErr := c.do(ctx, token, http.MethodGet, lookupPath, nil, &existing)
	if lookupErr != nil && errors.Is(lookupErr, ErrCredentialInvalid) {
		return lookupErr
	}

	payload := map[string]interface{}{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	if branch != "" {
		payload["branch"] = branch
	}
	if existing.SHA != "" {
		payload["sha"] = existing.SHA
	}
	return c.do(ctx, token, http.MethodPut, apiPath, payload, nil)
}
