package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/auth"
	"switchboard/internal/config"
	"switchboard/internal/content"
	"switchboard/internal/githubagent"
	"switchboard/internal/intent"
	"switchboard/internal/market"
	"switchboard/internal/types"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// testRouter builds a fully wired router whose provider APIs all point
// at the given server.
func testRouter(t *testing.T, chain intent.Completer, handler http.Handler) (*Router, *auth.MemoryStore, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	ghCfg := config.DefaultGitHubConfig()
	ghCfg.APIBaseURL = srv.URL
	ghCfg.ClientID = "test-client"
	apifyCfg := config.DefaultApifyConfig()
	apifyCfg.BaseURL = srv.URL
	marketCfg := config.DefaultMarketConfig()
	marketCfg.BaseURL = srv.URL

	store := auth.NewMemoryStore()
	oauth := githubagent.NewOAuthFlow(ghCfg)

	r := New(
		intent.NewClassifier(chain),
		githubagent.NewDispatcher(githubagent.NewClient(ghCfg), oauth, store),
		content.NewDispatcher(content.NewScraper(apifyCfg), chain),
		market.NewDispatcher(market.NewClient(marketCfg), chain),
		oauth,
		store,
	)
	return r, store, &calls
}

func TestUnauthorizedGitHubActionShortCircuits(t *testing.T) {
	chain := &stubCompleter{response: `{
		"platform": "repository-automation",
		"action": "star-repository",
		"parameters": {"owner": "facebook", "repo": "react"}
	}`}
	r, _, calls := testRouter(t, chain, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))

	res := r.Dispatch(context.Background(), "star the repo facebook/react", "alice")

	require.Equal(t, types.OutcomeNeedsAuthorization, res.Outcome)
	assert.Contains(t, res.AuthURL, "client_id=test-client")
	assert.Equal(t, int64(0), calls.Load(), "no provider call before authorization")
}

func TestUnrecognizedRequestGetsRephraseHint(t *testing.T) {
	chain := &stubCompleter{err: errors.New("all models in fallback chain exhausted")}
	r, _, calls := testRouter(t, chain, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))

	res := r.Dispatch(context.Background(), "sing me a lullaby", "alice")

	require.Equal(t, types.OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Err, "rephrasing")
	assert.Equal(t, int64(0), calls.Load())
}

func TestMarketRequestRoutesEndToEnd(t *testing.T) {
	chain := &stubCompleter{err: errors.New("offline")}
	r, _, _ := testRouter(t, chain, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"data": {"BTC": {"symbol": "BTC", "name": "Bitcoin", "quote": {"USD": {"price": 61000.5, "percent_change_24h": 0.8}}}}}`))
	}))

	res := r.Dispatch(context.Background(), "What's the price of Bitcoin?", "alice")

	require.Equal(t, types.OutcomeOK, res.Outcome)
	assert.Equal(t, intent.ActionGetPrice, res.Action)
	assert.Contains(t, res.Summary, "Bitcoin")
}

func TestAuthorizationLifecycle(t *testing.T) {
	chain := &stubCompleter{err: errors.New("offline")}
	r, store, _ := testRouter(t, chain, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))

	assert.False(t, r.IsAuthorized("alice"))
	assert.Contains(t, r.AuthorizationURL(), "state=")

	store.Put(auth.Credential{Identity: "alice", AccessToken: "tok"})
	assert.True(t, r.IsAuthorized("alice"))
	assert.Equal(t, []string{"alice"}, r.Identities())

	r.Disconnect("alice")
	assert.False(t, r.IsAuthorized("alice"))
}
