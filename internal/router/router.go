// Package router connects the intent classifier to the per-platform
// dispatchers. One Dispatch call takes raw user text and an identity
// and returns the uniform ActionResult envelope.
package router

import (
	"context"
	"time"

	"switchboard/internal/auth"
	"switchboard/internal/content"
	"switchboard/internal/githubagent"
	"switchboard/internal/intent"
	"switchboard/internal/logging"
	"switchboard/internal/market"
	"switchboard/internal/types"
)

// Router owns the classifier and the platform dispatchers.
type Router struct {
	classifier *intent.Classifier
	github     *githubagent.Dispatcher
	content    *content.Dispatcher
	market     *market.Dispatcher
	oauth      *githubagent.OAuthFlow
	store      auth.Store
}

// New wires a router from its parts.
func New(
	classifier *intent.Classifier,
	github *githubagent.Dispatcher,
	contentDisp *content.Dispatcher,
	marketDisp *market.Dispatcher,
	oauth *githubagent.OAuthFlow,
	store auth.Store,
) *Router {
	return &Router{
		classifier: classifier,
		github:     github,
		content:    contentDisp,
		market:     marketDisp,
		oauth:      oauth,
		store:      store,
	}
}

const rephraseHint = "I could not map that request to anything I can do. I handle Instagram content analysis (paste a link), GitHub operations (repos, issues, stars, pushes), and crypto market data. Try rephrasing with one of those in mind."

// Dispatch classifies rawText and routes it to the matching platform
// dispatcher for the given identity.
func (r *Router) Dispatch(ctx context.Context, rawText, identity string) types.ActionResult {
	in := r.classifier.Classify(ctx, rawText)
	logging.Routing("identity=%s platform=%s action=%s fallback=%v", identity, in.Platform, in.Action, in.Fallback)

	switch in.Platform {
	case intent.PlatformRepositoryAutomation:
		return r.github.Dispatch(ctx, identity, in)
	case intent.PlatformContentAnalysis:
		return r.content.Dispatch(ctx, in)
	case intent.PlatformMarketData:
		return r.market.Dispatch(ctx, in)
	default:
		return types.Failed(rephraseHint)
	}
}

// IsAuthorized reports whether the identity has a stored credential.
func (r *Router) IsAuthorized(identity string) bool {
	return r.store.Has(identity)
}

// AuthorizationURL returns a fresh URL for connecting an account.
func (r *Router) AuthorizationURL() string {
	return r.oauth.AuthorizationURL()
}

// AwaitAuthorization starts the local OAuth callback listener for the
// identity and returns a fresh authorization URL. The caller polls
// IsAuthorized to observe completion and must call the returned stop
// function when done waiting.
func (r *Router) AwaitAuthorization(identity string) (string, func(), error) {
	srv := githubagent.NewCallbackServer(r.oauth, r.store, identity)
	if err := srv.Start(); err != nil {
		return "", nil, err
	}
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return r.oauth.AuthorizationURL(), stop, nil
}

// Connect completes the authorization flow for an identity: the code
// from the OAuth callback is exchanged and the credential stored.
func (r *Router) Connect(ctx context.Context, identity, code string) error {
	cred, err := r.oauth.ExchangeCode(ctx, identity, code)
	if err != nil {
		return err
	}
	r.store.Put(cred)
	return nil
}

// Disconnect drops the identity's credential.
func (r *Router) Disconnect(identity string) {
	r.store.Remove(identity)
}

// Identities lists every identity with a stored credential.
func (r *Router) Identities() []string {
	return r.store.Identities()
}
