package githubagent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"switchboard/internal/auth"
	"switchboard/internal/logging"
)

// CallbackServer is a short-lived local HTTP listener that receives the
// OAuth redirect, validates the state, exchanges the code, and stores
// the resulting credential. It serves exactly one successful callback.
type CallbackServer struct {
	flow     *OAuthFlow
	store    auth.Store
	identity string

	server *http.Server
	addr   string
	once   sync.Once
	done   chan error
}

// NewCallbackServer binds a callback handler for one identity.
func NewCallbackServer(flow *OAuthFlow, store auth.Store, identity string) *CallbackServer {
	return &CallbackServer{
		flow:     flow,
		store:    store,
		identity: identity,
		done:     make(chan error, 1),
	}
}

// Start listens on the redirect URL's host and port. It returns once
// the listener is up; the result of the exchange arrives on Done.
func (s *CallbackServer) Start() error {
	redirect, err := url.Parse(s.flow.cfg.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	s.addr = ln.Addr().String()
	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, s.handleCallback)
	s.server = &http.Server{Handler: mux}

	go func() {
		if serveErr := s.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.finish(serveErr)
		}
	}()
	logging.Auth("callback listener started on %s for identity %s", redirect.Host, s.identity)
	return nil
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		http.Error(w, "authorization was denied", http.StatusBadRequest)
		s.finish(fmt.Errorf("authorization denied: %s", errCode))
		return
	}
	state := q.Get("state")
	code := q.Get("code")
	if code == "" || !s.flow.ConsumeState(state) {
		logging.AuthWarn("callback with invalid or reused state rejected")
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	cred, err := s.flow.ExchangeCode(ctx, s.identity, code)
	if err != nil {
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		s.finish(err)
		return
	}
	s.store.Put(cred)

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body><h2>Connected.</h2>You can close this tab and return to the terminal.</body></html>")
	s.finish(nil)
}

func (s *CallbackServer) finish(err error) {
	s.once.Do(func() { s.done <- err })
}

// Addr returns the bound listen address, available after Start.
func (s *CallbackServer) Addr() string {
	return s.addr
}

// Done delivers the outcome of the callback exactly once.
func (s *CallbackServer) Done() <-chan error {
	return s.done
}

// Shutdown stops the listener.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
