// Package auth tracks which identities hold a bearer credential for the
// source-control provider. Presence of a record is definitionally
// "authorized"; absence means the caller must run the OAuth flow.
package auth

import (
	"sort"
	"sync"
	"time"

	"switchboard/internal/logging"
)

// Credential is one stored bearer token, keyed by identity. The identity
// is opaque to this package: a session id, or a human-readable account
// handle in multi-account mode.
type Credential struct {
	Identity    string
	AccessToken string
	Scope       string
	AcquiredAt  time.Time
}

// Store is the injectable credential table. The default is an in-process
// map; a persistent backend can be swapped in without touching the
// dispatchers.
type Store interface {
	Get(identity string) (Credential, bool)
	Put(cred Credential)
	Remove(identity string)
	Has(identity string) bool
	Identities() []string
}

// MemoryStore is the default in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

// Get returns the credential for an identity, if present.
func (s *MemoryStore) Get(identity string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[identity]
	return cred, ok
}

// Put stores a credential, replacing any existing record for the identity.
func (s *MemoryStore) Put(cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Identity] = cred
	logging.Auth("credential stored for identity %q (scope=%s)", cred.Identity, cred.Scope)
}

// Remove deletes the credential for an identity. Removing an absent
// identity is a no-op.
func (s *MemoryStore) Remove(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[identity]; ok {
		delete(s.creds, identity)
		logging.Auth("credential removed for identity %q", identity)
	}
}

// Has reports whether the identity holds a credential.
func (s *MemoryStore) Has(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.creds[identity]
	return ok
}

// Identities lists identities that currently hold credentials, sorted
// for stable display.
func (s *MemoryStore) Identities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.creds))
	for id := range s.creds {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
