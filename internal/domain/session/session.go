// Package session holds the client-visible authentication state of one view
// and the guard that turns it into render or redirect decisions.
package session

import (
	"context"
	"sync"

	"github.com/erp/dashboard/internal/domain/identity"
)

// Session is the authentication state visible to a view.
// While Loading is true the identity is not trusted for routing.
type Session struct {
	Identity *identity.Identity `json:"identity"`
	Loading  bool               `json:"loading"`
}

// Authenticated reports whether the session has resolved to an identity
func (s Session) Authenticated() bool {
	return !s.Loading && s.Identity != nil
}

// View is the read-only side of a Store
type View interface {
	// Current returns a snapshot of the session
	Current() Session
	// Subscribe registers fn for session changes and returns its release function
	Subscribe(fn func(Session)) (unsubscribe func())
}

// Terminator is the narrow capability to end a session
type Terminator interface {
	Logout(ctx context.Context) error
}

// LogoutHook runs when a session is ended, before the reset is published.
// It receives the identity that was logged out, which may be nil.
type LogoutHook func(ctx context.Context, id *identity.Identity) error

// Store is the single owner of a session.
// Every mutation goes through Resolve, Reload or Logout and is published to the
// subscribers after the lock is released.
type Store struct {
	mu        sync.RWMutex
	current   Session
	revision  uint64
	listeners map[uint64]func(Session)
	nextID    uint64
	onLogout  LogoutHook
}

// NewStore creates a store in the loading state
func NewStore(onLogout LogoutHook) *Store {
	return &Store{
		current:   Session{Loading: true},
		listeners: make(map[uint64]func(Session)),
		onLogout:  onLogout,
	}
}

// Current implements View
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Revision counts the published changes
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Subscribe implements View
func (s *Store) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Resolve ends loading with the given identity; nil means anonymous
func (s *Store) Resolve(id *identity.Identity) {
	s.set(Session{Identity: id, Loading: false})
}

// Reload puts the session back into the loading state while a new
// credential is resolved
func (s *Store) Reload() {
	s.set(Session{Loading: true})
}

// Logout runs the logout hook and resets the session to anonymous.
// The reset is published even when the hook fails.
func (s *Store) Logout(ctx context.Context) error {
	var err error
	if s.onLogout != nil {
		err = s.onLogout(ctx, s.Current().Identity)
	}
	s.set(Session{})
	return err
}

func (s *Store) set(next Session) {
	s.mu.Lock()
	if sameSession(s.current, next) {
		s.mu.Unlock()
		return
	}
	s.current = next
	s.revision++
	fns := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

func sameSession(a, b Session) bool {
	if a.Loading != b.Loading {
		return false
	}
	if a.Identity == nil || b.Identity == nil {
		return a.Identity == b.Identity
	}
	return *a.Identity == *b.Identity
}

var (
	_ View       = (*Store)(nil)
	_ Terminator = (*Store)(nil)
)
