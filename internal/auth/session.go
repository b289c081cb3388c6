// Package auth owns the dashboard session token: the single place it is
// read, written, cleared and observed.
package auth

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// SessionStore persists the session token between runs
type SessionStore interface {
	LoadSession(ctx context.Context) (string, error)
	SaveSession(ctx context.Context, token string) error
	ClearSession(ctx context.Context) error
}

// Session is the in-process view of the auth token. It is safe for
// concurrent use.
type Session struct {
	mu        sync.RWMutex
	token     string
	store     SessionStore
	listeners map[int]func(token string)
	nextID    int
	logger    *logrus.Entry
}

// NewSession creates a session backed by store, restoring any saved token.
func NewSession(ctx context.Context, store SessionStore) (*Session, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{
		store:     store,
		listeners: make(map[int]func(string)),
		logger:    utils.ComponentLogger("auth_session"),
	}

	token, err := store.LoadSession(ctx)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to load session", err.Error())
	}
	s.token = token
	return s, nil
}

// Token returns the current token, "" when logged out
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Get is an alias of Token
func (s *Session) Get() string {
	return s.Token()
}

// LoggedIn reports whether a token is held
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// Set stores a new token and notifies subscribers
func (s *Session) Set(ctx context.Context, token string) error {
	if err := s.store.SaveSession(ctx, token); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to save session", err.Error())
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.logger.Info("Session token stored")
	s.notify(token)
	return nil
}

// Clear drops the token and notifies subscribers. Clearing an empty
// session is a no-op.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.mu.Unlock()

	if err := s.store.ClearSession(ctx); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to clear session", err.Error())
	}
	if had {
		s.logger.Info("Session cleared")
		s.notify("")
	}
	return nil
}

// Subscribe registers fn to be called with the new token after every change.
// The returned function removes the subscription.
func (s *Session) Subscribe(fn func(token string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Claims decodes the current token's payload
func (s *Session) Claims() (*Claims, error) {
	token := s.Token()
	if token == "" {
		return nil, utils.NewAppError(utils.ErrCodeUnauthorized, "not logged in")
	}
	return ParseClaims(token)
}

func (s *Session) notify(token string) {
	s.mu.RLock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(token)
	}
}

// MemoryStore keeps the session in memory only
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadSession implements SessionStore
func (m *MemoryStore) LoadSession(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// SaveSession implements SessionStore
func (m *MemoryStore) SaveSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// ClearSession implements SessionStore
func (m *MemoryStore) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
