package session

import (
	"sync"
	"time"

	"github.com/streakmates/sync-client/internal/domain"
)

// Session is the process-scoped context for one authenticated user.
// Stores receive it at construction instead of reading ambient globals,
// and it is torn down on logout.
type Session struct {
	mu            sync.RWMutex
	user          domain.User
	token         string
	premium       bool
	theme         string
	authenticated bool
	createdAt     time.Time
	onLogout      []func()
}

// New creates an unauthenticated session.
func New() *Session {
	return &Session{createdAt: time.Now()}
}

// Authenticate binds the session to a user and bearer token.
func (s *Session) Authenticate(user domain.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.token = token
	s.authenticated = true
}

// SetPreferences records the account flags the server reports at login.
func (s *Session) SetPreferences(premium bool, theme string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premium = premium
	s.theme = theme
}

// IsAuthenticated reports whether a user is bound to the session.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// User returns the authenticated user.
func (s *Session) User() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// UserID returns the authenticated user's id.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.ID
}

// Token returns the bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Premium reports the account's premium flag.
func (s *Session) Premium() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.premium
}

// Theme returns the account's theme preference.
func (s *Session) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// OnLogout registers a teardown hook. Hooks run in registration order
// when Logout is called.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Logout clears the session and runs every registered teardown hook.
func (s *Session) Logout() {
	s.mu.Lock()
	hooks := s.onLogout
	s.onLogout = nil
	s.user = domain.User{}
	s.token = ""
	s.premium = false
	s.theme = ""
	s.authenticated = false
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
