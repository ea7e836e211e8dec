// Package session holds cleartext key material for the lifetime of an
// unlocked wallet.
package session

import (
	"sync"
	"time"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

// ViewSession holds the decrypted viewing key. It has no TTL: the viewing
// key alone cannot move funds and the scanner needs constant access.
// Readers get a copy so reads stay valid across a concurrent Clear.
type ViewSession struct {
	mu  sync.RWMutex
	key string
}

// Set installs the viewing key at unlock.
func (s *ViewSession) Set(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
}

// Get returns a copy of the viewing key, or Unauthorized when locked.
func (s *ViewSession) Get() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == "" {
		return "", werr.Unauthorized("Wallet is locked")
	}
	return s.key, nil
}

// Active reports whether a viewing key is installed.
func (s *ViewSession) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != ""
}

// Clear wipes the key at lock or quit.
func (s *ViewSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = ""
}

// PasswordSession holds the password with a sliding TTL. Spending-key
// operations consume it or fail Unauthorized.
type PasswordSession struct {
	mu       sync.Mutex
	password string
	expires  time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewPasswordSession creates a session with the given sliding TTL.
func NewPasswordSession(ttl time.Duration) *PasswordSession {
	return &PasswordSession{ttl: ttl, now: time.Now}
}

// Set stores the password and starts the TTL window.
func (s *PasswordSession) Set(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.password = password
	s.expires = s.now().Add(s.ttl)
}

// Get returns the password if the session is live. The TTL is not
// extended; callers that legitimately keep the session alive use Extend.
func (s *PasswordSession) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.password == "" || s.now().After(s.expires) {
		s.password = ""
		return "", werr.SessionExpired()
	}
	return s.password, nil
}

// Extend resets the TTL window if the session is still live.
func (s *PasswordSession) Extend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.password == "" || s.now().After(s.expires) {
		s.password = ""
		return werr.SessionExpired()
	}
	s.expires = s.now().Add(s.ttl)
	return nil
}

// Clear wipes the password immediately.
func (s *PasswordSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.password = ""
	s.expires = time.Time{}
}

// Sessions bundles the two process-wide sessions.
type Sessions struct {
	View     *ViewSession
	Password *PasswordSession
}

// NewSessions builds the session pair for a process.
func NewSessions(passwordTTL time.Duration) *Sessions {
	return &Sessions{
		View:     &ViewSession{},
		Password: NewPasswordSession(passwordTTL),
	}
}

// ClearAll wipes both sessions, used at lock and quit.
func (s *Sessions) ClearAll() {
	s.Password.Clear()
	s.View.Clear()
}
