package service

import (
	"context"
	"time"

	"github.com/obscura-systems/wallet-core/internal/adapter"
	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/session"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/vault"
)

// sessionCookieTTL is how long a fetched cookie is cached locally before
// a fresh sign-in.
const sessionCookieTTL = 12 * time.Hour

// AuthService bootstraps and caches remote service sessions.
type AuthService struct {
	vault     *vault.Vault
	sessions  *session.Sessions
	prefsRepo *storage.PreferencesRepository
	tokenRepo *storage.AuthTokenRepository
	users     adapter.UserClient
}

// NewAuthService creates a new auth service.
func NewAuthService(v *vault.Vault, sessions *session.Sessions, prefsRepo *storage.PreferencesRepository, tokenRepo *storage.AuthTokenRepository, users adapter.UserClient) *AuthService {
	return &AuthService{
		vault:     v,
		sessions:  sessions,
		prefsRepo: prefsRepo,
		tokenRepo: tokenRepo,
		users:     users,
	}
}

// GetSession performs the challenge sign-in against the user service,
// caching the cookie. Signing needs the spending key and therefore a
// live password session.
func (s *AuthService) GetSession(ctx context.Context) (string, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}

	password, err := s.sessions.Password.Get()
	if err != nil {
		return "", err
	}
	privateKey, err := s.vault.Read(password, types.KeySpending)
	if err != nil {
		return "", err
	}
	sk, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}

	cookie, err := s.users.GetSession(ctx, prefs.Address, func(message []byte) (string, error) {
		return sk.Sign(message)
	})
	if err != nil {
		return "", err
	}

	expires := time.Now().Add(sessionCookieTTL)
	if err := s.tokenRepo.Put(ctx, &storage.AuthToken{
		Address:   prefs.Address,
		Token:     cookie,
		ExpiresAt: &expires,
	}); err != nil {
		return "", err
	}
	if err := s.prefsRepo.UpdateAuthType(ctx, types.AuthSession); err != nil {
		return "", err
	}
	return cookie, nil
}

// Cookie returns the cached session cookie, signing in again when the
// cache is empty or expired.
func (s *AuthService) Cookie(ctx context.Context) (string, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}
	if token, err := s.tokenRepo.Get(ctx, prefs.Address); err == nil {
		return token.Token, nil
	}
	return s.GetSession(ctx)
}

// GetAuthType reports how the wallet authenticates remotely.
func (s *AuthService) GetAuthType(ctx context.Context) (types.AuthType, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}
	return prefs.AuthType, nil
}
