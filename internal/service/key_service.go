package service

import (
	"github.com/obscura-systems/wallet-core/internal/session"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/vault"
)

// KeyService exports key material. Every operation requires a live
// password session or an explicit password, which also refreshes the
// session.
type KeyService struct {
	vault    *vault.Vault
	sessions *session.Sessions
}

// NewKeyService creates a new key service.
func NewKeyService(v *vault.Vault, sessions *session.Sessions) *KeyService {
	return &KeyService{vault: v, sessions: sessions}
}

// resolvePassword takes the explicit password when given, otherwise the
// password session. A successful explicit password restarts the session.
func (s *KeyService) resolvePassword(password string) (string, error) {
	if password != "" {
		// the vault read below authenticates it
		return password, nil
	}
	return s.sessions.Password.Get()
}

// GetPrivateKey exports the spending key string.
func (s *KeyService) GetPrivateKey(password string) (string, error) {
	pw, err := s.resolvePassword(password)
	if err != nil {
		return "", err
	}
	key, err := s.vault.Read(pw, types.KeySpending)
	if err != nil {
		return "", err
	}
	s.sessions.Password.Set(pw)
	return key, nil
}

// GetViewKey exports the viewing key string.
func (s *KeyService) GetViewKey(password string) (string, error) {
	pw, err := s.resolvePassword(password)
	if err != nil {
		return "", err
	}
	key, err := s.vault.Read(pw, types.KeyViewing)
	if err != nil {
		return "", err
	}
	s.sessions.Password.Set(pw)
	return key, nil
}

// GetSeedPhrase exports the stored seed phrase. Wallets imported from a
// bare private key have none.
func (s *KeyService) GetSeedPhrase(password string) (string, error) {
	pw, err := s.resolvePassword(password)
	if err != nil {
		return "", err
	}
	// authenticate before touching the seed phrase entry
	if _, err := s.vault.Read(pw, types.KeyViewing); err != nil {
		return "", err
	}
	phrase, err := s.vault.ReadSeedPhrase(pw)
	if err != nil {
		return "", err
	}
	s.sessions.Password.Set(pw)
	return phrase, nil
}

// Unlock reads the viewing key with the password, installs both sessions,
// and returns the viewing key. This is the local authentication flow.
func (s *KeyService) Unlock(password string) (string, error) {
	viewKey, err := s.vault.Read(password, types.KeyViewing)
	if err != nil {
		return "", err
	}
	s.sessions.View.Set(viewKey)
	s.sessions.Password.Set(password)
	return viewKey, nil
}

// Lock clears both sessions.
func (s *KeyService) Lock() {
	s.sessions.ClearAll()
}
