package vault

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// CredentialStore persists opaque sealed envelopes. Implementations are
// the OS keyring and an encrypted-file fallback with the same contract.
type CredentialStore interface {
	Set(kind types.KeyKind, envelope string) error
	Get(kind types.KeyKind) (string, error)
	Delete(kind types.KeyKind) error

	SetExtra(name, envelope string) error
	GetExtra(name string) (string, error)
	DeleteExtra(name string) error
}

const keyringService = "com.obscura.wallet"

func keyringUser(kind types.KeyKind) string {
	switch kind {
	case types.KeySpending:
		return keyringService + ".p"
	case types.KeyViewing:
		return keyringService + ".v"
	}
	return keyringService + "." + string(kind)
}

// KeyringStore keeps envelopes in the OS credential store.
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore { return &KeyringStore{} }

func (s *KeyringStore) Set(kind types.KeyKind, envelope string) error {
	if err := keyring.Set(keyringService, keyringUser(kind), envelope); err != nil {
		return werr.Internal("keyring write failed", err)
	}
	return nil
}

func (s *KeyringStore) Get(kind types.KeyKind) (string, error) {
	envelope, err := keyring.Get(keyringService, keyringUser(kind))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", werr.NotFound("wallet credentials")
	}
	if err != nil {
		return "", werr.Internal("keyring read failed", err)
	}
	return envelope, nil
}

func (s *KeyringStore) Delete(kind types.KeyKind) error {
	err := keyring.Delete(keyringService, keyringUser(kind))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return werr.Internal("keyring delete failed", err)
	}
	return nil
}

func (s *KeyringStore) SetExtra(name, envelope string) error {
	if err := keyring.Set(keyringService, keyringService+".s", envelope); err != nil {
		return werr.Internal("keyring write failed", err)
	}
	return nil
}

func (s *KeyringStore) GetExtra(name string) (string, error) {
	envelope, err := keyring.Get(keyringService, keyringService+".s")
	if errors.Is(err, keyring.ErrNotFound) {
		return "", werr.NotFound("seed phrase")
	}
	if err != nil {
		return "", werr.Internal("keyring read failed", err)
	}
	return envelope, nil
}

func (s *KeyringStore) DeleteExtra(name string) error {
	err := keyring.Delete(keyringService, keyringService+".s")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return werr.Internal("keyring delete failed", err)
	}
	return nil
}

// FileStore keeps envelopes as 0600 files under the application data
// directory. The envelopes are already password-encrypted so the files
// hold no plaintext secrets.
type FileStore struct {
	dir string
}

func NewFileStore(appDataDir string) (*FileStore, error) {
	dir := filepath.Join(appDataDir, "credentials")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, werr.Internal("credential directory creation failed", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".cred")
}

func (s *FileStore) write(name, envelope string) error {
	if err := os.WriteFile(s.path(name), []byte(envelope), 0o600); err != nil {
		return werr.Internal("credential write failed", err)
	}
	return nil
}

func (s *FileStore) read(name, resource string) (string, error) {
	raw, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return "", werr.NotFound(resource)
	}
	if err != nil {
		return "", werr.Internal("credential read failed", err)
	}
	return string(raw), nil
}

func (s *FileStore) remove(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return werr.Internal("credential delete failed", err)
	}
	return nil
}

func (s *FileStore) Set(kind types.KeyKind, envelope string) error {
	return s.write(string(kind), envelope)
}

func (s *FileStore) Get(kind types.KeyKind) (string, error) {
	return s.read(string(kind), "wallet credentials")
}

func (s *FileStore) Delete(kind types.KeyKind) error {
	return s.remove(string(kind))
}

func (s *FileStore) SetExtra(name, envelope string) error {
	return s.write(name, envelope)
}

func (s *FileStore) GetExtra(name string) (string, error) {
	return s.read(name, "seed phrase")
}

func (s *FileStore) DeleteExtra(name string) error {
	return s.remove(name)
}

// Open picks the OS keyring when available and falls back to the file
// store otherwise.
func Open(appDataDir string) (CredentialStore, error) {
	probe := keyringService + ".probe"
	if err := keyring.Set(keyringService, probe, "ok"); err == nil {
		_ = keyring.Delete(keyringService, probe)
		return NewKeyringStore(), nil
	}
	return NewFileStore(appDataDir)
}
