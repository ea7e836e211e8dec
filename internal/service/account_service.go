// Package service implements the wallet's command surface on top of the
// vault, sessions, store, and remote clients.
package service

import (
	"context"
	"net/url"
	"time"

	"github.com/obscura-systems/wallet-core/internal/adapter"
	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/logging"
	"github.com/obscura-systems/wallet-core/internal/session"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/vault"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// BackupRecoverer installs a remote backup during wallet recovery.
type BackupRecoverer interface {
	Recover(ctx context.Context) (uint64, error)
	DisableBackup(ctx context.Context) error
}

// URLOpener hands a URL to the OS browser.
type URLOpener func(url string) error

// AccountService handles wallet lifecycle and preferences.
type AccountService struct {
	vault     *vault.Vault
	sessions  *session.Sessions
	dataRepo  *storage.EncryptedDataRepository
	prefsRepo *storage.PreferencesRepository
	syncRepo  *storage.SyncStateRepository
	tokenRepo *storage.AuthTokenRepository
	users     adapter.UserClient
	auth      *AuthService
	network   types.Network
	openURL   URLOpener
	logger    *logging.Logger
}

// AccountServiceConfig holds the account service dependencies.
type AccountServiceConfig struct {
	Vault     *vault.Vault
	Sessions  *session.Sessions
	DataRepo  *storage.EncryptedDataRepository
	PrefsRepo *storage.PreferencesRepository
	SyncRepo  *storage.SyncStateRepository
	TokenRepo *storage.AuthTokenRepository
	Users     adapter.UserClient
	Auth      *AuthService
	Network   types.Network
	OpenURL   URLOpener
	Logger    *logging.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(cfg *AccountServiceConfig) *AccountService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Global()
	}
	return &AccountService{
		vault:     cfg.Vault,
		sessions:  cfg.Sessions,
		dataRepo:  cfg.DataRepo,
		prefsRepo: cfg.PrefsRepo,
		syncRepo:  cfg.SyncRepo,
		tokenRepo: cfg.TokenRepo,
		users:     cfg.Users,
		auth:      cfg.Auth,
		network:   cfg.Network,
		openURL:   cfg.OpenURL,
		logger:    logger.WithField("service", "account"),
	}
}

// NewWalletResult is returned by the wallet creation flows.
type NewWalletResult struct {
	Address    string `json:"address"`
	SeedPhrase string `json:"seedPhrase,omitempty"`
}

func (s *AccountService) installWallet(ctx context.Context, password string, sk *keys.SpendingKey, language types.Language) (string, error) {
	vk := sk.ViewingKey()
	address, err := sk.Address()
	if err != nil {
		return "", err
	}

	if err := s.vault.Store(password, sk.String(), vk.String()); err != nil {
		return "", err
	}

	if err := s.prefsRepo.Init(ctx, &storage.Preferences{
		Address:  address,
		Language: language,
		Network:  s.network,
		AuthType: types.AuthLocal,
	}); err != nil {
		return "", err
	}

	s.sessions.View.Set(vk.String())
	s.sessions.Password.Set(password)
	return address, nil
}

// CreateSeedPhraseWallet generates a fresh wallet from a new mnemonic.
func (s *AccountService) CreateSeedPhraseWallet(ctx context.Context, password string, wordCount int, language types.Language) (*NewWalletResult, error) {
	if err := vault.ValidatePassword(password); err != nil {
		return nil, err
	}

	phrase, err := keys.NewSeedPhrase(wordCount, language)
	if err != nil {
		return nil, err
	}
	sk, err := keys.FromSeedPhrase(phrase, language)
	if err != nil {
		return nil, err
	}

	address, err := s.installWallet(ctx, password, sk, language)
	if err != nil {
		return nil, err
	}
	if err := s.vault.StoreSeedPhrase(password, phrase); err != nil {
		return nil, err
	}

	s.logger.WithField("address", address).Info("wallet created")
	return &NewWalletResult{Address: address, SeedPhrase: phrase}, nil
}

// ImportWallet installs a wallet from a bare private key. No seed phrase
// is stored; get_seed_phrase later fails NotFound.
func (s *AccountService) ImportWallet(ctx context.Context, password, privateKey string) (*NewWalletResult, error) {
	if err := vault.ValidatePassword(password); err != nil {
		return nil, err
	}

	sk, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	address, err := s.installWallet(ctx, password, sk, types.LanguageEnglish)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("address", address).Info("wallet imported")
	return &NewWalletResult{Address: address}, nil
}

// RecoverWalletFromSeedPhrase rebuilds a wallet from its mnemonic,
// installing any remote backup first. It returns the height a scanner
// catch-up should start from.
func (s *AccountService) RecoverWalletFromSeedPhrase(ctx context.Context, password, mnemonic string, language types.Language, backup BackupRecoverer) (*NewWalletResult, error) {
	if err := vault.ValidatePassword(password); err != nil {
		return nil, err
	}

	sk, err := keys.FromSeedPhrase(mnemonic, language)
	if err != nil {
		return nil, err
	}
	address, err := s.installWallet(ctx, password, sk, language)
	if err != nil {
		return nil, err
	}
	if err := s.vault.StoreSeedPhrase(password, mnemonic); err != nil {
		return nil, err
	}

	if backup != nil {
		if _, err := backup.Recover(ctx); err != nil && !werr.Is(err, werr.KindNotFound) {
			// scanning from genesis still recovers everything
			s.logger.WithError(err).Warn("backup recovery unavailable, scanning from genesis")
		}
	}

	s.logger.WithField("address", address).Info("wallet recovered from seed phrase")
	return &NewWalletResult{Address: address}, nil
}

// DeleteLocalForRecovery wipes local rows and the watermark so a full
// re-sync can run. Vault entries survive.
func (s *AccountService) DeleteLocalForRecovery(ctx context.Context) error {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return err
	}
	if err := s.dataRepo.DeleteAllForRecovery(ctx, prefs.Address); err != nil {
		return err
	}
	return s.syncRepo.Reset(ctx, prefs.Address, prefs.Network)
}

// DeleteUtil removes the wallet entirely: vault entries, local rows,
// preferences, cached tokens, and sessions. Requires the password.
func (s *AccountService) DeleteUtil(ctx context.Context, password string) error {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return err
	}

	// authenticates the caller before anything is removed
	if err := s.vault.Delete(password); err != nil {
		return err
	}

	if err := s.dataRepo.DeleteAllForRecovery(ctx, prefs.Address); err != nil {
		return err
	}
	if err := s.syncRepo.Reset(ctx, prefs.Address, prefs.Network); err != nil {
		return err
	}
	if err := s.tokenRepo.Delete(ctx, prefs.Address); err != nil {
		return err
	}
	if err := s.prefsRepo.Delete(ctx); err != nil {
		return err
	}

	s.sessions.ClearAll()
	s.logger.WithField("address", prefs.Address).Info("wallet deleted")
	return nil
}

// OpenURL validates and hands a URL to the OS browser.
func (s *AccountService) OpenURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return werr.Validation("Only http and https links can be opened")
	}
	if s.openURL == nil {
		return werr.Internal("no URL opener configured", nil)
	}
	return s.openURL(raw)
}

// GetUsername returns the locally cached username.
func (s *AccountService) GetUsername(ctx context.Context) (string, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}
	if prefs.Username == nil {
		return "", werr.NotFound("username")
	}
	username := *prefs.Username
	if prefs.Discriminator != nil {
		username += "#" + *prefs.Discriminator
	}
	return username, nil
}

// UpdateUsername registers the username remotely and caches it locally.
func (s *AccountService) UpdateUsername(ctx context.Context, username, discriminator string) error {
	if username == "" {
		return werr.Validation("Username is required")
	}

	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return err
	}

	cookie, err := s.auth.Cookie(ctx)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUser(ctx, cookie, &adapter.User{
		Address:       prefs.Address,
		Username:      username,
		Discriminator: discriminator,
		Backup:        prefs.BackupFlag,
	}); err != nil {
		return err
	}
	return s.prefsRepo.UpdateUsername(ctx, username, discriminator)
}

// GetBackupFlag reports whether remote backup is enabled.
func (s *AccountService) GetBackupFlag(ctx context.Context) (bool, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return false, err
	}
	return prefs.BackupFlag, nil
}

// UpdateBackupFlag toggles remote backup. Turning it off with a backup
// on the server deletes the server rows and clears local synced stamps.
func (s *AccountService) UpdateBackupFlag(ctx context.Context, on bool, backup BackupRecoverer) error {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return err
	}
	if prefs.BackupFlag == on {
		return nil
	}

	if !on && backup != nil {
		if err := backup.DisableBackup(ctx); err != nil {
			return err
		}
	}

	cookie, err := s.auth.Cookie(ctx)
	if err == nil {
		if uerr := s.users.UpdateBackup(ctx, cookie, on); uerr != nil {
			return uerr
		}
	}
	return s.prefsRepo.UpdateBackupFlag(ctx, on)
}

// GetNetwork returns the active network.
func (s *AccountService) GetNetwork(ctx context.Context) (types.Network, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}
	return prefs.Network, nil
}

// UpdateNetwork switches the active network. Only testnet is currently
// wired end to end.
func (s *AccountService) UpdateNetwork(ctx context.Context, network types.Network) error {
	if !network.Valid() {
		return werr.Validation("Unknown network: " + string(network))
	}
	if network != types.NetworkTestnet {
		return werr.Validation("Network " + string(network) + " is not available yet")
	}
	return s.prefsRepo.UpdateNetwork(ctx, network)
}

// GetLanguage returns the mnemonic and UI language.
func (s *AccountService) GetLanguage(ctx context.Context) (types.Language, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}
	return prefs.Language, nil
}

// UpdateLanguage sets the mnemonic and UI language.
func (s *AccountService) UpdateLanguage(ctx context.Context, language types.Language) error {
	return s.prefsRepo.UpdateLanguage(ctx, language)
}

// GetAddressString returns the wallet address.
func (s *AccountService) GetAddressString(ctx context.Context) (string, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}
	return prefs.Address, nil
}

// LastSync describes the scan watermark for the UI.
type LastSync struct {
	Height          uint64     `json:"height"`
	BackupTimestamp *time.Time `json:"backupTimestamp,omitempty"`
}

// GetLastSync returns the scan watermark.
func (s *AccountService) GetLastSync(ctx context.Context) (*LastSync, error) {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	state, err := s.syncRepo.Get(ctx, prefs.Address, prefs.Network)
	if err != nil {
		return nil, err
	}
	return &LastSync{Height: state.LastSyncHeight, BackupTimestamp: state.BackupTimestamp}, nil
}
