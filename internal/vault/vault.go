// Package vault protects the wallet's long-lived keys at rest under a
// user-chosen password.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/scrypt"

	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// scrypt parameters, interactive profile
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
	nonceLen     = 12

	envelopeVersion = 1
)

const minPasswordLen = 12

// EntrySeedPhrase labels the optional third credential entry holding the
// wallet's seed phrase. Import-by-private-key wallets never write it.
const EntrySeedPhrase = "seed_phrase"

// Vault seals and unseals credentials against a CredentialStore.
type Vault struct {
	creds CredentialStore
}

// New returns a vault backed by the given credential store.
func New(creds CredentialStore) *Vault {
	return &Vault{creds: creds}
}

// ValidatePassword enforces the password policy: at least 12 characters
// including one digit, one uppercase letter, and one ASCII punctuation
// character.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return werr.Validation("Password must be at least 12 characters")
	}
	var digit, upper, punct bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case r < 128 && (unicode.IsPunct(r) || unicode.IsSymbol(r)):
			punct = true
		}
	}
	if !digit {
		return werr.Validation("Password must contain a digit")
	}
	if !upper {
		return werr.Validation("Password must contain an uppercase letter")
	}
	if !punct {
		return werr.Validation("Password must contain a punctuation character")
	}
	return nil
}

// seal encrypts a secret under the password. The label is bound as
// additional authenticated data so an entry cannot be replayed under a
// different key kind.
func seal(password, label, secret string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", werr.Internal("salt generation failed", err)
	}

	aead, err := passwordAEAD(password, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", werr.Internal("nonce generation failed", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(secret), []byte(label))

	envelope := make([]byte, 0, 1+saltLen+nonceLen+len(sealed))
	envelope = append(envelope, envelopeVersion)
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, sealed...)
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// open decrypts an envelope produced by seal.
func open(password, label, envelope string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil || len(raw) <= 1+saltLen+nonceLen {
		return "", werr.Decryption("credential envelope malformed")
	}
	if raw[0] != envelopeVersion {
		return "", werr.Decryption("credential envelope version unknown")
	}

	salt := raw[1 : 1+saltLen]
	nonce := raw[1+saltLen : 1+saltLen+nonceLen]
	sealed := raw[1+saltLen+nonceLen:]

	aead, err := passwordAEAD(password, salt)
	if err != nil {
		return "", err
	}

	plain, err := aead.Open(nil, nonce, sealed, []byte(label))
	if err != nil {
		return "", werr.Decryption("credential envelope rejected")
	}
	return string(plain), nil
}

func passwordAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, werr.Internal("key derivation failed", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, werr.Internal("vault cipher init failed", err)
	}
	return cipher.NewGCM(block)
}

func entryLabel(kind types.KeyKind) string {
	return "key:" + string(kind)
}

// Store seals the spending and viewing keys under the password and writes
// both credential entries. Each key gets an independent ciphertext.
func (v *Vault) Store(password, spendingKey, viewingKey string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}

	sealedSpend, err := seal(password, entryLabel(types.KeySpending), spendingKey)
	if err != nil {
		return err
	}
	sealedView, err := seal(password, entryLabel(types.KeyViewing), viewingKey)
	if err != nil {
		return err
	}

	if err := v.creds.Set(types.KeySpending, sealedSpend); err != nil {
		return err
	}
	if err := v.creds.Set(types.KeyViewing, sealedView); err != nil {
		// keep the store consistent if the second write fails
		_ = v.creds.Delete(types.KeySpending)
		return err
	}
	return nil
}

// Read unseals one key. Reading the viewing key with the user's password
// is the local authentication primitive.
func (v *Vault) Read(password string, which types.KeyKind) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", werr.Validation("Password is required")
	}

	envelope, err := v.creds.Get(which)
	if err != nil {
		return "", err
	}
	return open(password, entryLabel(which), envelope)
}

// StoreSeedPhrase seals the seed phrase as a third credential entry so it
// can be exported later. The password must already unlock the vault.
func (v *Vault) StoreSeedPhrase(password, phrase string) error {
	if _, err := v.Read(password, types.KeyViewing); err != nil {
		return err
	}
	sealed, err := seal(password, EntrySeedPhrase, phrase)
	if err != nil {
		return err
	}
	return v.creds.SetExtra(EntrySeedPhrase, sealed)
}

// ReadSeedPhrase unseals the stored seed phrase. Wallets imported from a
// bare private key have none and get NotFound.
func (v *Vault) ReadSeedPhrase(password string) (string, error) {
	envelope, err := v.creds.GetExtra(EntrySeedPhrase)
	if err != nil {
		return "", err
	}
	return open(password, EntrySeedPhrase, envelope)
}

// Delete removes all credential entries. The viewing key must first be
// readable with the supplied password so an unauthenticated caller cannot
// wipe the vault.
func (v *Vault) Delete(password string) error {
	if _, err := v.Read(password, types.KeyViewing); err != nil {
		return err
	}

	if err := v.creds.Delete(types.KeySpending); err != nil {
		return err
	}
	if err := v.creds.Delete(types.KeyViewing); err != nil {
		return err
	}
	// the seed phrase entry is optional
	if err := v.creds.DeleteExtra(EntrySeedPhrase); err != nil && !werr.Is(err, werr.KindNotFound) {
		return err
	}
	return nil
}

// Exists reports whether a wallet is present without requiring a password.
func (v *Vault) Exists() bool {
	_, err := v.creds.Get(types.KeyViewing)
	return err == nil
}
