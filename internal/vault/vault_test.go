package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

const (
	testPassword = "Correct-Horse-Battery-9"
	testSpendKey = "APrivateKey1zkp4X9ApjTb7Rv8EABfZRugXBhbPzCL245GyNtYJP5GYY2k"
	testViewKey  = "AViewKey1example"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	creds, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return New(creds)
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Correct-Horse-Battery-9", true},
		{"too short", "Ab1!", false},
		{"no digit", "Correct-Horse-Battery", false},
		{"no uppercase", "correct-horse-battery-9", false},
		{"no punctuation", "CorrectHorseBattery9", false},
		// kana are 3 bytes each; the minimum counts runes, not bytes
		{"multibyte long enough", "ぱすわーどぱすわーど9A!", true},
		{"multibyte 18 bytes but 8 runes", "ぱすわーど9A!", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, werr.Is(err, werr.KindValidation))
			}
		})
	}
}

func TestStoreAndRead(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Store(testPassword, testSpendKey, testViewKey))

	spend, err := v.Read(testPassword, types.KeySpending)
	require.NoError(t, err)
	assert.Equal(t, testSpendKey, spend)

	view, err := v.Read(testPassword, types.KeyViewing)
	require.NoError(t, err)
	assert.Equal(t, testViewKey, view)
}

func TestStoreRejectsWeakPassword(t *testing.T) {
	v := newTestVault(t)
	err := v.Store("weak", testSpendKey, testViewKey)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindValidation))
	assert.False(t, v.Exists())
}

func TestReadWrongPassword(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Store(testPassword, testSpendKey, testViewKey))

	_, err := v.Read("Wrong-Password-123!", types.KeyViewing)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindDecryption))

	_, err = v.Read("", types.KeyViewing)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindValidation))
}

func TestReadMissingWallet(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Read(testPassword, types.KeyViewing)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindNotFound))
}

func TestEnvelopesNotSwappable(t *testing.T) {
	creds, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	v := New(creds)
	require.NoError(t, v.Store(testPassword, testSpendKey, testViewKey))

	// move the spending-key envelope into the viewing-key slot
	sealed, err := creds.Get(types.KeySpending)
	require.NoError(t, err)
	require.NoError(t, creds.Set(types.KeyViewing, sealed))

	_, err = v.Read(testPassword, types.KeyViewing)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindDecryption))
}

func TestSeedPhraseEntry(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Store(testPassword, testSpendKey, testViewKey))

	_, err := v.ReadSeedPhrase(testPassword)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindNotFound))

	phrase := "legal winner thank year wave sausage worth useful legal winner thank yellow"
	require.NoError(t, v.StoreSeedPhrase(testPassword, phrase))

	got, err := v.ReadSeedPhrase(testPassword)
	require.NoError(t, err)
	assert.Equal(t, phrase, got)
}

func TestDeleteRequiresPassword(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Store(testPassword, testSpendKey, testViewKey))

	err := v.Delete("Wrong-Password-123!")
	require.Error(t, err)
	assert.True(t, v.Exists())

	require.NoError(t, v.Delete(testPassword))
	assert.False(t, v.Exists())

	_, err = v.Read(testPassword, types.KeySpending)
	assert.True(t, werr.Is(err, werr.KindNotFound))
}

func TestIndependentCiphertexts(t *testing.T) {
	creds, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	v := New(creds)
	require.NoError(t, v.Store(testPassword, testSpendKey, testSpendKey))

	a, err := creds.Get(types.KeySpending)
	require.NoError(t, err)
	b, err := creds.Get(types.KeyViewing)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
