package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

// Well-formed private key used across the test suite.
const samplePrivateKey = "APrivateKey1zkp4X9ApjTb7Rv8EABfZRugXBhbPzCL245GyNtYJP5GYY2k"

func TestNewSpendingKeyStringForm(t *testing.T) {
	sk, err := NewSpendingKey()
	require.NoError(t, err)

	s := sk.String()
	assert.Len(t, s, PrivateKeyLength)
	assert.True(t, strings.HasPrefix(s, PrivateKeyPrefix))
}

func TestParsePrivateKeyRoundTrip(t *testing.T) {
	sk, err := NewSpendingKey()
	require.NoError(t, err)

	parsed, err := ParsePrivateKey(sk.String())
	require.NoError(t, err)
	assert.Equal(t, sk.Bytes(), parsed.Bytes())
}

func TestParseSamplePrivateKey(t *testing.T) {
	sk, err := ParsePrivateKey(samplePrivateKey)
	require.NoError(t, err)
	assert.Equal(t, samplePrivateKey, sk.String())
}

func TestValidatePrivateKeyRejectsCorruption(t *testing.T) {
	// Altering the 13th character breaks the prefix.
	corrupted := samplePrivateKey[:12] + "x" + samplePrivateKey[13:]
	err := ValidatePrivateKey(corrupted)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindInvalidData))

	assert.Error(t, ValidatePrivateKey(samplePrivateKey[:58]))
	assert.Error(t, ValidatePrivateKey(samplePrivateKey+"Q"))
	assert.Error(t, ValidatePrivateKey(""))
}

func TestViewingKeyStringForm(t *testing.T) {
	sk, err := ParsePrivateKey(samplePrivateKey)
	require.NoError(t, err)

	vk := sk.ViewingKey()
	s := vk.String()
	assert.Len(t, s, ViewKeyLength)
	assert.True(t, strings.HasPrefix(s, ViewKeyPrefix))

	parsed, err := ParseViewKey(s)
	require.NoError(t, err)
	assert.Equal(t, vk.Bytes(), parsed.Bytes())
}

func TestViewingKeyDeterministic(t *testing.T) {
	sk, err := ParsePrivateKey(samplePrivateKey)
	require.NoError(t, err)

	assert.Equal(t, sk.ViewingKey().String(), sk.ViewingKey().String())
}

func TestAddressFormat(t *testing.T) {
	sk, err := NewSpendingKey()
	require.NoError(t, err)

	addr, err := sk.Address()
	require.NoError(t, err)

	assert.Len(t, addr, AddressLength)
	assert.True(t, strings.HasPrefix(addr, AddressPrefix))
	assert.NoError(t, ValidateAddress(addr))
}

func TestAddressDeterministic(t *testing.T) {
	sk, err := ParsePrivateKey(samplePrivateKey)
	require.NoError(t, err)

	a1, err := sk.Address()
	require.NoError(t, err)
	a2, err := sk.Address()
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
}

func TestValidateAddressRejectsMalformed(t *testing.T) {
	sk, err := NewSpendingKey()
	require.NoError(t, err)
	addr, err := sk.Address()
	require.NoError(t, err)

	// Flip one character in the data part; the checksum must catch it.
	var flipped string
	if addr[10] == 'q' {
		flipped = addr[:10] + "p" + addr[11:]
	} else {
		flipped = addr[:10] + "q" + addr[11:]
	}
	assert.Error(t, ValidateAddress(flipped))

	assert.Error(t, ValidateAddress(addr[:62]))
	assert.Error(t, ValidateAddress("btc1"+addr[5:]))
	assert.Error(t, ValidateAddress(""))
}
