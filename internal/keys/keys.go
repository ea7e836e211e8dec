// Package keys implements the wallet key algebra: spending keys, viewing
// keys, addresses, seed phrases and record cryptography.
//
// A spending key is a 32-byte scalar. The viewing key is derived from it and
// is sufficient to decrypt records addressed to the owner but not to spend
// them. Addresses are the bech32 encoding of a hash of the spending key's
// public point.
package keys

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

const (
	// PrivateKeyPrefix is the human-readable prefix of a private key string.
	PrivateKeyPrefix = "APrivateKey1zkp"
	// ViewKeyPrefix is the human-readable prefix of a view key string.
	ViewKeyPrefix = "AViewKey1"
	// AddressPrefix is the human-readable prefix of an address string.
	AddressPrefix = "aleo1"

	// PrivateKeyLength is the length of a private key string.
	PrivateKeyLength = 59
	// ViewKeyLength is the length of a view key string.
	ViewKeyLength = 53
	// AddressLength is the length of an address string.
	AddressLength = 63

	addressHRP = "aleo"
)

// Base58 payload prefixes. Prepended to the 32-byte key material they make
// every encoding start with the expected human-readable prefix at a fixed
// length.
var (
	privateKeyPayloadPrefix = []byte{127, 134, 189, 116, 210, 221, 210, 137, 145, 18, 253}
	viewKeyPayloadPrefix    = []byte{14, 138, 223, 204, 247, 224, 122}
)

// Derivation domains for blake2b. Distinct constants keep the viewing key,
// the record key and the tag key independent of each other.
var (
	domainViewKey   = []byte("obscura.wallet.viewkey.v1")
	domainRecordKey = []byte("obscura.wallet.recordkey.v1")
	domainStoreKey  = []byte("obscura.wallet.storekey.v1")
	domainTagKey    = []byte("obscura.wallet.tagkey.v1")
	domainSeed      = []byte("obscura.wallet.seed.v1")
)

// SpendingKey is the wallet's long-lived secret scalar.
type SpendingKey struct {
	seed [32]byte
}

// NewSpendingKey generates a fresh random spending key.
func NewSpendingKey() (*SpendingKey, error) {
	var sk SpendingKey
	if _, err := io.ReadFull(rand.Reader, sk.seed[:]); err != nil {
		return nil, werr.Internal("entropy source failed", err)
	}
	return &sk, nil
}

// FromEntropy derives a spending key from BIP-39 entropy. The same entropy
// always yields the same key.
func FromEntropy(entropy []byte) (*SpendingKey, error) {
	if len(entropy) != 16 && len(entropy) != 32 {
		return nil, werr.InvalidData(
			fmt.Sprintf("entropy must be 16 or 32 bytes, got %d", len(entropy)),
			"Invalid seed phrase")
	}
	var sk SpendingKey
	copy(sk.seed[:], hash(domainSeed, entropy))
	return &sk, nil
}

// Bytes returns a copy of the raw scalar.
func (sk *SpendingKey) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, sk.seed[:])
	return out
}

// String encodes the spending key as an APrivateKey1zkp… string.
func (sk *SpendingKey) String() string {
	payload := make([]byte, 0, len(privateKeyPayloadPrefix)+32)
	payload = append(payload, privateKeyPayloadPrefix...)
	payload = append(payload, sk.seed[:]...)
	return base58.Encode(payload)
}

// ParsePrivateKey parses and validates an APrivateKey1zkp… string.
func ParsePrivateKey(s string) (*SpendingKey, error) {
	if err := ValidatePrivateKey(s); err != nil {
		return nil, err
	}
	payload := base58.Decode(s)
	var sk SpendingKey
	copy(sk.seed[:], payload[len(privateKeyPayloadPrefix):])
	return &sk, nil
}

// ValidatePrivateKey checks the format of a private key string without
// constructing a key.
func ValidatePrivateKey(s string) error {
	if len(s) != PrivateKeyLength {
		return werr.InvalidData(
			fmt.Sprintf("private key must be %d chars, got %d", PrivateKeyLength, len(s)),
			"Invalid private key")
	}
	if s[:len(PrivateKeyPrefix)] != PrivateKeyPrefix {
		return werr.InvalidData("private key prefix mismatch", "Invalid private key")
	}
	payload := base58.Decode(s)
	if len(payload) != len(privateKeyPayloadPrefix)+32 ||
		!bytes.Equal(payload[:len(privateKeyPayloadPrefix)], privateKeyPayloadPrefix) {
		return werr.InvalidData("private key payload malformed", "Invalid private key")
	}
	return nil
}

// ViewingKey is derived from the spending key and decrypts owned records.
type ViewingKey struct {
	key [32]byte
}

// ViewingKey derives the viewing key for this spending key.
func (sk *SpendingKey) ViewingKey() *ViewingKey {
	var vk ViewingKey
	copy(vk.key[:], hash(domainViewKey, sk.seed[:]))
	return &vk
}

// Bytes returns a copy of the raw viewing key.
func (vk *ViewingKey) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, vk.key[:])
	return out
}

// String encodes the viewing key as an AViewKey1… string.
func (vk *ViewingKey) String() string {
	payload := make([]byte, 0, len(viewKeyPayloadPrefix)+32)
	payload = append(payload, viewKeyPayloadPrefix...)
	payload = append(payload, vk.key[:]...)
	return base58.Encode(payload)
}

// ParseViewKey parses and validates an AViewKey1… string.
func ParseViewKey(s string) (*ViewingKey, error) {
	if len(s) != ViewKeyLength || s[:len(ViewKeyPrefix)] != ViewKeyPrefix {
		return nil, werr.InvalidData("view key malformed", "Invalid view key")
	}
	payload := base58.Decode(s)
	if len(payload) != len(viewKeyPayloadPrefix)+32 ||
		!bytes.Equal(payload[:len(viewKeyPayloadPrefix)], viewKeyPayloadPrefix) {
		return nil, werr.InvalidData("view key payload malformed", "Invalid view key")
	}
	var vk ViewingKey
	copy(vk.key[:], payload[len(viewKeyPayloadPrefix):])
	return &vk, nil
}

// Address derives the wallet address for this spending key.
func (sk *SpendingKey) Address() (string, error) {
	_, pub := btcec.PrivKeyFromBytes(sk.seed[:])
	return addressFromPubKey(pub)
}

// addressFromPubKey hashes the compressed public point and bech32-encodes it.
func addressFromPubKey(pub *btcec.PublicKey) (string, error) {
	digest := hash(nil, pub.SerializeCompressed())
	conv, err := bech32.ConvertBits(digest, 8, 5, true)
	if err != nil {
		return "", werr.Internal("address bit conversion failed", err)
	}
	addr, err := bech32.Encode(addressHRP, conv)
	if err != nil {
		return "", werr.Internal("address encoding failed", err)
	}
	return addr, nil
}

// ValidateAddress checks that s is a well-formed aleo1… address.
func ValidateAddress(s string) error {
	if len(s) != AddressLength {
		return werr.InvalidData(
			fmt.Sprintf("address must be %d chars, got %d", AddressLength, len(s)),
			"Invalid address")
	}
	if s[:len(AddressPrefix)] != AddressPrefix {
		return werr.InvalidData("address prefix mismatch", "Invalid address")
	}
	hrp, _, err := bech32.Decode(s)
	if err != nil {
		return werr.InvalidData(fmt.Sprintf("address checksum invalid: %v", err), "Invalid address")
	}
	if hrp != addressHRP {
		return werr.InvalidData("address hrp mismatch", "Invalid address")
	}
	return nil
}

// hash computes blake2b-256 over domain || data.
func hash(domain []byte, data []byte) []byte {
	h, _ := blake2b.New256(nil)
	if len(domain) > 0 {
		h.Write(domain)
	}
	h.Write(data)
	return h.Sum(nil)
}
