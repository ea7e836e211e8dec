package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

// RecordCiphertextPrefix marks an on-chain record ciphertext string.
const RecordCiphertextPrefix = "record1"

const gcmNonceLen = 12

// RecordPlaintext is the decrypted form of an on-chain record output.
type RecordPlaintext struct {
	Owner        string            `json:"owner"`
	Microcredits uint64            `json:"microcredits"`
	Name         string            `json:"name"`
	Entries      map[string]string `json:"entries,omitempty"`
}

// recordAEAD builds the AEAD sealing records for this viewing key.
func (vk *ViewingKey) recordAEAD() (cipher.AEAD, error) {
	block, err := aes.NewCipher(hash(domainRecordKey, vk.key[:]))
	if err != nil {
		return nil, werr.Internal("record cipher init failed", err)
	}
	return cipher.NewGCM(block)
}

// EncryptRecord seals a record plaintext into its on-chain string form.
// Only the owner's viewing key can open the result.
func (vk *ViewingKey) EncryptRecord(rec *RecordPlaintext) (string, error) {
	aead, err := vk.recordAEAD()
	if err != nil {
		return "", err
	}

	plain, err := json.Marshal(rec)
	if err != nil {
		return "", werr.Internal("record marshal failed", err)
	}

	nonce := make([]byte, gcmNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", werr.Internal("nonce generation failed", err)
	}

	sealed := aead.Seal(nil, nonce, plain, nil)
	payload := append(nonce, sealed...)
	return RecordCiphertextPrefix + base58.Encode(payload), nil
}

// DecryptRecord attempts to open an on-chain record ciphertext. A failure
// means the record is not addressed to this viewing key.
func (vk *ViewingKey) DecryptRecord(ciphertext string) (*RecordPlaintext, error) {
	if len(ciphertext) <= len(RecordCiphertextPrefix) ||
		ciphertext[:len(RecordCiphertextPrefix)] != RecordCiphertextPrefix {
		return nil, werr.Decryption("record ciphertext prefix mismatch")
	}

	payload := base58.Decode(ciphertext[len(RecordCiphertextPrefix):])
	if len(payload) <= gcmNonceLen {
		return nil, werr.Decryption("record ciphertext truncated")
	}

	aead, err := vk.recordAEAD()
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, payload[:gcmNonceLen], payload[gcmNonceLen:], nil)
	if err != nil {
		return nil, werr.Decryption("record ciphertext rejected")
	}

	var rec RecordPlaintext
	if err := json.Unmarshal(plain, &rec); err != nil {
		return nil, werr.Decryption("record plaintext malformed")
	}
	return &rec, nil
}

// Tag computes the viewing-key-derived tag linking a record commitment to
// the serial number revealed when the record is spent.
func (vk *ViewingKey) Tag(commitment string) string {
	skTag := hash(domainTagKey, vk.key[:])
	return hex.EncodeToString(hash(skTag, []byte(commitment)))
}

// SealPayload encrypts an arbitrary pointer payload for the local store.
// The ciphertext and nonce are stored in separate columns.
func (vk *ViewingKey) SealPayload(plain []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(hash(domainStoreKey, vk.key[:]))
	if err != nil {
		return nil, nil, werr.Internal("store cipher init failed", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, werr.Internal("store cipher init failed", err)
	}

	nonce = make([]byte, gcmNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, werr.Internal("nonce generation failed", err)
	}
	return aead.Seal(nil, nonce, plain, nil), nonce, nil
}

// OpenPayload decrypts a pointer payload sealed with SealPayload.
func (vk *ViewingKey) OpenPayload(ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(hash(domainStoreKey, vk.key[:]))
	if err != nil {
		return nil, werr.Internal("store cipher init failed", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, werr.Internal("store cipher init failed", err)
	}
	if len(nonce) != gcmNonceLen {
		return nil, werr.Decryption("payload nonce malformed")
	}

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, werr.Decryption("payload ciphertext rejected")
	}
	return plain, nil
}
