package keys

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

// SignaturePrefix is the human-readable prefix of a signature string.
const SignaturePrefix = "sign1"

var domainMessage = []byte("obscura.wallet.message.v1")

// Sign produces a detached signature over msg. The signature envelope
// carries the compressed public key so verification can check it against
// the claimed address.
func (sk *SpendingKey) Sign(msg []byte) (string, error) {
	priv, pub := btcec.PrivKeyFromBytes(sk.seed[:])

	digest := hash(domainMessage, msg)
	sig, err := schnorr.Sign(priv, digest)
	if err != nil {
		return "", werr.Internal("signing failed", err)
	}

	payload := make([]byte, 0, 64+33)
	payload = append(payload, sig.Serialize()...)
	payload = append(payload, pub.SerializeCompressed()...)
	return SignaturePrefix + base58.Encode(payload), nil
}

// Verify checks a signature produced by Sign. When address is non-empty the
// signer's public key must also hash to that address.
func Verify(address string, msg []byte, signature string) (bool, error) {
	if len(signature) <= len(SignaturePrefix) ||
		signature[:len(SignaturePrefix)] != SignaturePrefix {
		return false, werr.InvalidData("signature prefix mismatch", "Invalid signature")
	}

	payload := base58.Decode(signature[len(SignaturePrefix):])
	if len(payload) != 64+33 {
		return false, werr.InvalidData("signature payload malformed", "Invalid signature")
	}

	sig, err := schnorr.ParseSignature(payload[:64])
	if err != nil {
		return false, werr.InvalidData("signature bytes rejected", "Invalid signature")
	}
	pub, err := btcec.ParsePubKey(payload[64:])
	if err != nil {
		return false, werr.InvalidData("signer public key rejected", "Invalid signature")
	}

	digest := hash(domainMessage, msg)
	if !sig.Verify(digest, pub) {
		return false, nil
	}

	if address != "" {
		derived, err := addressFromPubKey(pub)
		if err != nil {
			return false, err
		}
		if derived != address {
			return false, nil
		}
	}
	return true, nil
}
