package chain

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("chain")

// Verifier checks that a signature authorizes a message for a public key.
// The engine consumes this capability; it never inspects key bytes itself.
type Verifier interface {
	VerifySignature(message []byte, pk PublicKey, signature []byte) bool
}

// SchemeVerifier dispatches verification on the key's scheme tag.
type SchemeVerifier struct{}

func NewVerifier() *SchemeVerifier {
	return &SchemeVerifier{}
}

func (v *SchemeVerifier) VerifySignature(message []byte, pk PublicKey, signature []byte) bool {
	switch pk.scheme {
	case SchemeEd25519:
		return ed25519.Verify(ed25519.PublicKey(pk.bytes), message, signature)

	case SchemeSecp256k1:
		pub, err := btcec.ParsePubKey(pk.bytes)
		if err != nil {
			log.Debugw("bad secp256k1 key", "err", err)
			return false
		}
		sig, err := btcecdsa.ParseDERSignature(signature)
		if err != nil {
			return false
		}
		digest := sha256.Sum256(message)
		return sig.Verify(digest[:], pub)

	case SchemeSecp256r1:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pk.bytes)
		if x == nil {
			return false
		}
		pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
		digest := sha256.Sum256(message)
		return ecdsa.VerifyASN1(pub, digest[:], signature)
	}

	return false
}

// Canonical messages. These byte strings are what clients sign for actions
// that are not themselves transactions; both sides must build them
// identically.

// ParticipationMessage binds a member's acceptance to one multisig address.
func ParticipationMessage(multisigAddress string) []byte {
	return []byte("msig-participation|" + multisigAddress)
}

// CancelMessage binds a cancellation to one proposal and its payload digest.
func CancelMessage(proposalID uint64, digest string) []byte {
	return []byte(fmt.Sprintf("msig-cancel|%d|%s", proposalID, digest))
}

// RequestMessage binds an authenticated HTTP request to its method, path
// and body digest.
func RequestMessage(method, path, bodyDigest string) []byte {
	return []byte("msig-request|" + method + "|" + path + "|" + bodyDigest)
}
