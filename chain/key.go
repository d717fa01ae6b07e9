package chain

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"
)

// Scheme tags a public key with its signature scheme. Keys are parsed into
// the closed set below exactly once, at the boundary; nothing downstream
// sniffs byte lengths again.
type Scheme uint8

const (
	SchemeEd25519   Scheme = 0x00
	SchemeSecp256k1 Scheme = 0x01
	SchemeSecp256r1 Scheme = 0x02

	// flag reserved for addresses derived from a whole signer set
	schemeMultisig Scheme = 0x03
)

const (
	ed25519KeyLen = ed25519.PublicKeySize
	secpKeyLen    = 33 // compressed point
)

func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeSecp256k1:
		return "secp256k1"
	case SchemeSecp256r1:
		return "secp256r1"
	}
	return "unknown"
}

// PublicKey is a parsed, scheme-tagged public key.
type PublicKey struct {
	scheme Scheme
	bytes  []byte
}

// ParsePublicKey decodes a hex "0x"-prefixed flag||key string into a
// PublicKey, validating the flag and the key length for that flag.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return PublicKey{}, xerrors.Errorf("decode public key: %w", err)
	}
	if len(raw) < 2 {
		return PublicKey{}, xerrors.New("public key too short")
	}

	scheme := Scheme(raw[0])
	key := raw[1:]

	switch scheme {
	case SchemeEd25519:
		if len(key) != ed25519KeyLen {
			return PublicKey{}, xerrors.Errorf("ed25519 key must be %d bytes, got %d", ed25519KeyLen, len(key))
		}
	case SchemeSecp256k1, SchemeSecp256r1:
		if len(key) != secpKeyLen {
			return PublicKey{}, xerrors.Errorf("%s key must be %d bytes, got %d", scheme, secpKeyLen, len(key))
		}
	default:
		return PublicKey{}, xerrors.Errorf("unknown key scheme flag 0x%02x", raw[0])
	}

	return PublicKey{scheme: scheme, bytes: key}, nil
}

func (pk PublicKey) Scheme() Scheme { return pk.scheme }

func (pk PublicKey) Bytes() []byte {
	out := make([]byte, 0, 1+len(pk.bytes))
	out = append(out, byte(pk.scheme))
	return append(out, pk.bytes...)
}

func (pk PublicKey) String() string {
	return "0x" + hex.EncodeToString(pk.Bytes())
}

// Address derives the canonical account address: blake2b-256 over the
// flag-prefixed key bytes.
func (pk PublicKey) Address() string {
	sum := blake2b.Sum256(pk.Bytes())
	return "0x" + hex.EncodeToString(sum[:])
}

// MultisigAddress derives the shared address of a signer set. The preimage
// is threshold plus the ordered (weight, flag, key) list, so the address is
// a content hash: the same configuration always collides to the same
// address and member order is part of the identity.
func MultisigAddress(threshold uint, keys []PublicKey, weights []uint8) string {
	preimage := make([]byte, 0, 3+len(keys)*(2+ed25519KeyLen))
	preimage = append(preimage, byte(schemeMultisig))

	var th [2]byte
	binary.LittleEndian.PutUint16(th[:], uint16(threshold))
	preimage = append(preimage, th[:]...)

	for i, pk := range keys {
		preimage = append(preimage, weights[i])
		preimage = append(preimage, pk.Bytes()...)
	}

	sum := blake2b.Sum256(preimage)
	return "0x" + hex.EncodeToString(sum[:])
}
