package server

import (
	"encoding/hex"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/seyuan/msig_coordinator/chain"
)

const (
	headerPublicKey = "X-Public-Key"
	headerSignature = "X-Signature"
)

// authenticate resolves the caller of a member-authenticated endpoint.
// The signature header covers a canonical binding of method, path and body
// digest, so a captured signature cannot be replayed against a different
// endpoint or payload.
func (s *Server) authenticate(r *http.Request, body []byte) (chain.PublicKey, error) {
	pkHex := r.Header.Get(headerPublicKey)
	if pkHex == "" {
		return chain.PublicKey{}, errMissingAuth
	}
	pk, err := chain.ParsePublicKey(pkHex)
	if err != nil {
		return chain.PublicKey{}, err
	}

	sig, err := decodeHex(r.Header.Get(headerSignature))
	if err != nil {
		return chain.PublicKey{}, err
	}

	sum := blake2b.Sum256(body)
	msg := chain.RequestMessage(r.Method, r.URL.Path, "0x"+hex.EncodeToString(sum[:]))
	if !s.verifier.VerifySignature(msg, pk, sig) {
		return chain.PublicKey{}, errBadAuthSignature
	}
	return pk, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
