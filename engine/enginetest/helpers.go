package enginetest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/model"
)

// Signer is an ed25519 test identity that can sign engine messages.
type Signer struct {
	PK   chain.PublicKey
	priv ed25519.PrivateKey
}

func NewSigner(t *testing.T) Signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pk, err := chain.ParsePublicKey("0x00" + hex.EncodeToString(pub))
	require.NoError(t, err)
	return Signer{PK: pk, priv: priv}
}

func (s Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

// ResourceOracleStub serves ownership lookups from a fixed map.
type ResourceOracleStub struct {
	Resources map[string]chain.OwnedResource
	Err       error
}

func NewResourceOracleStub() *ResourceOracleStub {
	return &ResourceOracleStub{Resources: make(map[string]chain.OwnedResource)}
}

func (o *ResourceOracleStub) ResolveResourceOwnership(ctx context.Context, network model.Network, ids []string) ([]chain.OwnedResource, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	var out []chain.OwnedResource
	for _, id := range ids {
		if res, ok := o.Resources[id]; ok {
			out = append(out, res)
		}
	}
	return out, nil
}

// Own records the ids as live resources held by owner.
func (o *ResourceOracleStub) Own(owner string, ids ...string) {
	for _, id := range ids {
		o.Resources[id] = chain.OwnedResource{ID: id, Version: 1, Owner: owner}
	}
}

// OutcomeOracleStub serves execution outcomes from a fixed map.
type OutcomeOracleStub struct {
	Outcomes map[string]chain.ExecutionOutcome
	Err      error
}

func NewOutcomeOracleStub() *OutcomeOracleStub {
	return &OutcomeOracleStub{Outcomes: make(map[string]chain.ExecutionOutcome)}
}

func (o *OutcomeOracleStub) ResolveExecutionOutcome(ctx context.Context, network model.Network, digest string) (chain.ExecutionOutcome, error) {
	if o.Err != nil {
		return chain.ExecutionOutcome{}, o.Err
	}
	return o.Outcomes[digest], nil
}
