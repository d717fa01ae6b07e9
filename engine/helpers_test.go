package engine_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/engine/enginetest"
	"github.com/seyuan/msig_coordinator/model"
	"github.com/seyuan/msig_coordinator/txn"
)

type fixture struct {
	store       *enginetest.MemStore
	registry    *engine.Registry
	conflicts   *engine.ConflictDetector
	coordinator *engine.Coordinator
	resources   *enginetest.ResourceOracleStub
	outcomes    *enginetest.OutcomeOracleStub
	stats       *engine.Stats
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := enginetest.NewMemStore()
	verifier := chain.NewVerifier()
	stats := engine.NewStats()
	resources := enginetest.NewResourceOracleStub()
	outcomes := enginetest.NewOutcomeOracleStub()

	registry := engine.NewRegistry(store, verifier, stats)
	conflicts := engine.NewConflictDetector(store, resources)
	coordinator := engine.NewCoordinator(store, registry, conflicts, verifier, outcomes, stats)

	return &fixture{
		store:       store,
		registry:    registry,
		conflicts:   conflicts,
		coordinator: coordinator,
		resources:   resources,
		outcomes:    outcomes,
		stats:       stats,
	}
}

func signers(t *testing.T, n int) []enginetest.Signer {
	t.Helper()
	out := make([]enginetest.Signer, n)
	for i := range out {
		out[i] = enginetest.NewSigner(t)
	}
	return out
}

func keysOf(ss []enginetest.Signer) []chain.PublicKey {
	keys := make([]chain.PublicKey, len(ss))
	for i, s := range ss {
		keys[i] = s.PK
	}
	return keys
}

// verifiedMultisig creates a multisig from the given signers and walks
// every non-creator member through Accept so it ends up verified.
func verifiedMultisig(t *testing.T, f *fixture, ss []enginetest.Signer, weights []uint8, threshold uint) *engine.MultisigDetail {
	t.Helper()
	ctx := context.Background()

	detail, err := f.registry.Create(ctx, ss[0].PK, keysOf(ss), weights, threshold, "test wallet")
	require.NoError(t, err)

	addr := detail.Multisig.Address
	for _, s := range ss[1:] {
		_, err := f.registry.Accept(ctx, addr, s.PK, s.Sign(chain.ParticipationMessage(addr)))
		require.NoError(t, err)
	}

	detail, err = f.registry.Get(ctx, addr)
	require.NoError(t, err)
	require.True(t, detail.Multisig.IsVerified)
	return detail
}

// transferPayload builds a resolved transaction envelope claiming the
// given owned resource ids.
func transferPayload(t *testing.T, sender string, ownedIDs []string, description string) []byte {
	t.Helper()
	inputs := make([]txn.Input, 0, len(ownedIDs))
	for _, id := range ownedIDs {
		inputs = append(inputs, txn.Input{
			Ref:       &txn.Ref{ID: id, Version: 1, Digest: "0xd" + id[2:]},
			Ownership: txn.OwnershipOwned,
		})
	}
	kind := "transfer"
	if description != "" {
		// distinguishes the digest of otherwise identical payloads
		kind = "transfer:" + description
	}
	raw, err := json.Marshal(map[string]interface{}{
		"kind":       kind,
		"sender":     sender,
		"inputs":     inputs,
		"gasBudget":  "5000",
		"expiration": 0,
	})
	require.NoError(t, err)
	return raw
}

func createProposal(t *testing.T, f *fixture, detail *engine.MultisigDetail, proposer enginetest.Signer, ownedIDs []string, tag string) *model.Proposal {
	t.Helper()
	payload := transferPayload(t, detail.Multisig.Address, ownedIDs, tag)
	proposal, err := f.coordinator.CreateProposal(context.Background(), detail.Multisig.Address,
		proposer.PK, payload, proposer.Sign(payload), model.NetworkTestnet, tag)
	require.NoError(t, err)
	return proposal
}

func ownResources(f *fixture, owner string, ids ...string) {
	f.resources.Own(owner, ids...)
}
