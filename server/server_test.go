package server_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/engine/enginetest"
	"github.com/seyuan/msig_coordinator/server"
	"github.com/seyuan/msig_coordinator/txn"
)

type testEnv struct {
	router    http.Handler
	store     *enginetest.MemStore
	registry  *engine.Registry
	resources *enginetest.ResourceOracleStub
	outcomes  *enginetest.OutcomeOracleStub
}

func newTestEnv(t *testing.T, checkers map[string]server.HealthChecker) *testEnv {
	t.Helper()
	store := enginetest.NewMemStore()
	verifier := chain.NewVerifier()
	stats := engine.NewStats()
	resources := enginetest.NewResourceOracleStub()
	outcomes := enginetest.NewOutcomeOracleStub()

	registry := engine.NewRegistry(store, verifier, stats)
	conflicts := engine.NewConflictDetector(store, resources)
	coordinator := engine.NewCoordinator(store, registry, conflicts, verifier, outcomes, stats)
	identities := engine.NewIdentityStore(store)

	srv := server.NewServer(registry, coordinator, identities, verifier, stats, checkers)
	return &testEnv{
		router:    srv.Router(),
		store:     store,
		registry:  registry,
		resources: resources,
		outcomes:  outcomes,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, signer *enginetest.Signer) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	if signer != nil {
		sum := blake2b.Sum256(raw)
		msg := chain.RequestMessage(method, req.URL.Path, "0x"+hex.EncodeToString(sum[:]))
		req.Header.Set("X-Public-Key", signer.PK.String())
		req.Header.Set("X-Signature", "0x"+hex.EncodeToString(signer.Sign(msg)))
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func transferPayload(t *testing.T, sender, tag string, ownedIDs ...string) []byte {
	t.Helper()
	inputs := make([]txn.Input, 0, len(ownedIDs))
	for _, id := range ownedIDs {
		inputs = append(inputs, txn.Input{
			Ref:       &txn.Ref{ID: id, Version: 1, Digest: "0xd"},
			Ownership: txn.OwnershipOwned,
		})
	}
	raw, err := json.Marshal(map[string]interface{}{
		"kind":       "transfer:" + tag,
		"sender":     sender,
		"inputs":     inputs,
		"gasBudget":  "5000",
		"expiration": 0,
	})
	require.NoError(t, err)
	return raw
}

// createVerifiedMultisig drives the full registration flow over HTTP.
func createVerifiedMultisig(t *testing.T, e *testEnv, ss []enginetest.Signer, weights []uint8, threshold uint) string {
	t.Helper()
	keys := make([]string, len(ss))
	for i, s := range ss {
		keys[i] = s.PK.String()
	}

	rec := e.do(t, http.MethodPost, "/multisig", map[string]interface{}{
		"publicKey":  ss[0].PK.String(),
		"publicKeys": keys,
		"weights":    weights,
		"threshold":  threshold,
		"name":       "ops wallet",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Address    string `json:"address"`
		IsVerified bool   `json:"isVerified"`
	}
	decodeInto(t, rec, &created)
	assert.False(t, created.IsVerified)

	for _, s := range ss[1:] {
		rec := e.do(t, http.MethodPost, "/multisig/"+created.Address+"/accept", map[string]interface{}{
			"publicKey": s.PK.String(),
			"signature": "0x" + hex.EncodeToString(s.Sign(chain.ParticipationMessage(created.Address))),
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/multisig/"+created.Address, nil, &ss[0])
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		IsVerified bool `json:"isVerified"`
	}
	decodeInto(t, rec, &got)
	require.True(t, got.IsVerified)

	return created.Address
}

func createProposalHTTP(t *testing.T, e *testEnv, addr string, s enginetest.Signer, tag string, ownedIDs ...string) (uint64, string) {
	t.Helper()
	payload := transferPayload(t, addr, tag, ownedIDs...)
	rec := e.do(t, http.MethodPost, "/proposals", map[string]interface{}{
		"multisigAddress":  addr,
		"transactionBytes": base64.StdEncoding.EncodeToString(payload),
		"publicKey":        s.PK.String(),
		"signature":        "0x" + hex.EncodeToString(s.Sign(payload)),
		"network":          "testnet",
		"description":      tag,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID     uint64 `json:"id"`
		Digest string `json:"digest"`
	}
	decodeInto(t, rec, &created)
	return created.ID, created.Digest
}

func testSigners(t *testing.T, n int) []enginetest.Signer {
	t.Helper()
	out := make([]enginetest.Signer, n)
	for i := range out {
		out[i] = enginetest.NewSigner(t)
	}
	return out
}

func TestRegisterIdentity(t *testing.T) {
	e := newTestEnv(t, nil)
	s := enginetest.NewSigner(t)

	rec := e.do(t, http.MethodPost, "/identity", map[string]string{"publicKey": s.PK.String()}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Address string `json:"address"`
		Scheme  string `json:"scheme"`
	}
	decodeInto(t, rec, &got)
	assert.Equal(t, s.PK.Address(), got.Address)
	assert.Equal(t, "ed25519", got.Scheme)

	rec = e.do(t, http.MethodPost, "/identity", map[string]string{"publicKey": "0xnope"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMultisigRegistrationFlow(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 3)
	createVerifiedMultisig(t, e, ss, []uint8{1, 2, 1}, 3)
}

func TestCreateMultisigInvalidQuorum(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 3)
	keys := []string{ss[0].PK.String(), ss[1].PK.String(), ss[2].PK.String()}

	rec := e.do(t, http.MethodPost, "/multisig", map[string]interface{}{
		"publicKey":  ss[0].PK.String(),
		"publicKeys": keys,
		"weights":    []uint8{1, 1, 1},
		"threshold":  6,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMultisigAuth(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 2)
	addr := createVerifiedMultisig(t, e, ss, []uint8{1, 1}, 2)

	// no auth headers
	rec := e.do(t, http.MethodGet, "/multisig/"+addr, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// non-member
	outsider := enginetest.NewSigner(t)
	rec = e.do(t, http.MethodGet, "/multisig/"+addr, nil, &outsider)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProposalLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 2)
	addr := createVerifiedMultisig(t, e, ss, []uint8{1, 1}, 2)
	e.resources.Own(addr, "0x01")

	id, digest := createProposalHTTP(t, e, addr, ss[0], "pay", "0x01")

	// second member votes and tips the threshold
	payload := transferPayload(t, addr, "pay", "0x01")
	rec := e.do(t, http.MethodPost, fmt.Sprintf("/proposals/%d/vote", id), map[string]string{
		"publicKey": ss[1].PK.String(),
		"signature": "0x" + hex.EncodeToString(ss[1].Sign(payload)),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var vote struct {
		HasReachedThreshold bool `json:"hasReachedThreshold"`
	}
	decodeInto(t, rec, &vote)
	assert.True(t, vote.HasReachedThreshold)

	// duplicate vote
	rec = e.do(t, http.MethodPost, fmt.Sprintf("/proposals/%d/vote", id), map[string]string{
		"publicKey": ss[1].PK.String(),
		"signature": "0x" + hex.EncodeToString(ss[1].Sign(payload)),
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// the transaction executed successfully on chain
	e.outcomes.Outcomes[digest] = chain.ExecutionOutcome{Found: true, Success: true}
	rec = e.do(t, http.MethodPost, fmt.Sprintf("/proposals/%d/verify", id), nil, &ss[0])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var verify struct {
		Verified bool   `json:"verified"`
		Status   string `json:"status"`
	}
	decodeInto(t, rec, &verify)
	assert.True(t, verify.Verified)
	assert.Equal(t, "SUCCESS", verify.Status)
}

func TestDuplicateProposalDigest(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 2)
	addr := createVerifiedMultisig(t, e, ss, []uint8{1, 1}, 2)
	e.resources.Own(addr, "0x01")

	createProposalHTTP(t, e, addr, ss[0], "same", "0x01")

	payload := transferPayload(t, addr, "same", "0x01")
	rec := e.do(t, http.MethodPost, "/proposals", map[string]interface{}{
		"multisigAddress":  addr,
		"transactionBytes": base64.StdEncoding.EncodeToString(payload),
		"publicKey":        ss[1].PK.String(),
		"signature":        "0x" + hex.EncodeToString(ss[1].Sign(payload)),
		"network":          "testnet",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConflictingResourceClaim(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 2)
	addr := createVerifiedMultisig(t, e, ss, []uint8{1, 1}, 2)
	e.resources.Own(addr, "0x01")

	createProposalHTTP(t, e, addr, ss[0], "first", "0x01")

	payload := transferPayload(t, addr, "second", "0x01")
	rec := e.do(t, http.MethodPost, "/proposals", map[string]interface{}{
		"multisigAddress":  addr,
		"transactionBytes": base64.StdEncoding.EncodeToString(payload),
		"publicKey":        ss[0].PK.String(),
		"signature":        "0x" + hex.EncodeToString(ss[0].Sign(payload)),
		"network":          "testnet",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelProposal(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 2)
	addr := createVerifiedMultisig(t, e, ss, []uint8{1, 1}, 2)
	e.resources.Own(addr, "0x01")

	id, digest := createProposalHTTP(t, e, addr, ss[0], "stop me", "0x01")

	cancel := func() *httptest.ResponseRecorder {
		return e.do(t, http.MethodPost, fmt.Sprintf("/proposals/%d/cancel", id), map[string]string{
			"publicKey": ss[1].PK.String(),
			"signature": "0x" + hex.EncodeToString(ss[1].Sign(chain.CancelMessage(id, digest))),
		}, nil)
	}

	rec := cancel()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = cancel()
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyByDigestUnauthenticated(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 2)
	addr := createVerifiedMultisig(t, e, ss, []uint8{1, 1}, 2)
	e.resources.Own(addr, "0x01")

	_, digest := createProposalHTTP(t, e, addr, ss[0], "watch", "0x01")
	e.outcomes.Outcomes[digest] = chain.ExecutionOutcome{Found: true, Success: false}

	rec := e.do(t, http.MethodPost, "/verify/"+digest, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify struct {
		Status string `json:"status"`
	}
	decodeInto(t, rec, &verify)
	assert.Equal(t, "FAILURE", verify.Status)

	rec = e.do(t, http.MethodPost, "/verify/0xmissing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProposals(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 2)
	addr := createVerifiedMultisig(t, e, ss, []uint8{1, 1}, 2)
	e.resources.Own(addr, "0x01", "0x02")

	id1, _ := createProposalHTTP(t, e, addr, ss[0], "a", "0x01")
	id2, _ := createProposalHTTP(t, e, addr, ss[0], "b", "0x02")

	rec := e.do(t, http.MethodGet, "/proposals?multisigAddress="+addr+"&network=testnet", nil, &ss[1])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Proposals []struct {
			ID uint64 `json:"id"`
		} `json:"proposals"`
		PendingCount int64 `json:"pendingCount"`
	}
	decodeInto(t, rec, &got)
	require.Len(t, got.Proposals, 2)
	assert.Equal(t, id2, got.Proposals[0].ID, "newest first")
	assert.Equal(t, id1, got.Proposals[1].ID)
	assert.Equal(t, int64(2), got.PendingCount)

	// missing multisigAddress
	rec = e.do(t, http.MethodGet, "/proposals", nil, &ss[1])
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// non-member
	outsider := enginetest.NewSigner(t)
	rec = e.do(t, http.MethodGet, "/proposals?multisigAddress="+addr, nil, &outsider)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealth(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	failing := func(ctx context.Context) error { return xerrors.New("connection refused") }

	e := newTestEnv(t, map[string]server.HealthChecker{"mysql": ok, "redis": ok})
	rec := e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	e = newTestEnv(t, map[string]server.HealthChecker{"mysql": ok, "redis": failing})
	rec = e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	e := newTestEnv(t, nil)
	ss := testSigners(t, 2)
	addr := createVerifiedMultisig(t, e, ss, []uint8{1, 1}, 2)
	e.resources.Own(addr, "0x01")
	createProposalHTTP(t, e, addr, ss[0], "counted", "0x01")

	rec := e.do(t, http.MethodGet, "/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]uint64
	decodeInto(t, rec, &got)
	assert.Equal(t, uint64(1), got["multisigs_created"])
	assert.Equal(t, uint64(1), got["multisigs_verified"])
	assert.Equal(t, uint64(1), got["proposals_created"])
}
