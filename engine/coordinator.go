package engine

import (
	"context"
	"errors"
	"time"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/model"
	"github.com/seyuan/msig_coordinator/txn"
)

// Coordinator orchestrates the proposal lifecycle: creation with conflict
// detection, weighted voting, cancellation and outcome verification.
type Coordinator struct {
	store     Store
	registry  *Registry
	conflicts *ConflictDetector
	verifier  chain.Verifier
	outcomes  OutcomeOracle
	locks     *addressLocks
	stats     *Stats
	now       func() time.Time
}

func NewCoordinator(store Store, registry *Registry, conflicts *ConflictDetector, verifier chain.Verifier, outcomes OutcomeOracle, stats *Stats) *Coordinator {
	return &Coordinator{
		store:     store,
		registry:  registry,
		conflicts: conflicts,
		verifier:  verifier,
		outcomes:  outcomes,
		locks:     newAddressLocks(),
		stats:     stats,
		now:       time.Now,
	}
}

// ProposalDetail is a proposal with its accumulated signatures.
type ProposalDetail struct {
	Proposal   *model.Proposal
	Signatures []model.Signature
}

// CreateProposal validates the proposer and payload, runs conflict
// detection and persists the proposal together with the proposer's
// auto-vote in one transaction. The check-then-insert window is serialized
// per (multisig, network) by an in-process lock; the digest uniqueness
// constraint backstops anything the lock cannot cover.
func (c *Coordinator) CreateProposal(ctx context.Context, multisigAddress string, proposer chain.PublicKey, payload []byte, signature []byte, network model.Network, description string) (*model.Proposal, error) {
	if !network.Valid() {
		return nil, validationErr("unknown network %q", network)
	}

	detail, err := c.registry.Get(ctx, multisigAddress)
	if err != nil {
		return nil, err
	}
	if !detail.Multisig.IsVerified {
		return nil, authorizationErr("multisig %s is not verified yet", multisigAddress)
	}

	isMember, err := c.registry.IsMember(ctx, multisigAddress, proposer.String(), true)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, authorizationErr("not a member")
	}

	tx, err := txn.Decode(payload)
	if err != nil {
		return nil, validationErr("invalid transaction payload: %s", err)
	}
	if expErr := tx.CheckExpiration(c.now()); expErr != nil {
		return nil, validationErr("%s", expErr)
	}
	if !tx.FullyResolved() {
		return nil, validationErr("transaction has unresolved resource references")
	}

	if !c.verifier.VerifySignature(payload, proposer, signature) {
		return nil, authorizationErr("invalid signature")
	}

	lock := c.locks.get(multisigAddress + "|" + string(network))
	lock.Lock()
	defer lock.Unlock()

	if err := c.conflicts.CheckConflict(ctx, multisigAddress, network, tx); err != nil {
		if IsKind(err, KindConflict) || IsKind(err, KindCapacity) {
			c.stats.ConflictsRejected.Inc()
		}
		return nil, err
	}

	proposal := &model.Proposal{
		MultisigAddress: multisigAddress,
		Network:         string(network),
		Digest:          tx.Digest(),
		Status:          model.ProposalPending,
		Payload:         payload,
		ProposerAddress: proposer.Address(),
		GasBudget:       tx.GasBudget,
		Description:     description,
	}
	autoVote := &model.Signature{
		PublicKey: proposer.String(),
		Bytes:     signature,
	}

	if err := c.store.CreateProposal(ctx, proposal, autoVote); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, conflictErr("proposal with digest %s already exists", proposal.Digest)
		}
		return nil, storeErr(err, "create proposal")
	}

	c.stats.ProposalsCreated.Inc()
	log.Infow("proposal created", "id", proposal.ID, "multisig", multisigAddress, "digest", proposal.Digest, "network", network)
	return proposal, nil
}

// Vote records one member's approval and reports whether the accumulated
// weight now meets the threshold. Voting never transitions the proposal;
// execution and verification happen externally.
func (c *Coordinator) Vote(ctx context.Context, proposalID uint64, voter chain.PublicKey, signature []byte) (bool, error) {
	proposal, err := c.loadProposal(ctx, proposalID)
	if err != nil {
		return false, err
	}
	if proposal.Status != model.ProposalPending {
		return false, conflictErr("proposal %d is %s, not pending", proposalID, proposal.Status)
	}

	isMember, err := c.registry.IsMember(ctx, proposal.MultisigAddress, voter.String(), true)
	if err != nil {
		return false, err
	}
	if !isMember {
		return false, authorizationErr("not a member")
	}

	if _, err := c.store.GetSignature(ctx, proposalID, voter.String()); err == nil {
		return false, conflictErr("member %s already voted on proposal %d", voter.String(), proposalID)
	} else if !errors.Is(err, ErrNotFound) {
		return false, storeErr(err, "load signature")
	}

	if !c.verifier.VerifySignature(proposal.Payload, voter, signature) {
		return false, authorizationErr("invalid signature")
	}

	sig := &model.Signature{
		ProposalID: proposalID,
		PublicKey:  voter.String(),
		Bytes:      signature,
	}
	if err := c.store.AddSignature(ctx, sig); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, conflictErr("member %s already voted on proposal %d", voter.String(), proposalID)
		}
		return false, storeErr(err, "add signature")
	}
	c.stats.VotesRecorded.Inc()

	detail, err := c.registry.Get(ctx, proposal.MultisigAddress)
	if err != nil {
		return false, err
	}
	signatures, err := c.store.ListSignatures(ctx, proposalID)
	if err != nil {
		return false, storeErr(err, "list signatures")
	}

	reached := HasReachedThreshold(signatures, detail.Members, detail.Multisig.Threshold)
	log.Infow("vote recorded", "proposal", proposalID, "voter", voter.Address(), "threshold_reached", reached)
	return reached, nil
}

// Cancel moves a pending proposal to CANCELLED. One way; cancelling a
// proposal that already left PENDING fails.
func (c *Coordinator) Cancel(ctx context.Context, proposalID uint64, requester chain.PublicKey, signature []byte) error {
	proposal, err := c.loadProposal(ctx, proposalID)
	if err != nil {
		return err
	}
	if proposal.Status != model.ProposalPending {
		return conflictErr("proposal %d is %s, not pending", proposalID, proposal.Status)
	}

	isMember, err := c.registry.IsMember(ctx, proposal.MultisigAddress, requester.String(), true)
	if err != nil {
		return err
	}
	if !isMember {
		return authorizationErr("not a member")
	}

	if !c.verifier.VerifySignature(chain.CancelMessage(proposalID, proposal.Digest), requester, signature) {
		return authorizationErr("invalid signature")
	}

	if err := c.store.SetProposalStatus(ctx, proposalID, model.ProposalCancelled); err != nil {
		if errors.Is(err, ErrNotPending) {
			return conflictErr("proposal %d is no longer pending", proposalID)
		}
		return storeErr(err, "cancel proposal")
	}
	c.stats.ProposalsCancelled.Inc()
	log.Infow("proposal cancelled", "id", proposalID, "by", requester.Address())
	return nil
}

// Verify settles a pending proposal against the external execution
// outcome. Terminal proposals short-circuit with their existing status, so
// repeated calls are no-ops.
func (c *Coordinator) Verify(ctx context.Context, proposalID uint64, caller chain.PublicKey) (model.ProposalStatus, error) {
	proposal, err := c.loadProposal(ctx, proposalID)
	if err != nil {
		return "", err
	}

	isMember, err := c.registry.IsMember(ctx, proposal.MultisigAddress, caller.String(), false)
	if err != nil {
		return "", err
	}
	if !isMember {
		return "", authorizationErr("not a member")
	}

	return c.settle(ctx, proposal)
}

// VerifyByDigest is the restricted unauthenticated variant: knowing the
// digest is the capability.
func (c *Coordinator) VerifyByDigest(ctx context.Context, digest string) (model.ProposalStatus, error) {
	proposal, err := c.store.GetProposalByDigest(ctx, digest)
	if errors.Is(err, ErrNotFound) {
		return "", notFoundErr("proposal with digest %s not found", digest)
	}
	if err != nil {
		return "", storeErr(err, "load proposal")
	}
	return c.settle(ctx, proposal)
}

func (c *Coordinator) settle(ctx context.Context, proposal *model.Proposal) (model.ProposalStatus, error) {
	if proposal.Status.Terminal() {
		return proposal.Status, nil
	}

	outcome, err := c.outcomes.ResolveExecutionOutcome(ctx, model.Network(proposal.Network), proposal.Digest)
	if err != nil {
		return "", storeErr(err, "resolve execution outcome")
	}
	if !outcome.Found {
		return "", notFoundErr("transaction %s not found on chain", proposal.Digest)
	}

	status := model.ProposalFailure
	if outcome.Success {
		status = model.ProposalSuccess
	}
	if err := c.store.SetProposalStatus(ctx, proposal.ID, status); err != nil {
		if errors.Is(err, ErrNotPending) {
			// another writer settled or cancelled first; report what landed
			settled, lerr := c.loadProposal(ctx, proposal.ID)
			if lerr != nil {
				return "", lerr
			}
			return settled.Status, nil
		}
		return "", storeErr(err, "settle proposal")
	}
	c.stats.ProposalsVerified.Inc()
	log.Infow("proposal settled", "id", proposal.ID, "digest", proposal.Digest, "status", status)
	return status, nil
}

// ListByMultisig returns the caller's view of a multisig's proposals,
// newest first, with their signatures attached.
func (c *Coordinator) ListByMultisig(ctx context.Context, caller chain.PublicKey, q ProposalQuery) ([]ProposalDetail, error) {
	isMember, err := c.registry.IsMember(ctx, q.MultisigAddress, caller.String(), false)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, authorizationErr("not a member")
	}

	if q.Status != nil && !q.Status.Valid() {
		return nil, validationErr("unknown status %q", *q.Status)
	}

	proposals, err := c.store.ListProposals(ctx, q)
	if err != nil {
		return nil, storeErr(err, "list proposals")
	}

	out := make([]ProposalDetail, 0, len(proposals))
	for i := range proposals {
		signatures, err := c.store.ListSignatures(ctx, proposals[i].ID)
		if err != nil {
			return nil, storeErr(err, "list signatures")
		}
		out = append(out, ProposalDetail{Proposal: &proposals[i], Signatures: signatures})
	}
	return out, nil
}

// PendingCount reports how many proposals are pending for a multisig on
// one network. Served from cache when the store has one.
func (c *Coordinator) PendingCount(ctx context.Context, multisigAddress string, network model.Network) (int64, error) {
	n, err := c.store.CountPendingProposals(ctx, multisigAddress, network)
	if err != nil {
		return 0, storeErr(err, "count pending proposals")
	}
	return n, nil
}

func (c *Coordinator) loadProposal(ctx context.Context, id uint64) (*model.Proposal, error) {
	proposal, err := c.store.GetProposal(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundErr("proposal %d not found", id)
	}
	if err != nil {
		return nil, storeErr(err, "load proposal")
	}
	return proposal, nil
}
