package engine

import (
	"context"

	"github.com/seyuan/msig_coordinator/model"
	"github.com/seyuan/msig_coordinator/txn"
)

// MaxPendingProposals caps how many proposals a multisig may have pending
// on one network at once.
const MaxPendingProposals = 10

// ConflictDetector rejects proposals that claim an exclusively owned
// resource some other pending proposal already claims. Only one of two
// such proposals can ever execute; the loser would fail on chain, so it is
// refused up front. Best effort: the ownership oracle is loosely
// consistent and no lock is held across check and insert.
type ConflictDetector struct {
	store  Store
	oracle ResourceOracle
}

func NewConflictDetector(store Store, oracle ResourceOracle) *ConflictDetector {
	return &ConflictDetector{store: store, oracle: oracle}
}

// CheckConflict decides whether the candidate transaction may join the
// pending set of (multisigAddress, network).
func (d *ConflictDetector) CheckConflict(ctx context.Context, multisigAddress string, network model.Network, candidate *txn.Transaction) error {
	pending, err := d.store.ListPendingProposals(ctx, multisigAddress, network)
	if err != nil {
		return storeErr(err, "load pending proposals")
	}
	if len(pending) >= MaxPendingProposals {
		return capacityErr("multisig %s already has %d pending proposals on %s", multisigAddress, len(pending), network)
	}

	digest := candidate.Digest()
	for _, p := range pending {
		if p.Digest == digest {
			return conflictErr("identical proposal %s already pending", digest)
		}
	}

	if !candidate.FullyResolved() {
		return validationErr("transaction has unresolved resource references")
	}

	candidateIDs := candidate.OwnedInputIDs()
	if len(candidateIDs) == 0 {
		return nil
	}
	candidateSet := make(map[string]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		candidateSet[id] = struct{}{}
	}

	// resources already claimed by a pending proposal, by id
	claimed := make(map[string]string)
	lookup := append([]string(nil), candidateIDs...)
	for _, p := range pending {
		tx, err := txn.Decode(p.Payload)
		if err != nil {
			// stored payloads were validated at creation time
			log.Errorw("undecodable pending payload", "proposal", p.ID, "err", err)
			continue
		}
		for _, id := range tx.OwnedInputIDs() {
			if _, ok := claimed[id]; !ok {
				claimed[id] = p.Digest
				lookup = append(lookup, id)
			}
		}
	}
	if len(claimed) == 0 {
		return nil
	}

	// A pending proposal referencing a resource that no longer exists under
	// this multisig is stale and must not block new proposals.
	resources, err := d.oracle.ResolveResourceOwnership(ctx, network, lookup)
	if err != nil {
		return storeErr(err, "resolve resource ownership")
	}
	live := make(map[string]struct{}, len(resources))
	for _, res := range resources {
		if res.Owner == multisigAddress {
			live[res.ID] = struct{}{}
		}
	}

	for id := range candidateSet {
		if _, contested := claimed[id]; !contested {
			continue
		}
		if _, stillOwned := live[id]; stillOwned {
			return conflictErr("resource %s is claimed by pending proposal %s", id, claimed[id])
		}
	}

	return nil
}
