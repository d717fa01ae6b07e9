package engine

import (
	"context"
	"errors"

	logging "github.com/ipfs/go-log/v2"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/model"
)

var log = logging.Logger("engine")

// Registry owns multisig and member records and drives the one-way
// UNVERIFIED -> VERIFIED transition.
type Registry struct {
	store    Store
	verifier chain.Verifier
	stats    *Stats
}

func NewRegistry(store Store, verifier chain.Verifier, stats *Stats) *Registry {
	return &Registry{store: store, verifier: verifier, stats: stats}
}

// MultisigDetail is a multisig together with its members, sorted by their
// creation-time order.
type MultisigDetail struct {
	Multisig *model.Multisig
	Members  []model.Member
}

// Create validates the quorum configuration, derives the content-hash
// address, and persists the multisig with its member rows in one
// transaction. The creator's member row starts accepted; everyone else's
// starts pending.
func (r *Registry) Create(ctx context.Context, creator chain.PublicKey, members []chain.PublicKey, weights []uint8, threshold uint, name string) (*MultisigDetail, error) {
	if err := ValidateQuorumConfig(members, weights, threshold); err != nil {
		return nil, err
	}

	creatorIdx := -1
	for i, pk := range members {
		if pk.String() == creator.String() {
			creatorIdx = i
			break
		}
	}
	if creatorIdx < 0 {
		return nil, validationErr("creator %s is not in the member list", creator.String())
	}

	address := chain.MultisigAddress(threshold, members, weights)

	msig := &model.Multisig{
		Address:    address,
		Threshold:  threshold,
		IsVerified: false,
		Name:       name,
	}

	rows := make([]*model.Member, len(members))
	for i, pk := range members {
		rows[i] = &model.Member{
			MultisigAddress: address,
			PublicKey:       pk.String(),
			Scheme:          pk.Scheme().String(),
			Weight:          weights[i],
			IsAccepted:      i == creatorIdx,
			MemberOrder:     uint(i),
		}
	}

	if err := r.store.CreateMultisig(ctx, msig, rows); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, conflictErr("multisig %s already exists", address)
		}
		return nil, storeErr(err, "create multisig")
	}

	r.stats.MultisigsCreated.Inc()
	log.Infow("multisig created", "address", address, "members", len(rows), "threshold", threshold)

	detail := &MultisigDetail{Multisig: msig}
	for _, m := range rows {
		detail.Members = append(detail.Members, *m)
	}
	return detail, nil
}

// Accept records one member's acceptance and, if that member was the last
// holdout, flips the multisig to verified. The membership read, the accept
// write and the verified flip all run in one transaction against a locked
// multisig row, so two concurrent accepts cannot both observe "not yet all
// accepted" and drop the flip.
func (r *Registry) Accept(ctx context.Context, address string, member chain.PublicKey, proof []byte) (*MultisigDetail, error) {
	if !r.verifier.VerifySignature(chain.ParticipationMessage(address), member, proof) {
		return nil, authorizationErr("invalid signature")
	}

	err := r.store.InTx(ctx, func(tx Store) error {
		msig, err := tx.GetMultisigForUpdate(ctx, address)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFoundErr("multisig %s not found", address)
			}
			return storeErr(err, "load multisig")
		}

		m, err := tx.GetMember(ctx, address, member.String())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return authorizationErr("not a member")
			}
			return storeErr(err, "load member")
		}

		if !m.IsAccepted {
			if err := tx.MarkMemberAccepted(ctx, address, member.String()); err != nil {
				return storeErr(err, "mark member accepted")
			}
		}

		if msig.IsVerified {
			// verified is monotonic; a late accept changes nothing
			return nil
		}

		remaining, err := tx.CountMembersNotAccepted(ctx, address)
		if err != nil {
			return storeErr(err, "count pending members")
		}
		if remaining == 0 {
			if err := tx.MarkMultisigVerified(ctx, address); err != nil {
				return storeErr(err, "mark multisig verified")
			}
			r.stats.MultisigsVerified.Inc()
			log.Infow("multisig verified", "address", address)
		}
		return nil
	})
	if err != nil {
		var engErr *Error
		if errors.As(err, &engErr) {
			return nil, engErr
		}
		return nil, storeErr(err, "accept member")
	}

	return r.Get(ctx, address)
}

// IsMember reports whether the public key is a member of the multisig,
// optionally requiring the member to have accepted.
func (r *Registry) IsMember(ctx context.Context, address, publicKey string, requireAccepted bool) (bool, error) {
	m, err := r.store.GetMember(ctx, address, publicKey)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "load member")
	}
	if requireAccepted && !m.IsAccepted {
		return false, nil
	}
	return true, nil
}

// Get returns the multisig and its members in member order.
func (r *Registry) Get(ctx context.Context, address string) (*MultisigDetail, error) {
	msig, err := r.store.GetMultisig(ctx, address)
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundErr("multisig %s not found", address)
	}
	if err != nil {
		return nil, storeErr(err, "load multisig")
	}

	members, err := r.store.ListMembers(ctx, address)
	if err != nil {
		return nil, storeErr(err, "load members")
	}

	return &MultisigDetail{Multisig: msig, Members: members}, nil
}
