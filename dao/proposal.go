package dao

import (
	"context"

	"gorm.io/gorm"

	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/model"
)

const defaultListLimit = 50

func (d *Dao) CreateProposal(ctx context.Context, proposal *model.Proposal, autoVote *model.Signature) error {
	db := d.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(proposal).Error; err != nil {
			return err
		}
		autoVote.ProposalID = proposal.ID
		return tx.Create(autoVote).Error
	})
	if err != nil {
		log.Errorw("CreateProposal", "err", err, "multisig", proposal.MultisigAddress, "digest", proposal.Digest)
		return translate(err)
	}
	d.invalidatePendingCount(ctx, proposal.MultisigAddress, proposal.Network)
	return nil
}

func (d *Dao) GetProposal(ctx context.Context, id uint64) (*model.Proposal, error) {
	var proposal model.Proposal
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&proposal).Error; err != nil {
		return nil, translate(err)
	}
	return &proposal, nil
}

func (d *Dao) GetProposalByDigest(ctx context.Context, digest string) (*model.Proposal, error) {
	var proposal model.Proposal
	if err := d.db.WithContext(ctx).Where("digest = ?", digest).First(&proposal).Error; err != nil {
		return nil, translate(err)
	}
	return &proposal, nil
}

func (d *Dao) ListPendingProposals(ctx context.Context, address string, network model.Network) ([]model.Proposal, error) {
	var proposals []model.Proposal
	err := d.db.WithContext(ctx).
		Where("multisig_address = ? AND network = ? AND status = ?", address, string(network), model.ProposalPending).
		Order("id asc").
		Find(&proposals).Error
	if err != nil {
		return nil, translate(err)
	}
	d.cachePendingCount(ctx, address, string(network), len(proposals))
	return proposals, nil
}

func (d *Dao) ListProposals(ctx context.Context, q engine.ProposalQuery) ([]model.Proposal, error) {
	limit := q.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	db := d.db.WithContext(ctx).Where("multisig_address = ?", q.MultisigAddress)
	if q.Network != "" {
		db = db.Where("network = ?", string(q.Network))
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}

	var proposals []model.Proposal
	err := db.Order("id desc").Limit(limit).Offset(q.Offset).Find(&proposals).Error
	if err != nil {
		return nil, translate(err)
	}
	return proposals, nil
}

// SetProposalStatus transitions a proposal out of PENDING. The status
// predicate in the update makes the transition a compare-and-swap: a
// writer holding a stale PENDING read cannot overwrite a status another
// writer has meanwhile settled.
func (d *Dao) SetProposalStatus(ctx context.Context, id uint64, status model.ProposalStatus) error {
	proposal, err := d.GetProposal(ctx, id)
	if err != nil {
		return err
	}
	res := d.db.WithContext(ctx).Model(&model.Proposal{}).
		Where("id = ? AND status = ?", id, model.ProposalPending).
		Update("status", status)
	if res.Error != nil {
		log.Errorw("SetProposalStatus", "err", res.Error, "id", id, "status", status)
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return engine.ErrNotPending
	}
	d.invalidatePendingCount(ctx, proposal.MultisigAddress, proposal.Network)
	return nil
}

func (d *Dao) AddSignature(ctx context.Context, sig *model.Signature) error {
	if err := d.db.WithContext(ctx).Create(sig).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (d *Dao) GetSignature(ctx context.Context, proposalID uint64, publicKey string) (*model.Signature, error) {
	var sig model.Signature
	err := d.db.WithContext(ctx).
		Where("proposal_id = ? AND public_key = ?", proposalID, publicKey).
		First(&sig).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sig, nil
}

func (d *Dao) ListSignatures(ctx context.Context, proposalID uint64) ([]model.Signature, error) {
	var sigs []model.Signature
	err := d.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("id asc").
		Find(&sigs).Error
	if err != nil {
		return nil, translate(err)
	}
	return sigs, nil
}
