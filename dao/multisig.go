package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seyuan/msig_coordinator/model"
)

func (d *Dao) CreateMultisig(ctx context.Context, msig *model.Multisig, members []*model.Member) error {
	db := d.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msig).Error; err != nil {
			return err
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		log.Errorw("CreateMultisig", "err", err, "address", msig.Address)
		return translate(err)
	}
	return nil
}

func (d *Dao) GetMultisigForUpdate(ctx context.Context, address string) (*model.Multisig, error) {
	var msig model.Multisig
	err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&msig).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msig, nil
}

func (d *Dao) GetMultisig(ctx context.Context, address string) (*model.Multisig, error) {
	if msig, ok := d.cachedMultisig(ctx, address); ok {
		return msig, nil
	}

	var msig model.Multisig
	if err := d.db.WithContext(ctx).Where("address = ?", address).First(&msig).Error; err != nil {
		return nil, translate(err)
	}

	d.cacheMultisig(ctx, &msig)
	return &msig, nil
}

func (d *Dao) ListMembers(ctx context.Context, address string) ([]model.Member, error) {
	var members []model.Member
	err := d.db.WithContext(ctx).
		Where("multisig_address = ?", address).
		Order("member_order asc").
		Find(&members).Error
	if err != nil {
		return nil, translate(err)
	}
	return members, nil
}

func (d *Dao) GetMember(ctx context.Context, address, publicKey string) (*model.Member, error) {
	var member model.Member
	err := d.db.WithContext(ctx).
		Where("multisig_address = ? AND public_key = ?", address, publicKey).
		First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (d *Dao) MarkMemberAccepted(ctx context.Context, address, publicKey string) error {
	err := d.db.WithContext(ctx).Model(&model.Member{}).
		Where("multisig_address = ? AND public_key = ?", address, publicKey).
		Update("is_accepted", true).Error
	if err != nil {
		log.Errorw("MarkMemberAccepted", "err", err, "address", address)
		return translate(err)
	}
	d.invalidateMultisig(ctx, address)
	return nil
}

func (d *Dao) CountMembersNotAccepted(ctx context.Context, address string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.Member{}).
		Where("multisig_address = ? AND is_accepted = ?", address, false).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (d *Dao) MarkMultisigVerified(ctx context.Context, address string) error {
	err := d.db.WithContext(ctx).Model(&model.Multisig{}).
		Where("address = ?", address).
		Update("is_verified", true).Error
	if err != nil {
		log.Errorw("MarkMultisigVerified", "err", err, "address", address)
		return translate(err)
	}
	d.invalidateMultisig(ctx, address)
	return nil
}
