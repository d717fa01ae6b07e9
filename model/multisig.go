package model

import "time"

// Multisig is the registered signer set. Address doubles as a content hash
// of (members, weights, threshold), so identical configurations collide on
// the unique index instead of creating a second row.
type Multisig struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement:true"`
	Address    string `gorm:"type:varchar(80);uniqueIndex"`
	Threshold  uint   `gorm:"not null"`
	IsVerified bool   `gorm:"not null;default:false"`
	Name       string `gorm:"type:varchar(255)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Member is one signer of a multisig. MemberOrder fixes the creation-time
// position; external signature combination requires partial signatures in
// exactly this order, so reads must sort by it.
type Member struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement:true"`
	MultisigAddress string `gorm:"type:varchar(80);uniqueIndex:idx_member,priority:1;index"`
	PublicKey       string `gorm:"type:varchar(128);uniqueIndex:idx_member,priority:2"`
	Scheme          string `gorm:"type:varchar(16)"`
	Weight          uint8  `gorm:"not null"`
	IsAccepted      bool   `gorm:"not null;default:false"`
	MemberOrder     uint   `gorm:"column:member_order;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
