package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProposalStatus is the lifecycle state. Pending is the only non-terminal
// state; once a proposal leaves it the status never changes again.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "PENDING"
	ProposalCancelled ProposalStatus = "CANCELLED"
	ProposalSuccess   ProposalStatus = "SUCCESS"
	ProposalFailure   ProposalStatus = "FAILURE"
)

func (s ProposalStatus) Terminal() bool {
	return s != ProposalPending
}

func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalPending, ProposalCancelled, ProposalSuccess, ProposalFailure:
		return true
	}
	return false
}

// Proposal is one proposed action awaiting weighted approval. ID is
// autoincrement and therefore monotonic; Digest is the payload hash and
// unique, so byte-identical payloads cannot be proposed twice.
type Proposal struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement:true"`
	MultisigAddress string          `gorm:"type:varchar(80);index:idx_proposal_msig,priority:1"`
	Network         string          `gorm:"type:varchar(32);index:idx_proposal_msig,priority:2"`
	Digest          string          `gorm:"type:varchar(80);uniqueIndex"`
	Status          ProposalStatus  `gorm:"type:varchar(16);index"`
	Payload         []byte          `gorm:"type:mediumblob"`
	ProposerAddress string          `gorm:"type:varchar(80)"`
	GasBudget       decimal.Decimal `gorm:"type:DECIMAL(38,0)"`
	Description     string          `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Signature is one member's approval of a proposal, at most one per
// (proposal, public key). The proposer's row is written in the same
// transaction as the proposal itself.
type Signature struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement:true"`
	ProposalID uint64 `gorm:"uniqueIndex:idx_sig,priority:1;index"`
	PublicKey  string `gorm:"type:varchar(128);uniqueIndex:idx_sig,priority:2"`
	Bytes      []byte `gorm:"type:blob"`
	CreatedAt  time.Time
}
