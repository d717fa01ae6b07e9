package engine

import (
	"context"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/model"
)

// Store is the repository surface the engine runs on. Implementations
// return ErrNotFound / ErrAlreadyExists for the corresponding backend
// conditions and never surface raw backend error types.
type Store interface {
	// InTx runs fn against a store whose writes commit atomically.
	// Reads inside fn observe the transaction's own writes.
	InTx(ctx context.Context, fn func(Store) error) error

	UpsertIdentity(ctx context.Context, identity *model.Identity) error
	GetIdentity(ctx context.Context, publicKey string) (*model.Identity, error)

	CreateMultisig(ctx context.Context, msig *model.Multisig, members []*model.Member) error
	// GetMultisigForUpdate locks the multisig row for the duration of the
	// surrounding transaction, serializing accept/finalize per address.
	GetMultisigForUpdate(ctx context.Context, address string) (*model.Multisig, error)
	GetMultisig(ctx context.Context, address string) (*model.Multisig, error)
	ListMembers(ctx context.Context, address string) ([]model.Member, error)
	GetMember(ctx context.Context, address, publicKey string) (*model.Member, error)
	MarkMemberAccepted(ctx context.Context, address, publicKey string) error
	CountMembersNotAccepted(ctx context.Context, address string) (int64, error)
	MarkMultisigVerified(ctx context.Context, address string) error

	CreateProposal(ctx context.Context, proposal *model.Proposal, autoVote *model.Signature) error
	GetProposal(ctx context.Context, id uint64) (*model.Proposal, error)
	GetProposalByDigest(ctx context.Context, digest string) (*model.Proposal, error)
	ListPendingProposals(ctx context.Context, address string, network model.Network) ([]model.Proposal, error)
	CountPendingProposals(ctx context.Context, address string, network model.Network) (int64, error)
	ListProposals(ctx context.Context, q ProposalQuery) ([]model.Proposal, error)
	SetProposalStatus(ctx context.Context, id uint64, status model.ProposalStatus) error

	AddSignature(ctx context.Context, sig *model.Signature) error
	GetSignature(ctx context.Context, proposalID uint64, publicKey string) (*model.Signature, error)
	ListSignatures(ctx context.Context, proposalID uint64) ([]model.Signature, error)
}

// ProposalQuery filters ListProposals. Results are always newest first.
type ProposalQuery struct {
	MultisigAddress string
	Network         model.Network
	Status          *model.ProposalStatus
	Limit           int
	Offset          int
}

// ResourceOracle resolves which of the given resources still exist on
// chain and who owns them now.
type ResourceOracle interface {
	ResolveResourceOwnership(ctx context.Context, network model.Network, ids []string) ([]chain.OwnedResource, error)
}

// OutcomeOracle looks up the execution result of a transaction digest.
type OutcomeOracle interface {
	ResolveExecutionOutcome(ctx context.Context, network model.Network, digest string) (chain.ExecutionOutcome, error)
}
