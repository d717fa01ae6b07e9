package enginetest

import (
	"context"
	"sync"

	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/model"
)

// MemStore is an in-memory engine.Store for engine tests. InTx serializes whole
// transactions with one mutex, which is the isolation the engine asks of
// the real store.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	identities map[string]*model.Identity
	multisigs  map[string]*model.Multisig
	members    map[string][]*model.Member
	proposals  map[uint64]*model.Proposal
	byDigest   map[string]uint64
	signatures map[uint64][]*model.Signature
	nextID     uint64
}

func NewMemStore() *MemStore {
	return &MemStore{
		identities: make(map[string]*model.Identity),
		multisigs:  make(map[string]*model.Multisig),
		members:    make(map[string][]*model.Member),
		proposals:  make(map[uint64]*model.Proposal),
		byDigest:   make(map[string]uint64),
		signatures: make(map[uint64][]*model.Signature),
	}
}

func (s *MemStore) InTx(ctx context.Context, fn func(engine.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func (s *MemStore) UpsertIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.identities[identity.PublicKey]; ok {
		*identity = *existing
		return nil
	}
	cp := *identity
	s.identities[identity.PublicKey] = &cp
	return nil
}

func (s *MemStore) GetIdentity(ctx context.Context, publicKey string) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[publicKey]
	if !ok {
		return nil, engine.ErrNotFound
	}
	cp := *identity
	return &cp, nil
}

func (s *MemStore) CreateMultisig(ctx context.Context, msig *model.Multisig, members []*model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.multisigs[msig.Address]; ok {
		return engine.ErrAlreadyExists
	}
	cp := *msig
	s.multisigs[msig.Address] = &cp
	for _, m := range members {
		mc := *m
		s.members[msig.Address] = append(s.members[msig.Address], &mc)
	}
	return nil
}

func (s *MemStore) GetMultisigForUpdate(ctx context.Context, address string) (*model.Multisig, error) {
	return s.GetMultisig(ctx, address)
}

func (s *MemStore) GetMultisig(ctx context.Context, address string) (*model.Multisig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msig, ok := s.multisigs[address]
	if !ok {
		return nil, engine.ErrNotFound
	}
	cp := *msig
	return &cp, nil
}

func (s *MemStore) ListMembers(ctx context.Context, address string) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Member
	for _, m := range s.members[address] {
		out = append(out, *m)
	}
	return out, nil
}

func (s *MemStore) GetMember(ctx context.Context, address, publicKey string) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[address] {
		if m.PublicKey == publicKey {
			cp := *m
			return &cp, nil
		}
	}
	return nil, engine.ErrNotFound
}

func (s *MemStore) MarkMemberAccepted(ctx context.Context, address, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[address] {
		if m.PublicKey == publicKey {
			m.IsAccepted = true
			return nil
		}
	}
	return engine.ErrNotFound
}

func (s *MemStore) CountMembersNotAccepted(ctx context.Context, address string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.members[address] {
		if !m.IsAccepted {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) MarkMultisigVerified(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msig, ok := s.multisigs[address]
	if !ok {
		return engine.ErrNotFound
	}
	msig.IsVerified = true
	return nil
}

func (s *MemStore) CreateProposal(ctx context.Context, proposal *model.Proposal, autoVote *model.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byDigest[proposal.Digest]; ok {
		return engine.ErrAlreadyExists
	}
	s.nextID++
	proposal.ID = s.nextID
	cp := *proposal
	s.proposals[proposal.ID] = &cp
	s.byDigest[proposal.Digest] = proposal.ID

	autoVote.ProposalID = proposal.ID
	sc := *autoVote
	s.signatures[proposal.ID] = append(s.signatures[proposal.ID], &sc)
	return nil
}

func (s *MemStore) GetProposal(ctx context.Context, id uint64) (*model.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) GetProposalByDigest(ctx context.Context, digest string) (*model.Proposal, error) {
	s.mu.Lock()
	id, ok := s.byDigest[digest]
	s.mu.Unlock()
	if !ok {
		return nil, engine.ErrNotFound
	}
	return s.GetProposal(ctx, id)
}

func (s *MemStore) ListPendingProposals(ctx context.Context, address string, network model.Network) ([]model.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Proposal
	for _, p := range s.proposals {
		if p.MultisigAddress == address && p.Network == string(network) && p.Status == model.ProposalPending {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemStore) CountPendingProposals(ctx context.Context, address string, network model.Network) (int64, error) {
	pending, err := s.ListPendingProposals(ctx, address, network)
	if err != nil {
		return 0, err
	}
	return int64(len(pending)), nil
}

func (s *MemStore) ListProposals(ctx context.Context, q engine.ProposalQuery) ([]model.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Proposal
	for id := s.nextID; id >= 1; id-- {
		p, ok := s.proposals[id]
		if !ok {
			continue
		}
		if p.MultisigAddress != q.MultisigAddress {
			continue
		}
		if q.Network != "" && p.Network != string(q.Network) {
			continue
		}
		if q.Status != nil && p.Status != *q.Status {
			continue
		}
		out = append(out, *p)
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemStore) SetProposalStatus(ctx context.Context, id uint64, status model.ProposalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return engine.ErrNotFound
	}
	if p.Status != model.ProposalPending {
		return engine.ErrNotPending
	}
	p.Status = status
	return nil
}

func (s *MemStore) AddSignature(ctx context.Context, sig *model.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.signatures[sig.ProposalID] {
		if existing.PublicKey == sig.PublicKey {
			return engine.ErrAlreadyExists
		}
	}
	cp := *sig
	s.signatures[sig.ProposalID] = append(s.signatures[sig.ProposalID], &cp)
	return nil
}

func (s *MemStore) GetSignature(ctx context.Context, proposalID uint64, publicKey string) (*model.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.signatures[proposalID] {
		if sig.PublicKey == publicKey {
			cp := *sig
			return &cp, nil
		}
	}
	return nil, engine.ErrNotFound
}

func (s *MemStore) ListSignatures(ctx context.Context, proposalID uint64) ([]model.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Signature
	for _, sig := range s.signatures[proposalID] {
		out = append(out, *sig)
	}
	return out, nil
}
