package engine

import (
	"context"
	"errors"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/model"
)

// IdentityStore maps public keys to canonical addresses. Registration is
// an idempotent upsert; an identity never changes once created.
type IdentityStore struct {
	store Store
}

func NewIdentityStore(store Store) *IdentityStore {
	return &IdentityStore{store: store}
}

// Register parses the public key, derives its address and upserts the
// identity row. Registering the same key twice returns the same identity.
func (s *IdentityStore) Register(ctx context.Context, publicKey string) (*model.Identity, error) {
	pk, err := chain.ParsePublicKey(publicKey)
	if err != nil {
		return nil, validationErr("invalid public key: %s", err)
	}

	identity := &model.Identity{
		PublicKey: pk.String(),
		Scheme:    pk.Scheme().String(),
		Address:   pk.Address(),
	}
	if err := s.store.UpsertIdentity(ctx, identity); err != nil {
		return nil, storeErr(err, "register identity")
	}
	return identity, nil
}

// Lookup returns the identity registered for a public key.
func (s *IdentityStore) Lookup(ctx context.Context, publicKey string) (*model.Identity, error) {
	identity, err := s.store.GetIdentity(ctx, publicKey)
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundErr("identity %s not registered", publicKey)
	}
	if err != nil {
		return nil, storeErr(err, "lookup identity")
	}
	return identity, nil
}
