package txn

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"
)

// Ownership classifies a transaction input. Only owned inputs are
// exclusively claimable; shared and immutable inputs may appear in any
// number of pending proposals at once.
type Ownership string

const (
	OwnershipOwned     Ownership = "owned"
	OwnershipShared    Ownership = "shared"
	OwnershipImmutable Ownership = "immutable"
)

// Ref points at a concrete resource version on chain. A nil Ref on an
// input marks an unresolved placeholder the client left for later binding.
type Ref struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
	Digest  string `json:"digest"`
}

type Input struct {
	Ref       *Ref      `json:"ref"`
	Ownership Ownership `json:"ownership"`
}

// Transaction is the decoded proposal payload envelope. The raw bytes are
// retained because the digest and any later signature checks are over the
// exact bytes the proposer signed, not a re-encoding.
type Transaction struct {
	Kind       string          `json:"kind"`
	Sender     string          `json:"sender"`
	Inputs     []Input         `json:"inputs"`
	GasBudget  decimal.Decimal `json:"gasBudget"`
	Expiration int64           `json:"expiration"`

	raw []byte
}

// MaxExpirationWindow bounds how far in the future a transaction may
// declare its expiration.
const MaxExpirationWindow = 24 * time.Hour

// Decode parses a raw payload envelope. Unknown fields are rejected so a
// digest always covers a payload the engine fully understands.
func Decode(raw []byte) (*Transaction, error) {
	if len(raw) == 0 {
		return nil, xerrors.New("empty transaction payload")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var tx Transaction
	if err := dec.Decode(&tx); err != nil {
		return nil, xerrors.Errorf("decode transaction: %w", err)
	}
	if tx.Kind == "" {
		return nil, xerrors.New("transaction kind missing")
	}
	if tx.Sender == "" {
		return nil, xerrors.New("transaction sender missing")
	}
	for _, in := range tx.Inputs {
		switch in.Ownership {
		case OwnershipOwned, OwnershipShared, OwnershipImmutable:
		default:
			return nil, xerrors.Errorf("unknown input ownership %q", in.Ownership)
		}
	}

	tx.raw = raw
	return &tx, nil
}

// Digest returns the hex encoded blake2b-256 of the raw payload bytes.
func (tx *Transaction) Digest() string {
	sum := blake2b.Sum256(tx.raw)
	return "0x" + hex.EncodeToString(sum[:])
}

// OwnedInputIDs collects the resource ids of exclusively owned inputs.
// Unresolved placeholders contribute nothing.
func (tx *Transaction) OwnedInputIDs() []string {
	var ids []string
	for _, in := range tx.Inputs {
		if in.Ownership == OwnershipOwned && in.Ref != nil && in.Ref.ID != "" {
			ids = append(ids, in.Ref.ID)
		}
	}
	return ids
}

// FullyResolved reports whether every input carries a complete resource
// reference. Owned and shared inputs need id and version; immutable inputs
// need only an id.
func (tx *Transaction) FullyResolved() bool {
	for _, in := range tx.Inputs {
		if in.Ref == nil || in.Ref.ID == "" {
			return false
		}
		if in.Ownership != OwnershipImmutable && in.Ref.Version == 0 {
			return false
		}
	}
	return true
}

// CheckExpiration rejects transactions whose declared expiration is in the
// past or further out than MaxExpirationWindow. Zero means no expiration.
func (tx *Transaction) CheckExpiration(now time.Time) error {
	if tx.Expiration == 0 {
		return nil
	}
	exp := time.Unix(tx.Expiration, 0)
	if exp.Before(now) {
		return xerrors.New("transaction already expired")
	}
	if exp.After(now.Add(MaxExpirationWindow)) {
		return xerrors.New("transaction expiration too far in the future")
	}
	return nil
}
