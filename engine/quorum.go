package engine

import (
	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/model"
)

// Membership bounds for a multisig.
const (
	MinMembers = 2
	MaxMembers = 10

	MinWeight = 1
	MaxWeight = 255
)

// ValidateQuorumConfig checks a proposed (members, weights, threshold)
// tuple against the structural invariants, failing fast on the first
// violation. Pure, no I/O.
func ValidateQuorumConfig(members []chain.PublicKey, weights []uint8, threshold uint) error {
	if len(members) != len(weights) {
		return validationErr("members and weights length mismatch: %d vs %d", len(members), len(weights))
	}
	if len(members) < MinMembers || len(members) > MaxMembers {
		return validationErr("member count must be between %d and %d, got %d", MinMembers, MaxMembers, len(members))
	}

	var sum uint
	for i, w := range weights {
		// uint8 already caps at MaxWeight; zero is the reachable violation
		if w < MinWeight {
			return validationErr("member %d weight must be between %d and %d", i, MinWeight, MaxWeight)
		}
		sum += uint(w)
	}

	seen := make(map[string]struct{}, len(members))
	for _, pk := range members {
		key := pk.String()
		if _, ok := seen[key]; ok {
			return validationErr("duplicate member %s", key)
		}
		seen[key] = struct{}{}
	}

	if threshold < 1 {
		return validationErr("threshold must be at least 1")
	}
	if threshold > sum {
		return validationErr("threshold %d exceeds total weight %d", threshold, sum)
	}

	return nil
}

// HasReachedThreshold sums the weight of each signing member and reports
// whether the total meets the threshold. Equality satisfies it. Signatures
// with no matching member contribute nothing.
func HasReachedThreshold(signatures []model.Signature, members []model.Member, threshold uint) bool {
	weightByKey := make(map[string]uint8, len(members))
	for _, m := range members {
		weightByKey[m.PublicKey] = m.Weight
	}

	var sum uint
	for _, sig := range signatures {
		sum += uint(weightByKey[sig.PublicKey])
	}
	return sum >= threshold
}
