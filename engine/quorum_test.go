package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seyuan/msig_coordinator/chain"
	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/engine/enginetest"
	"github.com/seyuan/msig_coordinator/model"
)

func testKeys(t *testing.T, n int) []chain.PublicKey {
	t.Helper()
	keys := make([]chain.PublicKey, n)
	for i := range keys {
		keys[i] = enginetest.NewSigner(t).PK
	}
	return keys
}

func TestValidateQuorumConfig(t *testing.T) {
	keys := testKeys(t, 3)

	tt := []struct {
		name      string
		members   []chain.PublicKey
		weights   []uint8
		threshold uint
		wantErr   string
	}{
		{"valid 2-of-3", keys, []uint8{1, 1, 1}, 2, ""},
		{"valid threshold equals sum", keys, []uint8{1, 2, 1}, 4, ""},
		{"valid max weight", keys, []uint8{255, 255, 255}, 700, ""},
		{"length mismatch", keys, []uint8{1, 1}, 1, "length mismatch"},
		{"too few members", keys[:1], []uint8{1}, 1, "member count"},
		{"too many members", testKeys(t, 11), make11Weights(), 1, "member count"},
		{"zero weight", keys, []uint8{1, 0, 1}, 1, "weight"},
		{"duplicate member", []chain.PublicKey{keys[0], keys[1], keys[0]}, []uint8{1, 1, 1}, 2, "duplicate member"},
		{"zero threshold", keys, []uint8{1, 1, 1}, 0, "threshold"},
		{"threshold above sum", keys, []uint8{1, 1, 1}, 6, "exceeds total weight"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.ValidateQuorumConfig(tc.members, tc.weights, tc.threshold)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, engine.IsKind(err, engine.KindValidation))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func make11Weights() []uint8 {
	w := make([]uint8, 11)
	for i := range w {
		w[i] = 1
	}
	return w
}

func TestHasReachedThreshold(t *testing.T) {
	members := []model.Member{
		{PublicKey: "a", Weight: 1},
		{PublicKey: "b", Weight: 2},
		{PublicKey: "c", Weight: 1},
	}
	sig := func(keys ...string) []model.Signature {
		out := make([]model.Signature, len(keys))
		for i, k := range keys {
			out[i] = model.Signature{PublicKey: k}
		}
		return out
	}

	assert.False(t, engine.HasReachedThreshold(sig("a"), members, 3))
	assert.False(t, engine.HasReachedThreshold(sig("a", "c"), members, 3))
	assert.True(t, engine.HasReachedThreshold(sig("a", "b"), members, 3))

	// equality satisfies the threshold
	assert.True(t, engine.HasReachedThreshold(sig("b"), members, 2))

	// unmatched signers contribute nothing
	assert.False(t, engine.HasReachedThreshold(sig("z", "y", "x"), members, 1))

	// monotonic: adding a signature never lowers the accumulated weight
	reached := false
	for i, keys := range [][]string{{"a"}, {"a", "c"}, {"a", "c", "b"}} {
		now := engine.HasReachedThreshold(sig(keys...), members, 4)
		if reached {
			assert.True(t, now, "weight regressed at step %d", i)
		}
		reached = now
	}
	assert.True(t, reached)
}
