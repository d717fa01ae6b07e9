package dao

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/seyuan/msig_coordinator/model"
)

// Cache entries are best effort: every write carries a TTL, reads fall
// through to MySQL on any miss or redis error, and errors are logged but
// never surfaced.
const (
	multisigCacheTTL     = 10 * time.Minute
	pendingCountCacheTTL = 30 * time.Second
)

var (
	multisigKeyPrefix     = "msig:"
	pendingCountKeyPrefix = "pending:"
)

func multisigKey(address string) string {
	return multisigKeyPrefix + address
}

func pendingCountKey(address, network string) string {
	return pendingCountKeyPrefix + address + ":" + network
}

func (d *Dao) cachedMultisig(ctx context.Context, address string) (*model.Multisig, bool) {
	if d.rds == nil {
		return nil, false
	}
	raw, err := d.rds.Get(ctx, multisigKey(address)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warnw("multisig cache read", "err", err, "address", address)
		return nil, false
	}
	var msig model.Multisig
	if err := json.Unmarshal([]byte(raw), &msig); err != nil {
		log.Warnw("multisig cache decode", "err", err, "address", address)
		return nil, false
	}
	return &msig, true
}

func (d *Dao) cacheMultisig(ctx context.Context, msig *model.Multisig) {
	if d.rds == nil {
		return
	}
	raw, err := json.Marshal(msig)
	if err != nil {
		return
	}
	if err := d.rds.Set(ctx, multisigKey(msig.Address), raw, multisigCacheTTL).Err(); err != nil {
		log.Warnw("multisig cache write", "err", err, "address", msig.Address)
	}
}

// invalidate drops one cache key, or records it for the post-commit drop
// when running inside a transaction.
func (d *Dao) invalidate(ctx context.Context, key string) {
	if d.txInvalidations != nil {
		*d.txInvalidations = append(*d.txInvalidations, key)
		return
	}
	d.dropKeys(ctx, []string{key})
}

func (d *Dao) dropKeys(ctx context.Context, keys []string) {
	if d.rds == nil || len(keys) == 0 {
		return
	}
	if err := d.rds.Del(ctx, keys...).Err(); err != nil {
		log.Warnw("cache invalidate", "err", err, "keys", keys)
	}
}

func (d *Dao) invalidateMultisig(ctx context.Context, address string) {
	d.invalidate(ctx, multisigKey(address))
}

func (d *Dao) cachePendingCount(ctx context.Context, address, network string, count int) {
	if d.rds == nil {
		return
	}
	err := d.rds.Set(ctx, pendingCountKey(address, network), strconv.Itoa(count), pendingCountCacheTTL).Err()
	if err != nil {
		log.Warnw("pending count cache write", "err", err, "address", address)
	}
}

func (d *Dao) invalidatePendingCount(ctx context.Context, address, network string) {
	d.invalidate(ctx, pendingCountKey(address, network))
}

// CountPendingProposals prefers the cached count and falls back to a
// database count on a miss.
func (d *Dao) CountPendingProposals(ctx context.Context, address string, network model.Network) (int64, error) {
	if d.rds != nil {
		raw, err := d.rds.Get(ctx, pendingCountKey(address, string(network))).Result()
		if err == nil {
			if n, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
				return n, nil
			}
		} else if err != redis.Nil {
			log.Warnw("pending count cache read", "err", err, "address", address)
		}
	}

	var count int64
	err := d.db.WithContext(ctx).Model(&model.Proposal{}).
		Where("multisig_address = ? AND network = ? AND status = ?", address, string(network), model.ProposalPending).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	d.cachePendingCount(ctx, address, string(network), int(count))
	return count, nil
}
