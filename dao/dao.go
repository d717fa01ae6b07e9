package dao

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/go-sql-driver/mysql"
	logging "github.com/ipfs/go-log/v2"
	"gorm.io/gorm"

	"github.com/seyuan/msig_coordinator/engine"
	"github.com/seyuan/msig_coordinator/model"
)

var log = logging.Logger("dao")

const mysqlDupEntry = 1062

// Dao is the MySQL-backed implementation of engine.Store, with a redis
// cache in front of the hottest reads.
type Dao struct {
	db  *gorm.DB
	rds *redis.Client

	// non-nil inside InTx; collects cache keys to drop after commit
	txInvalidations *[]string
}

func NewDao(db *gorm.DB, rds *redis.Client) *Dao {
	return &Dao{db: db, rds: rds}
}

// InTx runs fn inside one database transaction. Cache invalidations
// issued inside the transaction are deferred until after commit: dropping
// a key pre-commit would let a concurrent reader re-cache the old row
// before the transaction's writes become visible.
func (d *Dao) InTx(ctx context.Context, fn func(engine.Store) error) error {
	var keys []string
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Dao{db: tx, rds: d.rds, txInvalidations: &keys})
	})
	if err != nil {
		return err
	}
	d.dropKeys(ctx, keys)
	return nil
}

// translate maps raw store errors onto the engine's sentinels so gorm and
// driver types never cross the dao boundary.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDupEntry {
		return engine.ErrAlreadyExists
	}
	return err
}

func (d *Dao) UpsertIdentity(ctx context.Context, identity *model.Identity) error {
	var existing model.Identity
	err := d.db.WithContext(ctx).Where("public_key = ?", identity.PublicKey).First(&existing).Error
	if err == nil {
		*identity = existing
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return translate(err)
	}

	if err := d.db.WithContext(ctx).Create(identity).Error; err != nil {
		// lost a race with a concurrent registration of the same key
		if errors.Is(translate(err), engine.ErrAlreadyExists) {
			return translate(d.db.WithContext(ctx).Where("public_key = ?", identity.PublicKey).First(identity).Error)
		}
		return translate(err)
	}
	return nil
}

func (d *Dao) GetIdentity(ctx context.Context, publicKey string) (*model.Identity, error) {
	var identity model.Identity
	if err := d.db.WithContext(ctx).Where("public_key = ?", publicKey).First(&identity).Error; err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

// ListEnabledNetworks returns the networks seeded at initdb time that are
// currently enabled, with their node RPC endpoints.
func (d *Dao) ListEnabledNetworks(ctx context.Context) ([]model.NetworkConfig, error) {
	var configs []model.NetworkConfig
	if err := d.db.WithContext(ctx).Where("enabled = ?", true).Find(&configs).Error; err != nil {
		return nil, translate(err)
	}
	return configs, nil
}
