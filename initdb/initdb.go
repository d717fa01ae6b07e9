package initdb

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
	"gorm.io/gorm"

	"github.com/seyuan/msig_coordinator/model"
)

var log = logging.Logger("initdb")

// NetworkEndpoint pairs a network name with the multiaddr of its chain
// node RPC endpoint.
type NetworkEndpoint struct {
	Network model.Network
	RPCAddr string
}

// InitDatabase creates the schema and seeds the network configuration.
// It refuses to run against a database that was already initialized.
func InitDatabase(ctx context.Context, db *gorm.DB, rds *redis.Client, endpoints []NetworkEndpoint) error {

	if checkExist(db) {
		return xerrors.New("database has been initialized")
	}

	if err := createTables(db); err != nil {
		return err
	}

	if err := seedNetworks(db, endpoints); err != nil {
		return err
	}

	if err := checkDB(db); err != nil {
		return err
	}

	if rds != nil {
		if err := rds.FlushDB(ctx).Err(); err != nil {
			return err
		}
		log.Info("cache flushed")
	}

	return nil
}

func checkExist(db *gorm.DB) bool {
	return db.Migrator().HasTable(&model.NetworkConfig{})
}

func createTables(db *gorm.DB) error {

	startTime := time.Now()
	defer func() {
		log.Infow("createTables", "duration", time.Since(startTime).String())
	}()

	return db.AutoMigrate(
		// 1. registration
		&model.Identity{},
		&model.Multisig{},
		&model.Member{},

		// 2. coordination
		&model.Proposal{},
		&model.Signature{},

		// 3. other
		&model.NetworkConfig{},
	)
}

func seedNetworks(db *gorm.DB, endpoints []NetworkEndpoint) error {

	for _, ep := range endpoints {
		if !ep.Network.Valid() {
			return xerrors.Errorf("unknown network %q", ep.Network)
		}
		row := model.NetworkConfig{
			Name:    string(ep.Network),
			RPCAddr: ep.RPCAddr,
			Enabled: true,
		}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
		log.Infow("network seeded", "name", row.Name, "rpc", row.RPCAddr)
	}

	return nil
}

func checkDB(db *gorm.DB) error {

	var count int64
	if err := db.Model(&model.NetworkConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return xerrors.New("no network configured, pass at least one --network entry")
	}

	log.Infof("initialized with %d network(s)", count)
	return nil
}
