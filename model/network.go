package model

// Network names a chain environment a proposal targets. Proposals on
// different networks never conflict with each other.
type Network string

const (
	NetworkMainnet  Network = "mainnet"
	NetworkTestnet  Network = "testnet"
	NetworkDevnet   Network = "devnet"
	NetworkLocalnet Network = "localnet"
)

func (n Network) Valid() bool {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkDevnet, NetworkLocalnet:
		return true
	}
	return false
}

// NetworkConfig is seeded at initdb time, one row per supported network.
type NetworkConfig struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement:true"`
	Name    string `gorm:"type:varchar(32);uniqueIndex"`
	RPCAddr string `gorm:"type:varchar(255)"`
	Enabled bool
}
