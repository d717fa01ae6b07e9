package model

import "time"

// Identity maps a public key to its derived canonical address. Rows are
// immutable once created; re-registering the same key is a no-op.
type Identity struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:true"`
	PublicKey string `gorm:"type:varchar(128);uniqueIndex"`
	Scheme    string `gorm:"type:varchar(16)"`
	Address   string `gorm:"type:varchar(80);uniqueIndex"`
	CreatedAt time.Time
}
