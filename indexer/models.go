package indexer

import "time"

// ContractRow is the queryable projection of a contract. Addresses are bech32
// encoded and the id is 0x-prefixed hex. Redeemed rows are kept for history.
type ContractRow struct {
	ID           string `gorm:"primaryKey;size:66"`
	Creator      string `gorm:"index;size:64"`
	Recipient    string `gorm:"index;size:64"`
	PayMint      string `gorm:"index;size:64"`
	Mint         string `gorm:"size:64"`
	Approver     string `gorm:"size:64"`
	Payer        string `gorm:"size:64"`
	Holder       string `gorm:"size:64"`
	AmountDue    uint64 `gorm:"not null"`
	DueDate      int64  `gorm:"index"`
	Status       string `gorm:"index;size:16"`
	CreatedSlot  uint64
	UpdatedSlot  uint64
	LastSequence uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName pins the table name independent of gorm's naming strategy.
func (ContractRow) TableName() string { return "contracts" }

// Cursor tracks the next journal sequence the indexer expects.
type Cursor struct {
	ID   uint `gorm:"primaryKey"`
	Next uint64
}

// TableName pins the table name independent of gorm's naming strategy.
func (Cursor) TableName() string { return "index_cursor" }

// StatusRedeemed marks rows whose contract record has been destroyed on
// ledger.
const StatusRedeemed = "redeemed"
