package receivable

import (
	"fmt"
	"strings"
)

// Status enumerates the lifecycle states of a contract. Transitions only move
// forward.
type Status uint8

const (
	StatusCreated  Status = 0
	StatusApproved Status = 1
	StatusPaid     Status = 2
)

// String returns the lowercase label of the status.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusApproved:
		return "approved"
	case StatusPaid:
		return "paid"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	return s <= StatusPaid
}

// ParseStatus converts a label produced by String back into a Status.
func ParseStatus(label string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "created":
		return StatusCreated, nil
	case "approved":
		return StatusApproved, nil
	case "paid":
		return StatusPaid, nil
	default:
		return 0, fmt.Errorf("receivable: unknown status %q", label)
	}
}

// Contract is a tokenized obligation for the payer to settle AmountDue of
// PayMint by DueDate. The holder of the single representative token minted at
// Mint may redeem the settled funds.
type Contract struct {
	ID          [32]byte
	Recipient   [20]byte
	Creator     [20]byte
	Payer       [20]byte
	Approver    [20]byte
	Mint        [20]byte
	MintBump    uint8
	PayMint     [20]byte
	AmountDue   uint64
	DueDate     int64
	CreateTs    int64
	CreateSlot  uint64
	ApproveTs   int64
	ApproveSlot uint64
	PayTs       int64
	PaySlot     uint64
	Status      Status
}

// Clone returns a deep copy of the contract.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Approved reports whether an approver has been recorded.
func (c *Contract) Approved() bool {
	return c != nil && c.Approver != ([20]byte{})
}

// ApproverRecord grants Delegate the right to approve contracts whose
// recipient is Admin. Budget, BudgetMint and Balance are stored for future
// spending limits and are not enforced.
type ApproverRecord struct {
	Address    [20]byte
	Bump       uint8
	Admin      [20]byte
	Delegate   [20]byte
	Budget     uint64
	BudgetMint [20]byte
	Balance    uint64
	CreatedAt  int64
	RevokedAt  int64
}

// Clone returns a deep copy of the record.
func (r *ApproverRecord) Clone() *ApproverRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Active reports whether the delegation currently authorises approvals.
func (r *ApproverRecord) Active() bool {
	return r != nil && r.RevokedAt == 0
}

// GlobalConfig is the protocol singleton. Fee and FeeScalar are stored for
// fee computation and are not applied by any operation.
type GlobalConfig struct {
	Admin     [20]byte
	Fee       uint64
	FeeScalar uint64
}

// Clone returns a deep copy of the configuration.
func (g *GlobalConfig) Clone() *GlobalConfig {
	if g == nil {
		return nil
	}
	clone := *g
	return &clone
}

// VaultPool is the custodial pool for one settlement currency. Address is both
// the pool identity and the token account holding the pooled funds; the
// account is owned by the address itself. Outstanding sums the amounts of paid
// contracts that have not been redeemed.
type VaultPool struct {
	Currency    [20]byte
	Address     [20]byte
	Bump        uint8
	Outstanding uint64
	CreatedAt   int64
	CreatedSlot uint64
}

// Clone returns a deep copy of the vault.
func (v *VaultPool) Clone() *VaultPool {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// Clock carries the wall time and slot stamped onto lifecycle transitions.
type Clock struct {
	Timestamp int64
	Slot      uint64
}
