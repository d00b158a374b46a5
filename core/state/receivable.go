package state

import (
	"fmt"

	"github.com/lulo-labs/lulo-sc/native/receivable"
)

// RLP cannot encode signed integers, so timestamps are stored as uint64.

type storedContract struct {
	ID          [32]byte
	Recipient   [20]byte
	Creator     [20]byte
	Payer       [20]byte
	Approver    [20]byte
	Mint        [20]byte
	MintBump    uint8
	PayMint     [20]byte
	AmountDue   uint64
	DueDate     uint64
	CreateTs    uint64
	CreateSlot  uint64
	ApproveTs   uint64
	ApproveSlot uint64
	PayTs       uint64
	PaySlot     uint64
	Status      uint8
}

func newStoredContract(c *receivable.Contract) *storedContract {
	return &storedContract{
		ID:          c.ID,
		Recipient:   c.Recipient,
		Creator:     c.Creator,
		Payer:       c.Payer,
		Approver:    c.Approver,
		Mint:        c.Mint,
		MintBump:    c.MintBump,
		PayMint:     c.PayMint,
		AmountDue:   c.AmountDue,
		DueDate:     uint64(c.DueDate),
		CreateTs:    uint64(c.CreateTs),
		CreateSlot:  c.CreateSlot,
		ApproveTs:   uint64(c.ApproveTs),
		ApproveSlot: c.ApproveSlot,
		PayTs:       uint64(c.PayTs),
		PaySlot:     c.PaySlot,
		Status:      uint8(c.Status),
	}
}

func (s *storedContract) toContract() *receivable.Contract {
	return &receivable.Contract{
		ID:          s.ID,
		Recipient:   s.Recipient,
		Creator:     s.Creator,
		Payer:       s.Payer,
		Approver:    s.Approver,
		Mint:        s.Mint,
		MintBump:    s.MintBump,
		PayMint:     s.PayMint,
		AmountDue:   s.AmountDue,
		DueDate:     int64(s.DueDate),
		CreateTs:    int64(s.CreateTs),
		CreateSlot:  s.CreateSlot,
		ApproveTs:   int64(s.ApproveTs),
		ApproveSlot: s.ApproveSlot,
		PayTs:       int64(s.PayTs),
		PaySlot:     s.PaySlot,
		Status:      receivable.Status(s.Status),
	}
}

type storedApprover struct {
	Address    [20]byte
	Bump       uint8
	Admin      [20]byte
	Delegate   [20]byte
	Budget     uint64
	BudgetMint [20]byte
	Balance    uint64
	CreatedAt  uint64
	RevokedAt  uint64
}

type storedVault struct {
	Currency    [20]byte
	Address     [20]byte
	Bump        uint8
	Outstanding uint64
	CreatedAt   uint64
	CreatedSlot uint64
}

// ConfigGet loads the protocol configuration.
func (m *Manager) ConfigGet() (*receivable.GlobalConfig, bool, error) {
	key, err := configKey()
	if err != nil {
		return nil, false, err
	}
	cfg := new(receivable.GlobalConfig)
	ok, err := m.KVGet(key, cfg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cfg, true, nil
}

// ConfigPut stores the protocol configuration.
func (m *Manager) ConfigPut(cfg *receivable.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("state: nil config")
	}
	key, err := configKey()
	if err != nil {
		return err
	}
	return m.KVPut(key, cfg)
}

// ContractGet loads a contract by id.
func (m *Manager) ContractGet(id [32]byte) (*receivable.Contract, bool, error) {
	stored := new(storedContract)
	ok, err := m.KVGet(contractKey(id), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toContract(), true, nil
}

// ContractPut stores a contract and records its id in the contract index.
func (m *Manager) ContractPut(c *receivable.Contract) error {
	if c == nil {
		return fmt.Errorf("state: nil contract")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("state: invalid contract status %d", c.Status)
	}
	if err := m.KVPut(contractKey(c.ID), newStoredContract(c)); err != nil {
		return err
	}
	return m.KVAppend(contractIndexKeyBytes, c.ID[:])
}

// ContractDelete removes a contract and its index entry.
func (m *Manager) ContractDelete(id [32]byte) error {
	if err := m.KVDelete(contractKey(id)); err != nil {
		return err
	}
	return m.KVRemove(contractIndexKeyBytes, id[:])
}

// ContractIDs lists the ids of every live contract in creation order.
func (m *Manager) ContractIDs() ([][32]byte, error) {
	var raw [][]byte
	if err := m.KVGetList(contractIndexKeyBytes, &raw); err != nil {
		return nil, err
	}
	ids := make([][32]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 32 {
			return nil, fmt.Errorf("state: corrupt contract index entry")
		}
		var id [32]byte
		copy(id[:], entry)
		ids = append(ids, id)
	}
	return ids, nil
}

// ContractSequenceNext returns the next contract sequence of creator and
// advances it.
func (m *Manager) ContractSequenceNext(creator [20]byte) (uint64, error) {
	key := contractSequenceKey(creator)
	var seq uint64
	if _, err := m.KVGet(key, &seq); err != nil {
		return 0, err
	}
	if err := m.KVPut(key, seq+1); err != nil {
		return 0, err
	}
	return seq, nil
}

// ApproverGet loads the delegation record stored at addr.
func (m *Manager) ApproverGet(addr [20]byte) (*receivable.ApproverRecord, bool, error) {
	stored := new(storedApprover)
	ok, err := m.KVGet(approverKey(addr), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &receivable.ApproverRecord{
		Address:    stored.Address,
		Bump:       stored.Bump,
		Admin:      stored.Admin,
		Delegate:   stored.Delegate,
		Budget:     stored.Budget,
		BudgetMint: stored.BudgetMint,
		Balance:    stored.Balance,
		CreatedAt:  int64(stored.CreatedAt),
		RevokedAt:  int64(stored.RevokedAt),
	}, true, nil
}

// ApproverPut stores a delegation record at its derived address.
func (m *Manager) ApproverPut(r *receivable.ApproverRecord) error {
	if r == nil {
		return fmt.Errorf("state: nil approver")
	}
	return m.KVPut(approverKey(r.Address), &storedApprover{
		Address:    r.Address,
		Bump:       r.Bump,
		Admin:      r.Admin,
		Delegate:   r.Delegate,
		Budget:     r.Budget,
		BudgetMint: r.BudgetMint,
		Balance:    r.Balance,
		CreatedAt:  uint64(r.CreatedAt),
		RevokedAt:  uint64(r.RevokedAt),
	})
}

// VaultGet loads the vault pool of currency.
func (m *Manager) VaultGet(currency [20]byte) (*receivable.VaultPool, bool, error) {
	stored := new(storedVault)
	ok, err := m.KVGet(vaultKey(currency), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &receivable.VaultPool{
		Currency:    stored.Currency,
		Address:     stored.Address,
		Bump:        stored.Bump,
		Outstanding: stored.Outstanding,
		CreatedAt:   int64(stored.CreatedAt),
		CreatedSlot: stored.CreatedSlot,
	}, true, nil
}

// VaultPut stores a vault pool and records its currency in the vault index.
func (m *Manager) VaultPut(v *receivable.VaultPool) error {
	if v == nil {
		return fmt.Errorf("state: nil vault")
	}
	err := m.KVPut(vaultKey(v.Currency), &storedVault{
		Currency:    v.Currency,
		Address:     v.Address,
		Bump:        v.Bump,
		Outstanding: v.Outstanding,
		CreatedAt:   uint64(v.CreatedAt),
		CreatedSlot: v.CreatedSlot,
	})
	if err != nil {
		return err
	}
	return m.KVAppend(vaultIndexKeyBytes, v.Currency[:])
}

// VaultCurrencies lists the currencies that have a vault pool.
func (m *Manager) VaultCurrencies() ([][20]byte, error) {
	var raw [][]byte
	if err := m.KVGetList(vaultIndexKeyBytes, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		var currency [20]byte
		copy(currency[:], entry)
		out = append(out, currency)
	}
	return out, nil
}
