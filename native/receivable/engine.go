// Package receivable implements the lifecycle of tokenized receivables: a
// creator issues a contract owed by a payer, the recipient or one of its
// delegates approves it, the payer settles into the per-currency vault and the
// holder of the representative token redeems the settled funds.
package receivable

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lulo-labs/lulo-sc/core/events"
	"github.com/lulo-labs/lulo-sc/core/types"
	"github.com/lulo-labs/lulo-sc/native/derive"
	"github.com/lulo-labs/lulo-sc/native/token"
)

// representativeDecimals is the precision of every representative token mint.
const representativeDecimals = 0

type engineState interface {
	ConfigGet() (*GlobalConfig, bool, error)
	ConfigPut(*GlobalConfig) error
	ContractGet(id [32]byte) (*Contract, bool, error)
	ContractPut(*Contract) error
	ContractDelete(id [32]byte) error
	ContractSequenceNext(creator [20]byte) (uint64, error)
	ApproverGet(addr [20]byte) (*ApproverRecord, bool, error)
	ApproverPut(*ApproverRecord) error
	VaultGet(currency [20]byte) (*VaultPool, bool, error)
	VaultPut(*VaultPool) error

	TokenMintGet(addr [20]byte) (*token.Mint, bool, error)
	TokenMintPut(*token.Mint) error
	TokenAccountGet(addr [20]byte) (*token.Account, bool, error)
	TokenAccountPut(*token.Account) error
}

type receivableEvent struct {
	evt *types.Event
}

func (e receivableEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e receivableEvent) Event() *types.Event { return e.evt }

// Engine runs lifecycle operations against the configured state. Every method
// assumes it executes inside a single atomic host transaction: on error the
// caller discards all writes.
type Engine struct {
	state           engineState
	ledger          *token.Ledger
	emitter         events.Emitter
	clockFn         func() Clock
	requireApproval bool
}

// NewEngine creates an engine with a no-op emitter and a wall clock at slot
// zero.
func NewEngine() *Engine {
	return &Engine{
		ledger:  token.NewLedger(nil),
		emitter: events.NoopEmitter{},
		clockFn: wallClock,
	}
}

func wallClock() Clock { return Clock{Timestamp: time.Now().Unix()} }

// SetState configures the state backend used by the engine and its token
// ledger.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.ledger.SetState(state)
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time and slot source. Passing nil restores the wall
// clock.
func (e *Engine) SetClock(clock func() Clock) {
	if clock == nil {
		e.clockFn = wallClock
		return
	}
	e.clockFn = clock
}

// SetRequireApproval makes pay fail until the contract has been approved.
func (e *Engine) SetRequireApproval(required bool) { e.requireApproval = required }

// Ledger exposes the token ledger bound to the engine state.
func (e *Engine) Ledger() *token.Ledger { return e.ledger }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(receivableEvent{evt: event})
}

func (e *Engine) clock() Clock {
	if e == nil || e.clockFn == nil {
		return wallClock()
	}
	return e.clockFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// Initialize writes the protocol configuration with signer as admin. An
// existing configuration is overwritten; the returned flag reports whether
// that happened.
func (e *Engine) Initialize(signer [20]byte, fee, feeScalar uint64) (*GlobalConfig, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	if fee > 0 && feeScalar == 0 {
		return nil, false, ErrInvalidFeeScalar
	}
	_, replaced, err := e.state.ConfigGet()
	if err != nil {
		return nil, false, err
	}
	cfg := &GlobalConfig{Admin: signer, Fee: fee, FeeScalar: feeScalar}
	if err := e.state.ConfigPut(cfg); err != nil {
		return nil, false, err
	}
	e.emit(NewInitializedEvent(cfg, replaced))
	return cfg.Clone(), replaced, nil
}

// CreateVault opens the custodial vault for currency. Only the protocol admin
// may call it.
func (e *Engine) CreateVault(signer, currency [20]byte) (*VaultPool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, ok, err := e.state.ConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	if cfg.Admin != signer {
		return nil, ErrUnauthorizedAdmin
	}
	if _, exists, err := e.state.VaultGet(currency); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrVaultExists
	}
	if _, err := e.ledger.Mint(currency); err != nil {
		return nil, err
	}
	addr, bump, err := derive.Find(derive.VaultSeeds(currency)...)
	if err != nil {
		return nil, err
	}
	if _, err := e.ledger.InitAccount(addr, currency, addr); err != nil {
		return nil, fmt.Errorf("receivable: open vault account: %w", err)
	}
	now := e.clock()
	vault := &VaultPool{
		Currency:    currency,
		Address:     addr,
		Bump:        bump,
		CreatedAt:   now.Timestamp,
		CreatedSlot: now.Slot,
	}
	if err := e.state.VaultPut(vault); err != nil {
		return nil, err
	}
	e.emit(NewVaultCreatedEvent(vault))
	return vault.Clone(), nil
}

// Create issues a contract owed to recipient and mints its single
// representative token to the creator.
func (e *Engine) Create(signer, recipient, payMint [20]byte, amountDue uint64, dueDate int64) (*Contract, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.clock()
	if dueDate <= now.Timestamp {
		return nil, ErrInvalidDueDate
	}
	if amountDue == 0 {
		return nil, ErrInvalidAmount
	}
	if recipient == ([20]byte{}) {
		return nil, ErrInvalidRecipient
	}
	if _, ok, err := e.state.VaultGet(payMint); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrVaultNotFound
	}
	seq, err := e.state.ContractSequenceNext(signer)
	if err != nil {
		return nil, err
	}
	id := derive.ContractID(signer, seq)
	if _, exists, err := e.state.ContractGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrContractExists
	}
	mintAddr, mintBump, err := derive.Find(derive.MintSeeds(id)...)
	if err != nil {
		return nil, err
	}
	if _, err := e.ledger.CreateMint(mintAddr, mintAddr, representativeDecimals); err != nil {
		return nil, fmt.Errorf("receivable: create representative mint: %w", err)
	}
	holding, err := e.ledger.EnsureAssociatedAccount(signer, mintAddr)
	if err != nil {
		return nil, err
	}
	mintAuthority := token.DerivedAuthority(mintBump, derive.MintSeeds(id)...)
	if err := e.ledger.MintTo(mintAddr, holding.Address, mintAuthority, 1); err != nil {
		return nil, fmt.Errorf("receivable: mint representative token: %w", err)
	}
	contract := &Contract{
		ID:         id,
		Recipient:  recipient,
		Creator:    signer,
		Mint:       mintAddr,
		MintBump:   mintBump,
		PayMint:    payMint,
		AmountDue:  amountDue,
		DueDate:    dueDate,
		CreateTs:   now.Timestamp,
		CreateSlot: now.Slot,
		Status:     StatusCreated,
	}
	if err := e.state.ContractPut(contract); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(contract))
	return contract.Clone(), nil
}

// SetApprover registers delegate as an approver for contracts whose recipient
// is signer. A revoked record for the same pair is reactivated.
func (e *Engine) SetApprover(signer, delegate [20]byte) (*ApproverRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if delegate == ([20]byte{}) || delegate == signer {
		return nil, ErrInvalidDelegate
	}
	addr, bump, err := derive.Find(derive.ApproverSeeds(signer, delegate)...)
	if err != nil {
		return nil, err
	}
	existing, ok, err := e.state.ApproverGet(addr)
	if err != nil {
		return nil, err
	}
	if ok && existing.Active() {
		return nil, ErrApproverExists
	}
	record := &ApproverRecord{
		Address:   addr,
		Bump:      bump,
		Admin:     signer,
		Delegate:  delegate,
		CreatedAt: e.clock().Timestamp,
	}
	if err := e.state.ApproverPut(record); err != nil {
		return nil, err
	}
	e.emit(NewApproverSetEvent(record))
	return record.Clone(), nil
}

// RevokeApprover withdraws the delegation from signer to delegate. Approvals
// already recorded stay in place.
func (e *Engine) RevokeApprover(signer, delegate [20]byte) (*ApproverRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addr, _, err := derive.Find(derive.ApproverSeeds(signer, delegate)...)
	if err != nil {
		return nil, err
	}
	record, ok, err := e.state.ApproverGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || !record.Active() {
		return nil, ErrApproverNotFound
	}
	record.RevokedAt = e.clock().Timestamp
	if record.RevokedAt == 0 {
		record.RevokedAt = 1
	}
	if err := e.state.ApproverPut(record); err != nil {
		return nil, err
	}
	e.emit(NewApproverRevokedEvent(record))
	return record.Clone(), nil
}

// Approve records signer as the approver of the contract. The signer must be
// the recipient or an active delegate of the recipient.
func (e *Engine) Approve(signer [20]byte, id [32]byte) (*Contract, error) {
	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Approved() {
		return nil, ErrExistingApproval
	}
	if signer != contract.Recipient {
		authorized, err := e.isDelegate(contract.Recipient, signer)
		if err != nil {
			return nil, err
		}
		if !authorized {
			return nil, ErrUnauthorizedApprover
		}
	}
	now := e.clock()
	contract.Approver = signer
	contract.ApproveTs = now.Timestamp
	contract.ApproveSlot = now.Slot
	if contract.Status < StatusApproved {
		contract.Status = StatusApproved
	}
	if err := e.state.ContractPut(contract); err != nil {
		return nil, err
	}
	e.emit(NewApprovedEvent(contract))
	return contract.Clone(), nil
}

func (e *Engine) isDelegate(admin, delegate [20]byte) (bool, error) {
	addr, _, err := derive.Find(derive.ApproverSeeds(admin, delegate)...)
	if err != nil {
		return false, err
	}
	record, ok, err := e.state.ApproverGet(addr)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return record.Active() && record.Admin == admin && record.Delegate == delegate, nil
}

// Pay transfers the amount due from source into the vault of the contract's
// currency. The signer must own source.
func (e *Engine) Pay(signer [20]byte, id [32]byte, source [20]byte) (*Contract, error) {
	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Status == StatusPaid {
		return nil, ErrAlreadyPaid
	}
	if e.requireApproval && !contract.Approved() {
		return nil, ErrNotApproved
	}
	vault, ok, err := e.state.VaultGet(contract.PayMint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	if vault.Outstanding > math.MaxUint64-contract.AmountDue {
		return nil, ErrOutstandingBroken
	}
	if err := e.ledger.Transfer(source, vault.Address, token.SignerAuthority(signer), contract.AmountDue); err != nil {
		return nil, err
	}
	now := e.clock()
	contract.Payer = signer
	contract.PayTs = now.Timestamp
	contract.PaySlot = now.Slot
	contract.Status = StatusPaid
	vault.Outstanding += contract.AmountDue
	if err := e.state.ContractPut(contract); err != nil {
		return nil, err
	}
	if err := e.state.VaultPut(vault); err != nil {
		return nil, err
	}
	e.emit(NewPaidEvent(contract))
	return contract.Clone(), nil
}

// Redeem releases the settled amount of a paid contract to destination and
// burns the representative token held by the signer in holding. The contract
// record is removed, so a second redemption fails.
func (e *Engine) Redeem(signer [20]byte, id [32]byte, creator, holding, destination [20]byte) (*Contract, error) {
	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if creator != contract.Creator {
		return nil, ErrCreatorMismatch
	}
	account, err := e.ledger.Account(holding)
	if err != nil {
		if errors.Is(err, token.ErrAccountNotFound) {
			return nil, ErrInvalidHolding
		}
		return nil, err
	}
	if account.Mint != contract.Mint || account.Owner != signer || account.Amount != 1 {
		return nil, ErrInvalidHolding
	}
	if contract.Status != StatusPaid {
		return nil, ErrNotPaid
	}
	vault, ok, err := e.state.VaultGet(contract.PayMint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	if destination == vault.Address {
		return nil, ErrInvalidDestination
	}
	if vault.Outstanding < contract.AmountDue {
		return nil, ErrOutstandingBroken
	}
	vaultAuthority := token.DerivedAuthority(vault.Bump, derive.VaultSeeds(vault.Currency)...)
	if err := e.ledger.Transfer(vault.Address, destination, vaultAuthority, contract.AmountDue); err != nil {
		return nil, err
	}
	if err := e.ledger.Burn(contract.Mint, holding, token.SignerAuthority(signer), 1); err != nil {
		return nil, err
	}
	vault.Outstanding -= contract.AmountDue
	if err := e.state.VaultPut(vault); err != nil {
		return nil, err
	}
	if err := e.state.ContractDelete(id); err != nil {
		return nil, err
	}
	e.emit(NewRedeemedEvent(contract, signer, destination))
	return contract.Clone(), nil
}

// TransferTokens moves amount of mint from the signer's associated
// account to the associated account of to, opening it when needed. It is how
// a receivable changes hands before redemption.
func (e *Engine) TransferTokens(signer, mint, to [20]byte, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	src, err := e.ledger.AssociatedAddress(signer, mint)
	if err != nil {
		return err
	}
	dst, err := e.ledger.EnsureAssociatedAccount(to, mint)
	if err != nil {
		return err
	}
	return e.ledger.Transfer(src, dst.Address, token.SignerAuthority(signer), amount)
}

// Contract returns the stored contract.
func (e *Engine) Contract(id [32]byte) (*Contract, error) {
	return e.loadContract(id)
}

func (e *Engine) loadContract(id [32]byte) (*Contract, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	contract, ok, err := e.state.ContractGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrContractNotFound
	}
	return contract, nil
}

// Config returns the protocol configuration.
func (e *Engine) Config() (*GlobalConfig, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, ok, err := e.state.ConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// Vault returns the vault pool of currency.
func (e *Engine) Vault(currency [20]byte) (*VaultPool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	vault, ok, err := e.state.VaultGet(currency)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	return vault, nil
}

// Approver returns the delegation record from admin to delegate, including
// revoked ones.
func (e *Engine) Approver(admin, delegate [20]byte) (*ApproverRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addr, _, err := derive.Find(derive.ApproverSeeds(admin, delegate)...)
	if err != nil {
		return nil, err
	}
	record, ok, err := e.state.ApproverGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrApproverNotFound
	}
	return record, nil
}
