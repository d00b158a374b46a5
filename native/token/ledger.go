// Package token implements the mint, transfer and burn primitive used for
// settlement currencies and representative tokens. The ledger only checks
// custody (balances, mints and authorities); business rules live with the
// callers.
package token

import (
	"errors"
	"fmt"
	"math"

	"github.com/lulo-labs/lulo-sc/native/derive"
)

var (
	ErrInsufficientFunds  = errors.New("token: insufficient funds")
	ErrMintMismatch       = errors.New("token: account mint mismatch")
	ErrOwnerMismatch      = errors.New("token: authority is not the account owner")
	ErrAuthorityMismatch  = errors.New("token: authority is not the mint authority")
	ErrAccountNotFound    = errors.New("token: account not found")
	ErrMintNotFound       = errors.New("token: mint not found")
	ErrAccountExists      = errors.New("token: account already exists")
	ErrMintExists         = errors.New("token: mint already exists")
	ErrSupplyOverflow     = errors.New("token: supply overflow")
	ErrZeroAmount         = errors.New("token: amount must be positive")
	errNilLedgerState     = errors.New("token: state not configured")
	errInvalidZeroAddress = errors.New("token: zero address")
)

type ledgerState interface {
	TokenMintGet(addr [20]byte) (*Mint, bool, error)
	TokenMintPut(*Mint) error
	TokenAccountGet(addr [20]byte) (*Account, bool, error)
	TokenAccountPut(*Account) error
}

// Ledger applies token operations against the configured state backend.
type Ledger struct {
	state ledgerState
}

// NewLedger creates a ledger over the provided state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

// SetState swaps the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// CreateMint registers a new mint at addr controlled by authority.
func (l *Ledger) CreateMint(addr, authority [20]byte, decimals uint8) (*Mint, error) {
	if l == nil || l.state == nil {
		return nil, errNilLedgerState
	}
	if addr == ([20]byte{}) {
		return nil, errInvalidZeroAddress
	}
	_, exists, err := l.state.TokenMintGet(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrMintExists
	}
	mint := &Mint{Address: addr, Authority: authority, Decimals: decimals}
	if err := l.state.TokenMintPut(mint); err != nil {
		return nil, err
	}
	return mint.Clone(), nil
}

// InitAccount opens an empty token account for owner at addr.
func (l *Ledger) InitAccount(addr, mint, owner [20]byte) (*Account, error) {
	if l == nil || l.state == nil {
		return nil, errNilLedgerState
	}
	if addr == ([20]byte{}) {
		return nil, errInvalidZeroAddress
	}
	if _, err := l.Mint(mint); err != nil {
		return nil, err
	}
	_, exists, err := l.state.TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountExists
	}
	account := &Account{Address: addr, Mint: mint, Owner: owner}
	if err := l.state.TokenAccountPut(account); err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// AssociatedAddress returns the canonical account address of owner for mint.
func (l *Ledger) AssociatedAddress(owner, mint [20]byte) ([20]byte, error) {
	addr, _, err := derive.Find(derive.HoldingSeeds(owner, mint)...)
	return addr, err
}

// EnsureAssociatedAccount returns the associated account of owner for mint,
// opening it when missing.
func (l *Ledger) EnsureAssociatedAccount(owner, mint [20]byte) (*Account, error) {
	addr, err := l.AssociatedAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	account, err := l.Account(addr)
	if err == nil {
		if account.Mint != mint {
			return nil, ErrMintMismatch
		}
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}
	return l.InitAccount(addr, mint, owner)
}

// Mint loads the mint stored at addr.
func (l *Ledger) Mint(addr [20]byte) (*Mint, error) {
	if l == nil || l.state == nil {
		return nil, errNilLedgerState
	}
	mint, ok, err := l.state.TokenMintGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMintNotFound
	}
	return mint, nil
}

// Account loads the token account stored at addr.
func (l *Ledger) Account(addr [20]byte) (*Account, error) {
	if l == nil || l.state == nil {
		return nil, errNilLedgerState
	}
	account, ok, err := l.state.TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// MintTo issues amount new units of mint into dest.
func (l *Ledger) MintTo(mintAddr, dest [20]byte, auth Authority, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	mint, err := l.Mint(mintAddr)
	if err != nil {
		return err
	}
	account, err := l.Account(dest)
	if err != nil {
		return err
	}
	if account.Mint != mintAddr {
		return ErrMintMismatch
	}
	signer, err := auth.Resolve()
	if err != nil {
		return fmt.Errorf("token: resolve mint authority: %w", err)
	}
	if signer != mint.Authority {
		return ErrAuthorityMismatch
	}
	if mint.Supply > math.MaxUint64-amount || account.Amount > math.MaxUint64-amount {
		return ErrSupplyOverflow
	}
	mint.Supply += amount
	account.Amount += amount
	if err := l.state.TokenMintPut(mint); err != nil {
		return err
	}
	return l.state.TokenAccountPut(account)
}

// Transfer moves amount from src to dst. The authority must resolve to the
// owner of src.
func (l *Ledger) Transfer(src, dst [20]byte, auth Authority, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	from, err := l.Account(src)
	if err != nil {
		return err
	}
	to, err := l.Account(dst)
	if err != nil {
		return err
	}
	if from.Mint != to.Mint {
		return ErrMintMismatch
	}
	signer, err := auth.Resolve()
	if err != nil {
		return fmt.Errorf("token: resolve owner authority: %w", err)
	}
	if signer != from.Owner {
		return ErrOwnerMismatch
	}
	if from.Amount < amount {
		return ErrInsufficientFunds
	}
	if src == dst {
		return nil
	}
	if to.Amount > math.MaxUint64-amount {
		return ErrSupplyOverflow
	}
	from.Amount -= amount
	to.Amount += amount
	if err := l.state.TokenAccountPut(from); err != nil {
		return err
	}
	return l.state.TokenAccountPut(to)
}

// Burn destroys amount units held in account. The authority must resolve to
// the account owner.
func (l *Ledger) Burn(mintAddr, accountAddr [20]byte, auth Authority, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	mint, err := l.Mint(mintAddr)
	if err != nil {
		return err
	}
	account, err := l.Account(accountAddr)
	if err != nil {
		return err
	}
	if account.Mint != mintAddr {
		return ErrMintMismatch
	}
	signer, err := auth.Resolve()
	if err != nil {
		return fmt.Errorf("token: resolve owner authority: %w", err)
	}
	if signer != account.Owner {
		return ErrOwnerMismatch
	}
	if account.Amount < amount {
		return ErrInsufficientFunds
	}
	if mint.Supply < amount {
		return ErrSupplyOverflow
	}
	account.Amount -= amount
	mint.Supply -= amount
	if err := l.state.TokenAccountPut(account); err != nil {
		return err
	}
	return l.state.TokenMintPut(mint)
}
