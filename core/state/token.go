package state

import (
	"fmt"

	"github.com/lulo-labs/lulo-sc/native/token"
)

// TokenMintGet loads the mint stored at addr.
func (m *Manager) TokenMintGet(addr [20]byte) (*token.Mint, bool, error) {
	mint := new(token.Mint)
	ok, err := m.KVGet(tokenMintKey(addr), mint)
	if err != nil || !ok {
		return nil, ok, err
	}
	return mint, true, nil
}

// TokenMintPut stores a mint at its address.
func (m *Manager) TokenMintPut(mint *token.Mint) error {
	if mint == nil {
		return fmt.Errorf("state: nil mint")
	}
	return m.KVPut(tokenMintKey(mint.Address), mint)
}

// TokenAccountGet loads the token account stored at addr.
func (m *Manager) TokenAccountGet(addr [20]byte) (*token.Account, bool, error) {
	account := new(token.Account)
	ok, err := m.KVGet(tokenAccountKey(addr), account)
	if err != nil || !ok {
		return nil, ok, err
	}
	return account, true, nil
}

// TokenAccountPut stores a token account at its address.
func (m *Manager) TokenAccountPut(account *token.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil token account")
	}
	return m.KVPut(tokenAccountKey(account.Address), account)
}
