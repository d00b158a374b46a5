package core

import (
	"github.com/ethereum/go-ethereum/common"

	coreerrors "github.com/lulo-labs/lulo-sc/core/errors"
	"github.com/lulo-labs/lulo-sc/core/state"
	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/native/token"
)

// ChainID returns the chain id transactions must carry.
func (n *Node) ChainID() uint64 { return n.cfg.ChainID }

// Height returns the number of committed transactions.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head.Height
}

// Root returns the committed state root.
func (n *Node) Root() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trie.Root()
}

func (n *Node) Config() (*receivable.GlobalConfig, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Config()
}

func (n *Node) Contract(id [32]byte) (*receivable.Contract, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Contract(id)
}

// ContractIDs lists the ids of every live contract in creation order.
func (n *Node) ContractIDs() ([][32]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.ContractIDs()
}

func (n *Node) Vault(currency [20]byte) (*receivable.VaultPool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Vault(currency)
}

// Vaults lists every vault pool.
func (n *Node) Vaults() ([]*receivable.VaultPool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	currencies, err := n.state.VaultCurrencies()
	if err != nil {
		return nil, err
	}
	out := make([]*receivable.VaultPool, 0, len(currencies))
	for _, currency := range currencies {
		vault, err := n.engine.Vault(currency)
		if err != nil {
			return nil, err
		}
		out = append(out, vault)
	}
	return out, nil
}

func (n *Node) Approver(admin, delegate [20]byte) (*receivable.ApproverRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Approver(admin, delegate)
}

func (n *Node) Mint(addr [20]byte) (*token.Mint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Ledger().Mint(addr)
}

func (n *Node) TokenAccount(addr [20]byte) (*token.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Ledger().Account(addr)
}

// AssociatedAccount returns the associated token account of owner for mint.
// The address is returned even when the account has not been opened yet.
func (n *Node) AssociatedAccount(owner, mint [20]byte) ([20]byte, *token.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ledger := n.engine.Ledger()
	addr, err := ledger.AssociatedAddress(owner, mint)
	if err != nil {
		return [20]byte{}, nil, err
	}
	acct, err := ledger.Account(addr)
	if err != nil {
		return addr, nil, err
	}
	return addr, acct, nil
}

// Nonce returns the next nonce expected from addr.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.NonceGet(addr)
}

// Currency resolves a registered currency symbol to its mint.
func (n *Node) Currency(symbol string) ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	mint, ok, err := n.state.CurrencyGet(symbol)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, coreerrors.ErrCurrencyUnknown
	}
	return mint, nil
}

// Currencies returns the registered currency symbols with their mints.
func (n *Node) Currencies() (map[string][20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	symbols, err := n.state.Currencies()
	if err != nil {
		return nil, err
	}
	out := make(map[string][20]byte, len(symbols))
	for _, symbol := range symbols {
		mint, ok, err := n.state.CurrencyGet(symbol)
		if err != nil {
			return nil, err
		}
		if ok {
			out[state.NormalizeSymbol(symbol)] = mint
		}
	}
	return out, nil
}
