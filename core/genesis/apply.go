package genesis

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/lulo-labs/lulo-sc/core/events"
	"github.com/lulo-labs/lulo-sc/core/state"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/native/token"
)

// Apply writes the genesis records into mgr. Currencies are created in symbol
// order, then balances in address order, then the protocol bootstrap, so the
// resulting root only depends on the file contents. Events produced by the
// bootstrap are sent to emitter, which may be nil.
func Apply(spec *Spec, mgr *state.Manager, emitter events.Emitter) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if mgr == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	ts := spec.GenesisTimestamp()
	if ts.IsZero() {
		if err := spec.validate(); err != nil {
			return err
		}
		ts = spec.GenesisTimestamp()
	}

	engine := receivable.NewEngine()
	engine.SetState(mgr)
	engine.SetEmitter(emitter)
	engine.SetClock(func() receivable.Clock { return receivable.Clock{Timestamp: ts.Unix()} })
	ledger := engine.Ledger()

	// 1) currencies
	currencies := append([]CurrencySpec(nil), spec.Currencies...)
	sort.Slice(currencies, func(i, j int) bool {
		return state.NormalizeSymbol(currencies[i].Symbol) < state.NormalizeSymbol(currencies[j].Symbol)
	})
	bySymbol := make(map[string]*CurrencySpec, len(currencies))
	for i := range currencies {
		c := &currencies[i]
		symbol := state.NormalizeSymbol(c.Symbol)
		if _, err := ledger.CreateMint(c.address, c.authority, c.Decimals); err != nil {
			return fmt.Errorf("currency %q: %w", symbol, err)
		}
		if err := mgr.CurrencyPut(symbol, c.address); err != nil {
			return fmt.Errorf("currency %q: register: %w", symbol, err)
		}
		bySymbol[symbol] = c
	}

	// 2) balances
	type alloc struct {
		owner   crypto.Address
		symbols map[string]string
	}
	allocs := make([]alloc, 0, len(spec.Alloc))
	for account, balances := range spec.Alloc {
		owner, err := crypto.ParseAddress(account)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		allocs = append(allocs, alloc{owner: owner, symbols: balances})
	}
	sort.Slice(allocs, func(i, j int) bool {
		return bytes.Compare(allocs[i].owner[:], allocs[j].owner[:]) < 0
	})
	for _, a := range allocs {
		symbols := make([]string, 0, len(a.symbols))
		for symbol := range a.symbols {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			amount, err := parseAmount(a.symbols[symbol])
			if err != nil {
				return fmt.Errorf("alloc[%s][%q]: %w", a.owner, symbol, err)
			}
			c := bySymbol[state.NormalizeSymbol(symbol)]
			if c == nil {
				return fmt.Errorf("alloc[%s][%q]: undefined currency", a.owner, symbol)
			}
			// A zero amount only opens the associated account.
			acct, err := ledger.EnsureAssociatedAccount(a.owner, c.address)
			if err != nil {
				return fmt.Errorf("alloc[%s][%q]: %w", a.owner, symbol, err)
			}
			if amount == 0 {
				continue
			}
			if err := ledger.MintTo(c.address, acct.Address, token.SignerAuthority(c.authority), amount); err != nil {
				return fmt.Errorf("alloc[%s][%q]: %w", a.owner, symbol, err)
			}
		}
	}

	// 3) protocol
	if spec.Protocol == nil {
		return nil
	}
	p := spec.Protocol
	if _, _, err := engine.Initialize(p.admin, p.Fee, p.FeeScalar); err != nil {
		return fmt.Errorf("protocol: initialize: %w", err)
	}
	for _, symbol := range p.Vaults {
		c := bySymbol[state.NormalizeSymbol(symbol)]
		if c == nil {
			return fmt.Errorf("protocol: vault %q: undefined currency", symbol)
		}
		if _, err := engine.CreateVault(p.admin, c.address); err != nil {
			return fmt.Errorf("protocol: vault %q: %w", symbol, err)
		}
	}
	return nil
}
