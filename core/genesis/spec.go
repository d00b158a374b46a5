// Package genesis loads the JSON file that seeds a fresh ledger with
// settlement currencies, opening balances and an optional protocol bootstrap.
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lulo-labs/lulo-sc/core/state"
	"github.com/lulo-labs/lulo-sc/crypto"
	"github.com/lulo-labs/lulo-sc/native/derive"
)

type Spec struct {
	GenesisTime string                       `json:"genesisTime"`
	ChainID     *uint64                      `json:"chainId,omitempty"`
	Currencies  []CurrencySpec               `json:"currencies"`
	Alloc       map[string]map[string]string `json:"alloc,omitempty"` // addr -> symbol -> amount
	Protocol    *ProtocolSpec                `json:"protocol,omitempty"`

	genesisTimestamp time.Time
}

// CurrencySpec declares a settlement currency mint. When Address is empty the
// mint lives at the address derived from the symbol.
type CurrencySpec struct {
	Symbol    string `json:"symbol"`
	Address   string `json:"address,omitempty"`
	Decimals  uint8  `json:"decimals"`
	Authority string `json:"authority"`

	address   [20]byte
	authority [20]byte
}

// ProtocolSpec bootstraps the global configuration and opens vaults for the
// listed currency symbols.
type ProtocolSpec struct {
	Admin     string   `json:"admin"`
	Fee       uint64   `json:"fee"`
	FeeScalar uint64   `json:"feeScalar"`
	Vaults    []string `json:"vaults,omitempty"`

	admin [20]byte
}

// LoadSpec reads and validates the genesis file at path.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseSpec decodes and validates a genesis document. Unknown fields are
// rejected.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// ChainIDValue reports the chain id pinned by the file, if any.
func (s *Spec) ChainIDValue() (uint64, bool) {
	if s.ChainID == nil {
		return 0, false
	}
	return *s.ChainID, true
}

func (s *Spec) validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	symbols := make(map[string]*CurrencySpec, len(s.Currencies))
	mints := make(map[[20]byte]string, len(s.Currencies))
	for i := range s.Currencies {
		c := &s.Currencies[i]
		if err := c.validate(); err != nil {
			return fmt.Errorf("currency[%d]: %w", i, err)
		}
		key := state.NormalizeSymbol(c.Symbol)
		if _, dup := symbols[key]; dup {
			return fmt.Errorf("currency[%d]: duplicate symbol %q", i, c.Symbol)
		}
		if other, dup := mints[c.address]; dup {
			return fmt.Errorf("currency[%d]: address already used by %q", i, other)
		}
		symbols[key] = c
		mints[c.address] = key
	}

	accounts := make([]string, 0, len(s.Alloc))
	for account := range s.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	seenAccounts := make(map[crypto.Address]string, len(accounts))
	for _, account := range accounts {
		addr, err := crypto.ParseAddress(account)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		if prior, dup := seenAccounts[addr]; dup {
			return fmt.Errorf("alloc[%q]: same account as %q", account, prior)
		}
		seenAccounts[addr] = account
		seen := make(map[string]struct{})
		for symbol, amount := range s.Alloc[account] {
			key := state.NormalizeSymbol(symbol)
			if _, ok := symbols[key]; !ok {
				return fmt.Errorf("alloc[%q][%q]: undefined currency", account, symbol)
			}
			if _, dup := seen[key]; dup {
				return fmt.Errorf("alloc[%q]: duplicate currency %q", account, symbol)
			}
			seen[key] = struct{}{}
			if _, err := parseAmount(amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
		}
	}

	if s.Protocol != nil {
		if err := s.Protocol.validate(symbols); err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
	}
	return nil
}

func (c *CurrencySpec) validate() error {
	symbol := state.NormalizeSymbol(c.Symbol)
	if symbol == "" {
		return fmt.Errorf("symbol must be provided")
	}
	if len(symbol) > 16 {
		return fmt.Errorf("symbol %q longer than 16 characters", c.Symbol)
	}
	if strings.TrimSpace(c.Authority) == "" {
		return fmt.Errorf("authority must be provided")
	}
	authority, err := crypto.ParseAddress(c.Authority)
	if err != nil {
		return fmt.Errorf("authority: %w", err)
	}
	c.authority = authority
	if strings.TrimSpace(c.Address) == "" {
		addr, _, err := derive.CurrencyAddress(symbol)
		if err != nil {
			return fmt.Errorf("derive address: %w", err)
		}
		c.address = addr
		return nil
	}
	addr, err := crypto.ParseAddress(c.Address)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if addr.IsZero() {
		return fmt.Errorf("address must not be zero")
	}
	c.address = addr
	return nil
}

// MintAddress returns the resolved mint address of the currency.
func (c *CurrencySpec) MintAddress() [20]byte { return c.address }

func (p *ProtocolSpec) validate(symbols map[string]*CurrencySpec) error {
	admin, err := crypto.ParseAddress(p.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if admin.IsZero() {
		return fmt.Errorf("admin must not be zero")
	}
	p.admin = admin
	if p.Fee > 0 && p.FeeScalar == 0 {
		return fmt.Errorf("feeScalar must be set when fee is non-zero")
	}
	seen := make(map[string]struct{}, len(p.Vaults))
	for i, symbol := range p.Vaults {
		key := state.NormalizeSymbol(symbol)
		if _, ok := symbols[key]; !ok {
			return fmt.Errorf("vaults[%d]: undefined currency %q", i, symbol)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("vaults[%d]: duplicate currency %q", i, symbol)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}

func parseAmount(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount must be provided")
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
