package token

import "github.com/lulo-labs/lulo-sc/native/derive"

// Mint describes a fungible token class. Supply tracks every unit minted and
// not yet burned.
type Mint struct {
	Address   [20]byte
	Authority [20]byte
	Decimals  uint8
	Supply    uint64
}

// Clone returns a deep copy of the mint.
func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Account holds a balance of a single mint on behalf of an owner.
type Account struct {
	Address [20]byte
	Mint    [20]byte
	Owner   [20]byte
	Amount  uint64
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// Authority proves the right to move tokens out of an account or to mint new
// units. A signer authority names a transaction signer directly; a derived
// authority is re-derived from its seeds so that only the program can present
// it.
type Authority struct {
	signer  [20]byte
	derived bool
	bump    uint8
	seeds   [][]byte
}

// SignerAuthority returns an authority backed by the transaction signer.
func SignerAuthority(addr [20]byte) Authority {
	return Authority{signer: addr}
}

// DerivedAuthority returns an authority for the derived address identified by
// seeds and bump.
func DerivedAuthority(bump uint8, seeds ...[]byte) Authority {
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		copied[i] = append([]byte(nil), seed...)
	}
	return Authority{derived: true, bump: bump, seeds: copied}
}

// Resolve returns the address the authority acts for.
func (a Authority) Resolve() ([20]byte, error) {
	if !a.derived {
		return a.signer, nil
	}
	return derive.Create(a.seeds, a.bump)
}
