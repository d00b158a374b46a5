// Package derive computes program-owned addresses. A derived address is a
// deterministic function of a seed list, a one-byte bump and the program id.
// The address is the last 20 bytes of a keccak256 digest over the seeds. A
// candidate is rejected when the full digest, read as an x-coordinate, is a
// point on secp256k1; Find walks bumps from 255 down until it hits an
// off-curve candidate. The curve check only partitions bump values. Keys
// cannot sign for a derived address because signer addresses are keccak
// digests of public keys, and finding a key for a given 20-byte suffix is a
// preimage search.
package derive

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seeds accepted by a derivation.
	MaxSeeds = 16
	// MaxSeedLen bounds the length of an individual seed in bytes.
	MaxSeedLen = 32

	marker = "DerivedAddress"
)

var (
	// ProgramID namespaces every derived address produced by this module.
	ProgramID = ethcrypto.Keccak256Hash([]byte("lulo/receivables/v1"))

	ErrTooManySeeds       = errors.New("derive: too many seeds")
	ErrSeedTooLong        = errors.New("derive: seed exceeds maximum length")
	ErrNoViableBump       = errors.New("derive: no viable bump seed")
	ErrDerivationMismatch = errors.New("derive: address does not match seeds")

	// ErrOnCurve reports that the candidate digest is a valid secp256k1
	// x-coordinate. It says nothing about who controls the 20-byte address.
	ErrOnCurve = errors.New("derive: candidate digest lies on the secp256k1 curve")
)

// Create recomputes the address for the supplied seeds and bump. It fails with
// ErrOnCurve when the candidate digest is a point on the curve.
func Create(seeds [][]byte, bump uint8) ([20]byte, error) {
	var addr [20]byte
	if len(seeds) > MaxSeeds {
		return addr, ErrTooManySeeds
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return addr, ErrSeedTooLong
		}
	}
	parts := make([][]byte, 0, len(seeds)+3)
	parts = append(parts, seeds...)
	parts = append(parts, []byte{bump}, ProgramID.Bytes(), []byte(marker))
	digest := ethcrypto.Keccak256(parts...)
	if onCurve(digest) {
		return addr, ErrOnCurve
	}
	copy(addr[:], digest[12:])
	return addr, nil
}

// Find returns the first off-curve address for the seeds, searching bumps
// from 255 downwards, together with the bump that produced it.
func Find(seeds ...[]byte) ([20]byte, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := Create(seeds, uint8(bump))
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return [20]byte{}, 0, err
		}
	}
	return [20]byte{}, 0, ErrNoViableBump
}

// Verify checks that addr is the derivation of seeds with the given bump.
func Verify(addr [20]byte, seeds [][]byte, bump uint8) error {
	expected, err := Create(seeds, bump)
	if err != nil {
		if errors.Is(err, ErrOnCurve) {
			return ErrDerivationMismatch
		}
		return err
	}
	if expected != addr {
		return ErrDerivationMismatch
	}
	return nil
}

func onCurve(digest []byte) bool {
	compressed := make([]byte, 0, 33)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, digest...)
	_, err := ethcrypto.DecompressPubkey(compressed)
	return err == nil
}

// StateSeeds names the global configuration singleton.
func StateSeeds() [][]byte {
	return [][]byte{[]byte("state")}
}

// MintSeeds names the representative token mint of a contract.
func MintSeeds(contractID [32]byte) [][]byte {
	return [][]byte{[]byte("mint"), contractID[:]}
}

// VaultSeeds names the custodial vault of a settlement currency.
func VaultSeeds(currency [20]byte) [][]byte {
	return [][]byte{[]byte("vault"), currency[:]}
}

// ApproverSeeds names the delegation record for the ordered (admin, delegate)
// pair.
func ApproverSeeds(admin, delegate [20]byte) [][]byte {
	return [][]byte{[]byte("approver"), admin[:], delegate[:]}
}

// HoldingSeeds names the associated token account of owner for mint.
func HoldingSeeds(owner, mint [20]byte) [][]byte {
	return [][]byte{[]byte("holding"), owner[:], mint[:]}
}

// ContractSeeds names the contract created by creator at the given sequence.
func ContractSeeds(creator [20]byte, sequence uint64) [][]byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], sequence)
	return [][]byte{[]byte("contract"), creator[:], seq[:]}
}

// ContractID hashes the contract seeds into the 32-byte contract identifier.
func ContractID(creator [20]byte, sequence uint64) [32]byte {
	return ethcrypto.Keccak256Hash(ContractSeeds(creator, sequence)...)
}

// CurrencyAddress maps a currency symbol onto the derived mint address used
// when a genesis file does not pin one.
func CurrencyAddress(symbol string) ([20]byte, uint8, error) {
	digest := ethcrypto.Keccak256([]byte(symbol))
	return Find([]byte("currency"), digest)
}
