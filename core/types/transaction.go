package types

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeInitialize     TxType = 0x01 // Bootstrap or overwrite the protocol configuration
	TxTypeCreateVault    TxType = 0x02 // Admin opens the vault pool of a currency
	TxTypeCreateContract TxType = 0x03 // Issue a receivable and its representative token
	TxTypeSetApprover    TxType = 0x04 // Register a delegate approver
	TxTypeRevokeApprover TxType = 0x05 // Revoke a delegate approver
	TxTypeApprove        TxType = 0x06 // Recipient or delegate approves a contract
	TxTypePay            TxType = 0x07 // Settle the amount due into the vault
	TxTypeRedeem         TxType = 0x08 // Surrender the representative token for settled funds
	TxTypeTokenTransfer  TxType = 0x09 // Move tokens between associated accounts
)

var txTypeNames = map[TxType]string{
	TxTypeInitialize:     "initialize",
	TxTypeCreateVault:    "create_vault",
	TxTypeCreateContract: "create",
	TxTypeSetApprover:    "set_approver",
	TxTypeRevokeApprover: "revoke_approver",
	TxTypeApprove:        "approve",
	TxTypePay:            "pay",
	TxTypeRedeem:         "redeem",
	TxTypeTokenTransfer:  "transfer",
}

// String returns the operation name of the transaction type.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tx(0x%02x)", byte(t))
}

// Valid reports whether the type is known to the node.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

// ParseTxType resolves an operation name back into its type.
func ParseTxType(name string) (TxType, error) {
	for t, n := range txTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("types: unknown transaction type %q", name)
}

var ErrMissingSignature = errors.New("types: transaction is not signed")

// Transaction is a signed request to run one lifecycle operation. Data holds
// the RLP encoding of the payload matching Type.
type Transaction struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Data    []byte `json:"data"`

	// Sender's signature
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *[20]byte
}

// Hash returns keccak256 over the RLP encoding of the signed fields.
func (tx *Transaction) Hash() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes([]interface{}{tx.ChainID, uint8(tx.Type), tx.Nonce, tx.Data})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Sign signs the transaction with privKey.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer address from the signature.
func (tx *Transaction) From() ([20]byte, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return [20]byte{}, ErrMissingSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return [20]byte{}, err
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || tx.V.Uint64() < 27 {
		return [20]byte{}, fmt.Errorf("types: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return [20]byte{}, err
	}
	var addr [20]byte
	copy(addr[:], crypto.PubkeyToAddress(*pubKey).Bytes())
	tx.from = &addr
	return addr, nil
}

// SetPayload RLP-encodes payload into Data.
func (tx *Transaction) SetPayload(payload interface{}) error {
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return err
	}
	tx.Data = encoded
	tx.from = nil
	return nil
}

// DecodePayload decodes Data into out.
func (tx *Transaction) DecodePayload(out interface{}) error {
	if err := rlp.DecodeBytes(tx.Data, out); err != nil {
		return fmt.Errorf("types: decode %s payload: %w", tx.Type, err)
	}
	return nil
}
