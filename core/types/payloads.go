package types

// InitializePayload sets the protocol fee parameters. The signer becomes the
// admin.
type InitializePayload struct {
	Fee       uint64
	FeeScalar uint64
}

// CreateVaultPayload opens the vault pool for Currency.
type CreateVaultPayload struct {
	Currency [20]byte
}

// CreateContractPayload issues a receivable owed to Recipient. DueDate is a
// unix timestamp in seconds.
type CreateContractPayload struct {
	Recipient [20]byte
	PayMint   [20]byte
	AmountDue uint64
	DueDate   uint64
}

// ApproverPayload registers or revokes Delegate for the signer.
type ApproverPayload struct {
	Delegate [20]byte
}

// ContractPayload references an existing contract.
type ContractPayload struct {
	ContractID [32]byte
}

// PayPayload settles ContractID from the Source token account.
type PayPayload struct {
	ContractID [32]byte
	Source     [20]byte
}

// RedeemPayload surrenders the representative token in Holding and credits
// the settled funds to Destination.
type RedeemPayload struct {
	ContractID  [32]byte
	Creator     [20]byte
	Holding     [20]byte
	Destination [20]byte
}

// TokenTransferPayload moves Amount of Mint from the signer's associated
// account to the associated account of To.
type TokenTransferPayload struct {
	Mint   [20]byte
	To     [20]byte
	Amount uint64
}
