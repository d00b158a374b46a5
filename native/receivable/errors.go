package receivable

import "errors"

// Validation failures.
var (
	ErrInvalidDueDate   = errors.New("receivable: due date must be in the future")
	ErrInvalidAmount    = errors.New("receivable: amount due must be positive")
	ErrInvalidFeeScalar = errors.New("receivable: fee scalar must be positive when a fee is set")
	ErrInvalidDelegate  = errors.New("receivable: invalid delegate")
	ErrInvalidRecipient = errors.New("receivable: invalid recipient")
	ErrInvalidHolding   = errors.New("receivable: holding does not carry the representative token")

	// ErrInvalidDestination rejects redeeming into the vault itself.
	ErrInvalidDestination = errors.New("receivable: destination may not be the vault")
)

// Authorization failures.
var (
	ErrUnauthorizedAdmin    = errors.New("receivable: signer is not the protocol admin")
	ErrUnauthorizedApprover = errors.New("receivable: signer may not approve this contract")
	ErrCreatorMismatch      = errors.New("receivable: creator does not match contract")
)

// State conflicts.
var (
	ErrNotInitialized    = errors.New("receivable: protocol not initialized")
	ErrVaultExists       = errors.New("receivable: vault already exists")
	ErrVaultNotFound     = errors.New("receivable: vault not found")
	ErrContractNotFound  = errors.New("receivable: contract not found")
	ErrContractExists    = errors.New("receivable: contract already exists")
	ErrApproverExists    = errors.New("receivable: approver already registered")
	ErrApproverNotFound  = errors.New("receivable: approver not found")
	ErrExistingApproval  = errors.New("receivable: contract already approved")
	ErrAlreadyPaid       = errors.New("receivable: contract already paid")
	ErrNotApproved       = errors.New("receivable: contract not approved")
	ErrNotPaid           = errors.New("receivable: contract not paid")
	ErrOutstandingBroken = errors.New("receivable: vault outstanding out of range")
)

var errNilState = errors.New("receivable engine: state not configured")
