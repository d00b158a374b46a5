// Package errors holds the node-level transaction errors and maps every
// failure a transaction can produce onto a small set of classes shared by
// metrics and the RPC layer.
package errors

import (
	stderrors "errors"

	"github.com/lulo-labs/lulo-sc/native/derive"
	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/native/token"
)

var (
	ErrNilTransaction  = stderrors.New("node: nil transaction")
	ErrInvalidChainID  = stderrors.New("node: transaction chain id mismatch")
	ErrInvalidNonce    = stderrors.New("node: invalid nonce")
	ErrUnknownTxType   = stderrors.New("node: unknown transaction type")
	ErrInvalidPayload  = stderrors.New("node: invalid transaction payload")
	ErrInvalidSigner   = stderrors.New("node: invalid transaction signature")
	ErrGenesisApplied  = stderrors.New("node: genesis already applied")
	ErrInvalidGenesis  = stderrors.New("node: invalid genesis")
	ErrCurrencyUnknown = stderrors.New("node: unknown currency symbol")
)

// Class groups errors by how a client should react to them.
type Class string

const (
	ClassNone          Class = ""
	ClassValidation    Class = "validation"
	ClassAuthorization Class = "authorization"
	ClassNotFound      Class = "not_found"
	ClassConflict      Class = "conflict"
	ClassInvalidState  Class = "invalid_state"
	ClassCustody       Class = "custody"
	ClassInternal      Class = "internal"
)

var classes = []struct {
	class Class
	errs  []error
}{
	{ClassValidation, []error{
		receivable.ErrInvalidDueDate, receivable.ErrInvalidAmount, receivable.ErrInvalidFeeScalar,
		receivable.ErrInvalidDelegate, receivable.ErrInvalidRecipient, receivable.ErrInvalidHolding,
		receivable.ErrInvalidDestination,
		ErrNilTransaction, ErrInvalidChainID, ErrInvalidNonce, ErrUnknownTxType, ErrInvalidPayload,
		ErrInvalidSigner, ErrInvalidGenesis, ErrCurrencyUnknown,
		derive.ErrSeedTooLong, derive.ErrTooManySeeds,
	}},
	{ClassAuthorization, []error{
		receivable.ErrUnauthorizedAdmin, receivable.ErrUnauthorizedApprover, receivable.ErrCreatorMismatch,
	}},
	{ClassNotFound, []error{
		receivable.ErrContractNotFound, receivable.ErrVaultNotFound, receivable.ErrApproverNotFound,
		receivable.ErrNotInitialized, token.ErrAccountNotFound, token.ErrMintNotFound,
	}},
	{ClassConflict, []error{
		receivable.ErrVaultExists, receivable.ErrApproverExists, receivable.ErrExistingApproval,
		receivable.ErrContractExists, ErrGenesisApplied, token.ErrAccountExists, token.ErrMintExists,
	}},
	{ClassInvalidState, []error{
		receivable.ErrAlreadyPaid, receivable.ErrNotApproved, receivable.ErrNotPaid,
	}},
	{ClassCustody, []error{
		token.ErrInsufficientFunds, token.ErrMintMismatch, token.ErrOwnerMismatch, token.ErrAuthorityMismatch,
		token.ErrSupplyOverflow, token.ErrZeroAmount, receivable.ErrOutstandingBroken,
		derive.ErrDerivationMismatch, derive.ErrOnCurve,
	}},
}

// Classify returns the class of err. Unrecognised errors are internal.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	for _, group := range classes {
		for _, target := range group.errs {
			if stderrors.Is(err, target) {
				return group.class
			}
		}
	}
	return ClassInternal
}
