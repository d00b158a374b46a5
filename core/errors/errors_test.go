package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/lulo-labs/lulo-sc/native/receivable"
	"github.com/lulo-labs/lulo-sc/native/token"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{receivable.ErrInvalidDueDate, ClassValidation},
		{receivable.ErrInvalidDestination, ClassValidation},
		{receivable.ErrUnauthorizedApprover, ClassAuthorization},
		{receivable.ErrContractNotFound, ClassNotFound},
		{receivable.ErrExistingApproval, ClassConflict},
		{receivable.ErrNotPaid, ClassInvalidState},
		{fmt.Errorf("pay: %w", token.ErrInsufficientFunds), ClassCustody},
		{ErrInvalidNonce, ClassValidation},
		{stderrors.New("disk on fire"), ClassInternal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
