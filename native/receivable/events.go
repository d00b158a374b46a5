package receivable

import (
	"encoding/hex"
	"strconv"

	"github.com/lulo-labs/lulo-sc/core/types"
)

const (
	EventTypeInitialized     = "receivable.initialized"
	EventTypeVaultCreated    = "receivable.vault_created"
	EventTypeCreated         = "receivable.created"
	EventTypeApproverSet     = "receivable.approver_set"
	EventTypeApproverRevoked = "receivable.approver_revoked"
	EventTypeApproved        = "receivable.approved"
	EventTypePaid            = "receivable.paid"
	EventTypeRedeemed        = "receivable.redeemed"
)

// NewInitializedEvent returns the payload emitted when the protocol
// configuration is written. replaced marks an overwrite of an existing
// configuration.
func NewInitializedEvent(cfg *GlobalConfig, replaced bool) *types.Event {
	if cfg == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"admin":     hex.EncodeToString(cfg.Admin[:]),
			"fee":       strconv.FormatUint(cfg.Fee, 10),
			"feeScalar": strconv.FormatUint(cfg.FeeScalar, 10),
			"replaced":  strconv.FormatBool(replaced),
		},
	}
}

// NewVaultCreatedEvent returns the payload emitted when a vault pool opens.
func NewVaultCreatedEvent(v *VaultPool) *types.Event {
	if v == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeVaultCreated,
		Attributes: map[string]string{
			"currency": hex.EncodeToString(v.Currency[:]),
			"vault":    hex.EncodeToString(v.Address[:]),
			"bump":     strconv.FormatUint(uint64(v.Bump), 10),
		},
	}
}

// NewCreatedEvent returns the canonical payload for a newly issued contract.
func NewCreatedEvent(c *Contract) *types.Event { return newContractEvent(EventTypeCreated, c) }

// NewApprovedEvent returns the canonical payload for an approval.
func NewApprovedEvent(c *Contract) *types.Event { return newContractEvent(EventTypeApproved, c) }

// NewPaidEvent returns the canonical payload for a settlement.
func NewPaidEvent(c *Contract) *types.Event { return newContractEvent(EventTypePaid, c) }

// NewRedeemedEvent returns the canonical payload for a redemption. holder is
// the signer that surrendered the representative token.
func NewRedeemedEvent(c *Contract, holder, destination [20]byte) *types.Event {
	evt := newContractEvent(EventTypeRedeemed, c)
	if evt == nil {
		return nil
	}
	evt.Attributes["holder"] = hex.EncodeToString(holder[:])
	evt.Attributes["destination"] = hex.EncodeToString(destination[:])
	return evt
}

// NewApproverSetEvent returns the payload for a delegate registration.
func NewApproverSetEvent(r *ApproverRecord) *types.Event {
	return newApproverEvent(EventTypeApproverSet, r)
}

// NewApproverRevokedEvent returns the payload for a delegate revocation.
func NewApproverRevokedEvent(r *ApproverRecord) *types.Event {
	return newApproverEvent(EventTypeApproverRevoked, r)
}

func newApproverEvent(eventType string, r *ApproverRecord) *types.Event {
	if r == nil {
		return nil
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"record":   hex.EncodeToString(r.Address[:]),
			"admin":    hex.EncodeToString(r.Admin[:]),
			"delegate": hex.EncodeToString(r.Delegate[:]),
		},
	}
}

func newContractEvent(eventType string, c *Contract) *types.Event {
	if c == nil {
		return nil
	}
	attrs := map[string]string{
		"id":        hex.EncodeToString(c.ID[:]),
		"creator":   hex.EncodeToString(c.Creator[:]),
		"recipient": hex.EncodeToString(c.Recipient[:]),
		"mint":      hex.EncodeToString(c.Mint[:]),
		"payMint":   hex.EncodeToString(c.PayMint[:]),
		"amountDue": strconv.FormatUint(c.AmountDue, 10),
		"dueDate":   strconv.FormatInt(c.DueDate, 10),
		"status":    c.Status.String(),
	}
	if c.Approved() {
		attrs["approver"] = hex.EncodeToString(c.Approver[:])
	}
	if c.Payer != ([20]byte{}) {
		attrs["payer"] = hex.EncodeToString(c.Payer[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
