package core

import (
	"fmt"
	"log/slog"
	"math"

	coreerrors "github.com/lulo-labs/lulo-sc/core/errors"
	"github.com/lulo-labs/lulo-sc/core/types"
	"github.com/lulo-labs/lulo-sc/crypto"
)

func decode(tx *types.Transaction, out interface{}) error {
	if err := tx.DecodePayload(out); err != nil {
		return fmt.Errorf("%w: %v", coreerrors.ErrInvalidPayload, err)
	}
	return nil
}

// dispatch runs the engine operation selected by tx.Type. The caller owns
// rollback on error.
func (n *Node) dispatch(sender [20]byte, tx *types.Transaction) (outcome, error) {
	var out outcome
	switch tx.Type {
	case types.TxTypeInitialize:
		var p types.InitializePayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		cfg, replaced, err := n.engine.Initialize(sender, p.Fee, p.FeeScalar)
		if err != nil {
			return out, err
		}
		if replaced {
			n.logger.Warn("protocol configuration overwritten",
				slog.String("admin", crypto.Address(cfg.Admin).String()))
		}
		return out, nil

	case types.TxTypeCreateVault:
		var p types.CreateVaultPayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		vault, err := n.engine.CreateVault(sender, p.Currency)
		if err != nil {
			return out, err
		}
		out.currencies = append(out.currencies, vault.Currency)
		return out, nil

	case types.TxTypeCreateContract:
		var p types.CreateContractPayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		if p.DueDate > math.MaxInt64 {
			return out, fmt.Errorf("%w: due date out of range", coreerrors.ErrInvalidPayload)
		}
		contract, err := n.engine.Create(sender, p.Recipient, p.PayMint, p.AmountDue, int64(p.DueDate))
		if err != nil {
			return out, err
		}
		id := contract.ID
		out.contractID = &id
		return out, nil

	case types.TxTypeSetApprover:
		var p types.ApproverPayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		_, err := n.engine.SetApprover(sender, p.Delegate)
		return out, err

	case types.TxTypeRevokeApprover:
		var p types.ApproverPayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		_, err := n.engine.RevokeApprover(sender, p.Delegate)
		return out, err

	case types.TxTypeApprove:
		var p types.ContractPayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		if _, err := n.engine.Approve(sender, p.ContractID); err != nil {
			return out, err
		}
		out.contractID = &p.ContractID
		return out, nil

	case types.TxTypePay:
		var p types.PayPayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		contract, err := n.engine.Pay(sender, p.ContractID, p.Source)
		if err != nil {
			return out, err
		}
		out.contractID = &p.ContractID
		out.currencies = append(out.currencies, contract.PayMint)
		return out, nil

	case types.TxTypeRedeem:
		var p types.RedeemPayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		contract, err := n.engine.Redeem(sender, p.ContractID, p.Creator, p.Holding, p.Destination)
		if err != nil {
			return out, err
		}
		out.contractID = &p.ContractID
		out.currencies = append(out.currencies, contract.PayMint)
		return out, nil

	case types.TxTypeTokenTransfer:
		var p types.TokenTransferPayload
		if err := decode(tx, &p); err != nil {
			return out, err
		}
		return out, n.engine.TransferTokens(sender, p.Mint, p.To, p.Amount)
	}
	return out, fmt.Errorf("%w: %s", coreerrors.ErrUnknownTxType, tx.Type)
}
