package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lulo-labs/lulo-sc/core/types"
	"github.com/lulo-labs/lulo-sc/crypto"
)

func (c *cli) txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign and submit ledger transactions",
	}
	cmd.AddCommand(
		c.initializeCmd(),
		c.createVaultCmd(),
		c.createCmd(),
		c.approverCmd("set-approver", "Authorize a delegate to approve your receivables", types.TxTypeSetApprover),
		c.approverCmd("revoke-approver", "Revoke a delegate approver", types.TxTypeRevokeApprover),
		c.approveCmd(),
		c.payCmd(),
		c.redeemCmd(),
		c.transferCmd(),
	)
	return cmd
}

// send signs payload with the configured keystore and prints the receipt.
func (c *cli) send(ctx context.Context, txType types.TxType, payload interface{}) error {
	key, err := c.signer()
	if err != nil {
		return err
	}
	receipt, err := c.client().submit(ctx, key, c.profile.ChainID, txType, payload)
	if err != nil {
		return err
	}
	return c.printJSON(receipt)
}

// parseDueDate accepts unix seconds, RFC3339 or a +duration relative to now.
func parseDueDate(value string, now time.Time) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("due date required")
	}
	if strings.HasPrefix(value, "+") {
		d, err := time.ParseDuration(value[1:])
		if err != nil {
			return 0, fmt.Errorf("due date: %w", err)
		}
		return uint64(now.Add(d).Unix()), nil
	}
	if secs, err := strconv.ParseUint(value, 10, 64); err == nil {
		return secs, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("due date %q: expected unix seconds, RFC3339 or +duration", value)
	}
	if ts.Unix() < 0 {
		return 0, fmt.Errorf("due date %q before the unix epoch", value)
	}
	return uint64(ts.Unix()), nil
}

func parseAddressFlag(name, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, fmt.Errorf("--%s required", name)
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

func parseIDFlag(value string) ([32]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [32]byte{}, fmt.Errorf("--id required")
	}
	id, err := crypto.ParseHash32(value)
	if err != nil {
		return [32]byte{}, fmt.Errorf("--id: %w", err)
	}
	return id, nil
}

func (c *cli) initializeCmd() *cobra.Command {
	var fee, scalar uint64
	cmd := &cobra.Command{
		Use:   "initialize",
		Short: "Set the protocol fee parameters and become the admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.send(cmd.Context(), types.TxTypeInitialize, &types.InitializePayload{Fee: fee, FeeScalar: scalar})
		},
	}
	cmd.Flags().Uint64Var(&fee, "fee", 0, "Protocol fee numerator")
	cmd.Flags().Uint64Var(&scalar, "fee-scalar", 0, "Protocol fee denominator")
	return cmd
}

func (c *cli) createVaultCmd() *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "create-vault",
		Short: "Open the vault pool of a settlement currency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mint, err := c.client().resolveMint(cmd.Context(), currency)
			if err != nil {
				return err
			}
			return c.send(cmd.Context(), types.TxTypeCreateVault, &types.CreateVaultPayload{Currency: mint})
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "", "Currency symbol or mint address")
	_ = cmd.MarkFlagRequired("currency")
	return cmd
}

func (c *cli) createCmd() *cobra.Command {
	var recipient, currency, due string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a receivable owed to a recipient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			to, err := parseAddressFlag("recipient", recipient)
			if err != nil {
				return err
			}
			dueDate, err := parseDueDate(due, time.Now())
			if err != nil {
				return err
			}
			mint, err := c.client().resolveMint(cmd.Context(), currency)
			if err != nil {
				return err
			}
			return c.send(cmd.Context(), types.TxTypeCreateContract, &types.CreateContractPayload{
				Recipient: to,
				PayMint:   mint,
				AmountDue: amount,
				DueDate:   dueDate,
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "Address owed the receivable")
	cmd.Flags().StringVar(&currency, "currency", "", "Settlement currency symbol or mint address")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "Amount due in base units")
	cmd.Flags().StringVar(&due, "due", "", "Due date: unix seconds, RFC3339 or +duration")
	for _, name := range []string{"recipient", "currency", "amount", "due"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *cli) approverCmd(use, short string, txType types.TxType) *cobra.Command {
	var delegate string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := parseAddressFlag("delegate", delegate)
			if err != nil {
				return err
			}
			return c.send(cmd.Context(), txType, &types.ApproverPayload{Delegate: addr})
		},
	}
	cmd.Flags().StringVar(&delegate, "delegate", "", "Delegate address")
	return cmd
}

func (c *cli) approveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a receivable as its recipient or a delegate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			contractID, err := parseIDFlag(id)
			if err != nil {
				return err
			}
			return c.send(cmd.Context(), types.TxTypeApprove, &types.ContractPayload{ContractID: contractID})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Contract id")
	return cmd
}

func (c *cli) payCmd() *cobra.Command {
	var id, source string
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Settle a receivable into its vault",
		Long:  "Settle a receivable into its vault. The amount is drawn from --source, or from the signer's associated account of the settlement currency.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			contractID, err := parseIDFlag(id)
			if err != nil {
				return err
			}
			var src [20]byte
			if source != "" {
				if src, err = parseAddressFlag("source", source); err != nil {
					return err
				}
			} else {
				key, err := c.signer()
				if err != nil {
					return err
				}
				client := c.client()
				contract, err := client.contract(ctx, id)
				if err != nil {
					return err
				}
				acct, err := client.associated(ctx, key.Address(), contract.PayMint)
				if err != nil {
					return err
				}
				if src, err = crypto.ParseAddress(acct.Address); err != nil {
					return err
				}
			}
			return c.send(ctx, types.TxTypePay, &types.PayPayload{ContractID: contractID, Source: src})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Contract id")
	cmd.Flags().StringVar(&source, "source", "", "Token account to pay from")
	return cmd
}

func (c *cli) redeemCmd() *cobra.Command {
	var id, holding, destination string
	cmd := &cobra.Command{
		Use:   "redeem",
		Short: "Surrender the representative token for the settled funds",
		Long:  "Surrender the representative token for the settled funds. --holding and --destination default to the signer's associated accounts of the contract mint and settlement currency.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			contractID, err := parseIDFlag(id)
			if err != nil {
				return err
			}
			key, err := c.signer()
			if err != nil {
				return err
			}
			client := c.client()
			contract, err := client.contract(ctx, id)
			if err != nil {
				return err
			}
			creator, err := crypto.ParseAddress(contract.Creator)
			if err != nil {
				return err
			}
			resolve := func(flagName, value, mint string) ([20]byte, error) {
				if value != "" {
					return parseAddressFlag(flagName, value)
				}
				acct, err := client.associated(ctx, key.Address(), mint)
				if err != nil {
					return [20]byte{}, err
				}
				return crypto.ParseAddress(acct.Address)
			}
			hold, err := resolve("holding", holding, contract.Mint)
			if err != nil {
				return err
			}
			dest, err := resolve("destination", destination, contract.PayMint)
			if err != nil {
				return err
			}
			payload := &types.RedeemPayload{ContractID: contractID, Creator: creator, Holding: hold, Destination: dest}
			receipt, err := client.submit(ctx, key, c.profile.ChainID, types.TxTypeRedeem, payload)
			if err != nil {
				return err
			}
			return c.printJSON(receipt)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Contract id")
	cmd.Flags().StringVar(&holding, "holding", "", "Account holding the representative token")
	cmd.Flags().StringVar(&destination, "destination", "", "Account credited with the settled funds")
	return cmd
}

func (c *cli) transferCmd() *cobra.Command {
	var mint, to string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move tokens to another owner's associated account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mintAddr, err := c.client().resolveMint(cmd.Context(), mint)
			if err != nil {
				return err
			}
			recipient, err := parseAddressFlag("to", to)
			if err != nil {
				return err
			}
			return c.send(cmd.Context(), types.TxTypeTokenTransfer, &types.TokenTransferPayload{Mint: mintAddr, To: recipient, Amount: amount})
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "Mint address or currency symbol")
	cmd.Flags().StringVar(&to, "to", "", "Recipient owner address")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "Amount in base units")
	return cmd
}
