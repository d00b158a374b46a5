package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Read ledger state",
	}
	cmd.AddCommand(
		c.simpleQuery("status", "Print chain id, height and state root", "lulo_getStatus", nil),
		c.simpleQuery("config", "Print the protocol configuration", "lulo_getConfig", nil),
		c.simpleQuery("currencies", "List registered currencies", "lulo_getCurrencies", nil),
		c.contractQuery(),
		c.contractsQuery(),
		c.vaultQuery(),
		c.approverQuery(),
		c.balanceQuery(),
		c.mintQuery(),
		c.eventsQuery(),
		c.deriveQuery(),
	)
	return cmd
}

func (c *cli) run(cmd *cobra.Command, method string, param interface{}) error {
	var result json.RawMessage
	if err := c.client().call(cmd.Context(), method, param, false, &result); err != nil {
		return err
	}
	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return c.printJSON(pretty)
}

func (c *cli) simpleQuery(use, short, method string, param interface{}) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, method, param)
		},
	}
}

func (c *cli) contractQuery() *cobra.Command {
	return &cobra.Command{
		Use:   "contract <id>",
		Short: "Show a receivable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "lulo_getContract", map[string]string{"id": args[0]})
		},
	}
}

func (c *cli) contractsQuery() *cobra.Command {
	var creator, recipient, currency, status string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "List receivables from the node index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, "lulo_listContracts", map[string]interface{}{
				"creator":   creator,
				"recipient": recipient,
				"payMint":   currency,
				"status":    status,
				"limit":     limit,
				"offset":    offset,
			})
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "Filter by creator")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Filter by recipient")
	cmd.Flags().StringVar(&currency, "currency", "", "Filter by settlement currency")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (created, approved, paid, redeemed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func (c *cli) vaultQuery() *cobra.Command {
	return &cobra.Command{
		Use:   "vault [currency]",
		Short: "Show one vault, or all vaults without an argument",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return c.run(cmd, "lulo_getVault", nil)
			}
			return c.run(cmd, "lulo_getVault", map[string]string{"currency": args[0]})
		},
	}
}

func (c *cli) approverQuery() *cobra.Command {
	return &cobra.Command{
		Use:   "approver <admin> <delegate>",
		Short: "Show a delegation record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "lulo_getApprover", map[string]string{"admin": args[0], "delegate": args[1]})
		},
	}
}

func (c *cli) balanceQuery() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <owner> <mint-or-symbol>",
		Short: "Show the associated token account of an owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "lulo_getTokenAccount", map[string]string{"owner": args[0], "mint": args[1]})
		},
	}
}

func (c *cli) mintQuery() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <mint-or-symbol>",
		Short: "Show a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "lulo_getMint", map[string]string{"mint": args[0]})
		},
	}
}

func (c *cli) eventsQuery() *cobra.Command {
	var cursor uint64
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Page through the committed event journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, "lulo_getEvents", map[string]interface{}{"cursor": cursor, "limit": limit})
		},
	}
	cmd.Flags().Uint64Var(&cursor, "cursor", 1, "First sequence to return")
	cmd.Flags().IntVar(&limit, "limit", 100, "Page size")
	return cmd
}

func (c *cli) deriveQuery() *cobra.Command {
	params := map[string]*string{}
	var sequence uint64
	cmd := &cobra.Command{
		Use:   "derive <kind>",
		Short: "Compute a program-derived address",
		Long:  "Compute a program-derived address. Kinds: state, mint, vault, approver, holding, contract, currency.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]interface{}{"kind": args[0], "sequence": sequence}
			for name, v := range params {
				if *v != "" {
					req[name] = *v
				}
			}
			return c.run(cmd, "lulo_deriveAddress", req)
		},
	}
	for _, name := range []string{"contractId", "currency", "admin", "delegate", "owner", "mint", "creator", "symbol"} {
		v := new(string)
		params[name] = v
		cmd.Flags().StringVar(v, name, "", name+" input")
	}
	cmd.Flags().Uint64Var(&sequence, "sequence", 0, "Creator sequence for contract ids")
	return cmd
}
