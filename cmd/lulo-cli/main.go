package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lulo-labs/lulo-sc/cmd/internal/passphrase"
	"github.com/lulo-labs/lulo-sc/crypto"
)

type globalFlags struct {
	Profile  string
	RPC      string
	Keystore string
	ChainID  uint64
}

// cli carries the resolved profile and I/O of one invocation.
type cli struct {
	flags   globalFlags
	profile *Profile
	out     io.Writer
	pass    *passphrase.Source
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out, pass: passphrase.NewSource(passphrase.DefaultEnv)}
	root := &cobra.Command{
		Use:           "lulo-cli",
		Short:         "Client for the lulo receivables ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.resolve(cmd)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.flags.Profile, "profile", defaultProfilePath(), "Path to the YAML client profile")
	root.PersistentFlags().StringVar(&c.flags.RPC, "rpc", "", "JSON-RPC endpoint (overrides profile and "+rpcEndpointEnv+")")
	root.PersistentFlags().StringVar(&c.flags.Keystore, "keystore", "", "Signer keystore file (overrides profile)")
	root.PersistentFlags().Uint64Var(&c.flags.ChainID, "chain-id", 0, "Chain id to sign for (overrides profile)")

	root.AddCommand(
		c.keygenCmd(),
		c.addressCmd(),
		c.profileCmd(),
		c.txCmd(),
		c.queryCmd(),
	)
	return root
}

func (c *cli) resolve(cmd *cobra.Command) error {
	p, err := loadProfile(c.flags.Profile)
	if err != nil {
		return err
	}
	if v, ok := os.LookupEnv(rpcEndpointEnv); ok && strings.TrimSpace(v) != "" {
		p.RPC = strings.TrimSpace(v)
	}
	if cmd.Flags().Changed("rpc") {
		p.RPC = c.flags.RPC
	}
	if cmd.Flags().Changed("keystore") {
		p.Keystore = c.flags.Keystore
	}
	if cmd.Flags().Changed("chain-id") {
		p.ChainID = c.flags.ChainID
	}
	c.profile = p
	return nil
}

func (c *cli) client() *rpcClient {
	return newRPCClient(c.profile.RPC, c.profile.token())
}

func (c *cli) signer() (*crypto.PrivateKey, error) {
	path := strings.TrimSpace(c.profile.Keystore)
	if path == "" {
		return nil, fmt.Errorf("no keystore configured; pass --keystore or set keystore in the profile")
	}
	pass, err := c.pass.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock keystore %s: %w", path, err)
	}
	return key, nil
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
