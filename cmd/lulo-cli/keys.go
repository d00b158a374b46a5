package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lulo-labs/lulo-sc/cmd/internal/passphrase"
	"github.com/lulo-labs/lulo-sc/crypto"
)

func (c *cli) keygenCmd() *cobra.Command {
	var (
		out   string
		light bool
		force bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key into an encrypted keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := strings.TrimSpace(out)
			if path == "" {
				path = c.profile.Keystore
			}
			if path == "" {
				return fmt.Errorf("--out required when the profile has no keystore")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("keystore %s already exists; pass --force to overwrite", path)
			}
			pass, err := passphrase.NewSource(passphrase.DefaultEnv, passphrase.WithConfirm(), passphrase.WithLabel("new keystore passphrase")).Get()
			if err != nil {
				return err
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			strength := crypto.StandardKeystore
			if light {
				strength = crypto.LightKeystore
			}
			if err := crypto.SaveToKeystore(path, key, pass, strength); err != nil {
				return fmt.Errorf("write keystore: %w", err)
			}
			return c.printJSON(map[string]string{
				"address":  key.Address().String(),
				"hex":      key.Address().Hex(),
				"keystore": path,
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Keystore path (defaults to the profile keystore)")
	cmd.Flags().BoolVar(&light, "light", false, "Use light scrypt parameters (test keys only)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing keystore")
	return cmd
}

func (c *cli) addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the configured keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := c.signer()
			if err != nil {
				return err
			}
			return c.printJSON(map[string]string{"address": key.Address().String(), "hex": key.Address().Hex()})
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect or write the client profile",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.printJSON(c.profile)
		},
	}, &cobra.Command{
		Use:   "save",
		Short: "Persist the resolved profile, including flag overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := saveProfile(c.flags.Profile, c.profile); err != nil {
				return fmt.Errorf("save profile: %w", err)
			}
			fmt.Fprintf(c.out, "profile written to %s\n", c.flags.Profile)
			return nil
		},
	})
	return cmd
}
