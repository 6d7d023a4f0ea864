package cmd

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/solana-counter-api/solana"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

// DeriveAddress prints the counter PDA for a seed without touching the network
func DeriveAddress(a *AppState) *cobra.Command {
	return &cobra.Command{
		Use:   "derive-address [seed]",
		Short: "Derive the counter address for a seed under the configured wallet",
		Args:  cobra.MaximumNArgs(1),

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := types.DefaultSeed
			if len(args) == 1 && args[0] != "" {
				seed = args[0]
			}

			authority := solanago.PrivateKey(a.Config.WalletSecretKey).PublicKey()
			program, err := solanago.PublicKeyFromBase58(a.Config.ProgramID)
			if err != nil {
				return fmt.Errorf("unable to parse counter program address: %w", err)
			}

			counter, bump, err := solana.DeriveCounterAddress(seed, authority, program)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "counter:   %s\n", counter)
			fmt.Fprintf(out, "bump:      %d\n", bump)
			fmt.Fprintf(out, "seed:      %s\n", seed)
			fmt.Fprintf(out, "authority: %s\n", authority)
			fmt.Fprintf(out, "program:   %s\n", program)
			return nil
		},
	}
}
