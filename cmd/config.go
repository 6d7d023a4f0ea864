package cmd

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/strangelove-ventures/solana-counter-api/types"
)

func ConfigCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(configShow(a))
	return cmd
}

// effectiveConfig is the printable config. The secret key is replaced by its public half.
type effectiveConfig struct {
	types.AppConfig `yaml:",inline"`
	Wallet          string `yaml:"wallet"`
}

func configShow(a *AppState) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the config after defaults, file, .env and environment are layered",
		Args:  cobra.NoArgs,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := renderConfig(a.Config)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func renderConfig(cfg *types.AppConfig) (string, error) {
	view := effectiveConfig{
		AppConfig: *cfg,
		Wallet:    solanago.PrivateKey(cfg.WalletSecretKey).PublicKey().String(),
	}
	view.WalletSecretKey = nil

	bz, err := yaml.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("error marshalling config: %w", err)
	}
	return string(bz), nil
}
