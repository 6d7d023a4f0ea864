package cmd

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/solana-counter-api/client"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

// Dashboard drives a running API from the terminal
func Dashboard(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive terminal dashboard for a counter",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			endpoint, _ := cmd.Flags().GetString(flagAPI)
			counter, _ := cmd.Flags().GetString(flagCounter)
			seed, _ := cmd.Flags().GetString(flagSeed)
			rpcURL, _ := cmd.Flags().GetString(flagRPC)
			wallet, _ := cmd.Flags().GetString(flagWallet)

			if wallet == "" {
				wallet = a.localWallet()
			}

			apiClient, err := client.New(endpoint)
			if err != nil {
				return fmt.Errorf("creating api client: %w", err)
			}

			p := tea.NewProgram(newDashboardModel(apiClient, seed, counter, wallet, rpcURL), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("running dashboard: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String(flagAPI, "http://localhost:3000", "base URL of the counter API")
	cmd.Flags().String(flagCounter, "", "counter address, derived from --seed and the wallet when empty")
	cmd.Flags().String(flagSeed, types.DefaultSeed, "seed used to initialize a counter")
	cmd.Flags().String(flagRPC, "", "Solana RPC used for the slot panel, defaults to the API's cluster")
	cmd.Flags().String(flagWallet, "", "wallet public key shown in the wallet panel, defaults to the configured wallet")

	return cmd
}

// localWallet returns the configured wallet public key, empty when no wallet is configured.
// Logging stays off so the terminal UI is not interleaved with log lines.
func (a *AppState) localWallet() string {
	cfg, err := a.loader().Load()
	if err != nil {
		return ""
	}
	return solanago.PrivateKey(cfg.WalletSecretKey).PublicKey().String()
}
