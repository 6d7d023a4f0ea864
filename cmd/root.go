package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the root command with every subcommand attached
func NewRootCmd(a *AppState) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "counter-api",
		Short: "HTTP gateway for the Solana counter program",
	}

	addAppPersistantFlags(rootCmd, a)

	rootCmd.AddCommand(
		Start(a),
		Dashboard(a),
		DeriveAddress(a),
		ConfigCmd(a),
	)

	return rootCmd
}

// Execute runs the CLI until it finishes or SIGINT/SIGTERM is received
func Execute() {
	cobra.EnableCommandSorting = false

	rootCmd := NewRootCmd(NewAppState())
	rootCmd.SilenceUsage = true
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
