package cmd

import (
	"github.com/spf13/cobra"
)

const (
	flagConfigPath     = "config"
	flagDotenvPath     = "env-file"
	flagLogLevel       = "log-level"
	flagJSON           = "log-json"
	flagMetricsAddress = "metrics-address"
	flagMetricsPort    = "metrics-port"

	flagAPI     = "api"
	flagCounter = "counter"
	flagSeed    = "seed"
	flagRPC     = "rpc"
	flagWallet  = "wallet"
)

func addAppPersistantFlags(cmd *cobra.Command, a *AppState) *cobra.Command {
	cmd.PersistentFlags().StringVar(&a.ConfigPath, flagConfigPath, "", "optional YAML config file, overridden by the environment")
	cmd.PersistentFlags().StringVar(&a.DotenvPath, flagDotenvPath, ".env", "dotenv file layered under the process environment")
	cmd.PersistentFlags().StringVar(&a.LogLevel, flagLogLevel, "info", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&a.JSONLogs, flagJSON, false, "log in JSON")
	return cmd
}

func addMetricsFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagMetricsAddress, "", "address to serve metrics on, overrides METRICS_ADDRESS")
	cmd.Flags().Int16(flagMetricsPort, 0, "port to serve metrics on, overrides METRICS_PORT")
	return cmd
}
