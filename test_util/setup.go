package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/solana-counter-api/idl"
	solanago "github.com/strangelove-ventures/solana-counter-api/solana"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

// TestLogger only surfaces errors to keep test output readable
var TestLogger = log.NewLogger(os.Stdout, log.LevelOption(zerolog.ErrorLevel))

// GetEnvOrDefault returns the environment variable value or a default if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func init() {
	// Try to load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("../.env")
	}
}

// ConfigSetup returns a config with a freshly generated wallet and the bundled program id
func ConfigSetup(t *testing.T) *types.AppConfig {
	t.Helper()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err, "Error generating wallet")

	return &types.AppConfig{
		NodeEnv:         types.EnvTest,
		Port:            3000,
		ClusterURL:      GetEnvOrDefault("SOLANA_CLUSTER_URL", "http://localhost:8899"),
		Commitment:      types.CommitmentConfirmed,
		ProgramID:       idl.Default().ProgramAddress(),
		WalletSecretKey: []byte(key),
		API: types.APISettings{
			AllowedOrigins: []string{"*"},
		},
	}
}

// GatewaySetup wires a gateway to an in-memory cluster
func GatewaySetup(t *testing.T) (*solanago.Gateway, *FakeCluster, *types.AppConfig) {
	t.Helper()

	cfg := ConfigSetup(t)
	programID := solana.MustPublicKeyFromBase58(cfg.ProgramID)
	cluster := NewFakeCluster(t, programID)

	gw, err := solanago.NewGateway(cfg, TestLogger,
		solanago.WithRPCClient(cluster),
		solanago.WithPollInterval(time.Millisecond),
	)
	require.NoError(t, err, "Error creating gateway")

	return gw, cluster, cfg
}
