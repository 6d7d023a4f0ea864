package config_test

import (
	"encoding/base64"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/solana-counter-api/config"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func jsonArray(t *testing.T, key []byte) string {
	t.Helper()
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	bz, err := json.Marshal(ints)
	require.NoError(t, err)
	return string(bz)
}

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func filesFrom(m map[string][]byte) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if bz, ok := m[path]; ok {
			return bz, nil
		}
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
}

func TestParseSecretKeyFormats(t *testing.T) {
	key := newKey(t)

	tests := []struct {
		name  string
		input string
	}{
		{"json array", jsonArray(t, key)},
		{"json array with whitespace", "  " + jsonArray(t, key) + "\n"},
		{"base64", base64.StdEncoding.EncodeToString(key)},
		{"base58", base58.Encode(key)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := config.ParseSecretKey(tc.input)
			require.NoError(t, err)
			require.Equal(t, []byte(key), parsed)
		})
	}
}

func TestParseSecretKeyErrors(t *testing.T) {
	_, err := config.ParseSecretKey("[1, 2, oops]")
	require.ErrorIs(t, err, config.ErrWalletJSONArray)

	_, err = config.ParseSecretKey("[1, 256]")
	require.ErrorIs(t, err, config.ErrWalletJSONArray)

	_, err = config.ParseSecretKey("0OIl")
	require.ErrorIs(t, err, config.ErrWalletFormat)

	_, err = config.ParseSecretKey("")
	require.ErrorIs(t, err, config.ErrWalletFormat)
}

// base58 keys never take the base64 branch, even when the string is valid base64
func TestParseSecretKeyPrefersConsistentKeypair(t *testing.T) {
	for i := 0; i < 50; i++ {
		key := newKey(t)
		parsed, err := config.ParseSecretKey(key.String())
		require.NoError(t, err)
		require.Equal(t, []byte(key), parsed)
	}
}

func TestLoadWalletPrecedence(t *testing.T) {
	inline := newKey(t)
	fromFile := newKey(t)
	path, err := filepath.Abs("id.json")
	require.NoError(t, err)
	files := filesFrom(map[string][]byte{path: []byte(jsonArray(t, fromFile))})

	wallet, err := config.LoadWallet(inline.String(), "id.json", files)
	require.NoError(t, err)
	require.Equal(t, inline, wallet)

	wallet, err = config.LoadWallet("", "id.json", files)
	require.NoError(t, err)
	require.Equal(t, fromFile, wallet)

	_, err = config.LoadWallet("", "", files)
	require.ErrorIs(t, err, config.ErrWalletMissing)

	_, err = config.LoadWallet("", "missing.json", files)
	require.ErrorContains(t, err, "Wallet keypair file does not exist: ")
}

func TestLoadWalletFileFallsBackToEncodings(t *testing.T) {
	key := newKey(t)
	path := filepath.Join(t.TempDir(), "wallet.txt")
	require.NoError(t, os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)+"\n"), 0o600))

	wallet, err := config.LoadWallet("", path, os.ReadFile)
	require.NoError(t, err)
	require.Equal(t, key, wallet)
}

func TestLoadWalletRejectsShortKey(t *testing.T) {
	_, err := config.LoadWallet("[1,2,3]", "", os.ReadFile)
	require.ErrorContains(t, err, "invalid wallet keypair")
}

func TestLoaderDefaults(t *testing.T) {
	key := newKey(t)
	loader := config.NewLoader(config.WithLookupEnv(envFrom(map[string]string{
		config.EnvWalletKeypair: key.String(),
	})))

	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, types.EnvDevelopment, cfg.NodeEnv)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, config.DefaultClusterURL, cfg.ClusterURL)
	require.Equal(t, types.CommitmentConfirmed, cfg.Commitment)
	require.Equal(t, "GK5CdkKWciUWsj6uSLSZwJBDpji7AavaBin5dZau4uX3", cfg.ProgramID)
	require.Equal(t, []byte(key), cfg.WalletSecretKey)
	require.Equal(t, []string{"*"}, cfg.API.AllowedOrigins)
}

func TestLoaderMemoizes(t *testing.T) {
	env := map[string]string{
		config.EnvWalletKeypair: newKey(t).String(),
		config.EnvPort:          "8080",
	}
	loader := config.NewLoader(config.WithLookupEnv(envFrom(env)))

	first, err := loader.Load()
	require.NoError(t, err)

	env[config.EnvPort] = "9090"
	env[config.EnvWalletKeypair] = newKey(t).String()

	second, err := loader.Load()
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 8080, second.Port)
}

func TestLoaderDoesNotMemoizeFailure(t *testing.T) {
	env := map[string]string{}
	loader := config.NewLoader(config.WithLookupEnv(envFrom(env)))

	_, err := loader.Load()
	require.ErrorIs(t, err, config.ErrWalletMissing)

	env[config.EnvWalletKeypair] = newKey(t).String()
	_, err = loader.Load()
	require.NoError(t, err)
}

func TestLoaderInvalidValues(t *testing.T) {
	wallet := newKey(t).String()

	tests := []struct {
		name string
		env  map[string]string
		err  string
	}{
		{"zero port", map[string]string{config.EnvPort: "0"}, "PORT must be a positive integer"},
		{"negative port", map[string]string{config.EnvPort: "-1"}, "PORT must be a positive integer"},
		{"fractional port", map[string]string{config.EnvPort: "80.5"}, "PORT must be a positive integer"},
		{"bad commitment", map[string]string{config.EnvCommitment: "rooted"}, "invalid commitment"},
		{"bad node env", map[string]string{config.EnvNodeEnv: "staging"}, "NODE_ENV must be one of"},
		{"bad program id", map[string]string{config.EnvProgramID: "not-a-key"}, "invalid COUNTER_PROGRAM_ID"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.env[config.EnvWalletKeypair] = wallet
			_, err := config.NewLoader(config.WithLookupEnv(envFrom(tc.env))).Load()
			require.ErrorContains(t, err, tc.err)
		})
	}
}

func TestResolveProgramID(t *testing.T) {
	files := filesFrom(map[string][]byte{
		"with-address.json":    []byte(`{"metadata":{"address":"11111111111111111111111111111111"}}`),
		"without-address.json": []byte(`{"name":"counter_program"}`),
		"broken.json":          []byte(`{`),
	})

	id, err := config.ResolveProgramID("SysvarC1ock11111111111111111111111111111111", "with-address.json", files)
	require.NoError(t, err)
	require.Equal(t, "SysvarC1ock11111111111111111111111111111111", id)

	id, err = config.ResolveProgramID("", "with-address.json", files)
	require.NoError(t, err)
	require.Equal(t, "11111111111111111111111111111111", id)

	id, err = config.ResolveProgramID("", "", files)
	require.NoError(t, err)
	require.Equal(t, "GK5CdkKWciUWsj6uSLSZwJBDpji7AavaBin5dZau4uX3", id)

	for _, path := range []string{"without-address.json", "broken.json", "missing.json"} {
		_, err = config.ResolveProgramID("", path, files)
		require.ErrorIs(t, err, config.ErrProgramIDMissing, path)
	}
}

func TestLoaderLayers(t *testing.T) {
	dir := t.TempDir()
	key := newKey(t)

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
port: 4000
cluster-url: http://localhost:8899
commitment: finalized
api:
  allowed-origins:
    - http://localhost:3001
  rate-limit: 2.5
metrics:
  port: 9100
`), 0o600))

	dotenvPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenvPath, []byte("PORT=5000\nWALLET_KEYPAIR="+key.String()+"\n"), 0o600))

	cfg, err := config.NewLoader(
		config.WithConfigFile(yamlPath),
		config.WithDotenv(dotenvPath, filepath.Join(dir, "missing.env")),
		config.WithLookupEnv(envFrom(map[string]string{config.EnvCommitment: "processed"})),
	).Load()
	require.NoError(t, err)

	require.Equal(t, 5000, cfg.Port)
	require.Equal(t, "http://localhost:8899", cfg.ClusterURL)
	require.Equal(t, types.CommitmentProcessed, cfg.Commitment)
	require.Equal(t, []string{"http://localhost:3001"}, cfg.API.AllowedOrigins)
	require.Equal(t, 2.5, cfg.API.RateLimit)
	require.Equal(t, int16(9100), cfg.Metrics.Port)
	require.Equal(t, []byte(key), cfg.WalletSecretKey)
}
