package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"

	"github.com/strangelove-ventures/solana-counter-api/idl"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

const (
	EnvNodeEnv           = "NODE_ENV"
	EnvPort              = "PORT"
	EnvClusterURL        = "SOLANA_CLUSTER_URL"
	EnvProgramID         = "COUNTER_PROGRAM_ID"
	EnvIDLPath           = "COUNTER_IDL_PATH"
	EnvCommitment        = "COMMITMENT"
	EnvWalletKeypairPath = "WALLET_KEYPAIR_PATH"
	EnvWalletKeypair     = "WALLET_KEYPAIR"
	EnvTrustedProxies    = "TRUSTED_PROXIES"
	EnvAllowedOrigins    = "API_ALLOWED_ORIGINS"
	EnvRateLimit         = "API_RATE_LIMIT"
	EnvRateBurst         = "API_RATE_BURST"
	EnvMetricsAddress    = "METRICS_ADDRESS"
	EnvMetricsPort       = "METRICS_PORT"
)

const (
	DefaultPort           = 3000
	DefaultClusterURL     = "https://api.devnet.solana.com"
	DefaultRateLimit      = 5.0
	DefaultRateBurst      = 10
	DefaultMetricsAddress = "localhost"
	DefaultMetricsPort    = 2112
)

var ErrProgramIDMissing = errors.New("COUNTER_PROGRAM_ID is not set and could not be inferred from the IDL metadata")

// Loader builds the AppConfig once and hands out the same snapshot afterwards.
// Layers, lowest first: defaults, YAML file, .env files, process environment.
type Loader struct {
	mu  sync.Mutex
	cfg *types.AppConfig

	filePath    string
	dotenvPaths []string

	lookupEnv func(string) (string, bool)
	readFile  func(string) ([]byte, error)
}

type LoaderOption func(*Loader)

// WithConfigFile layers a YAML config file under the environment
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithDotenv layers .env files under the process environment. Missing files are skipped.
func WithDotenv(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.dotenvPaths = append(l.dotenvPaths, paths...)
	}
}

func WithLookupEnv(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) {
		l.lookupEnv = fn
	}
}

func WithReadFile(fn func(string) ([]byte, error)) LoaderOption {
	return func(l *Loader) {
		l.readFile = fn
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		lookupEnv: os.LookupEnv,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the memoized config, building it on first use. A failed build is
// not memoized so the caller may fix the environment and retry.
func (l *Loader) Load() (*types.AppConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg != nil {
		return l.cfg, nil
	}

	cfg, err := l.build()
	if err != nil {
		return nil, err
	}
	l.cfg = cfg
	return cfg, nil
}

func (l *Loader) build() (*types.AppConfig, error) {
	get, err := l.layers()
	if err != nil {
		return nil, err
	}

	cfg := &types.AppConfig{
		NodeEnv:    stringOr(get(EnvNodeEnv), types.EnvDevelopment),
		ClusterURL: stringOr(get(EnvClusterURL), DefaultClusterURL),
		IDLPath:    get(EnvIDLPath),
	}

	switch cfg.NodeEnv {
	case types.EnvDevelopment, types.EnvTest, types.EnvProduction:
	default:
		return nil, fmt.Errorf("NODE_ENV must be one of development, test, production, got %q", cfg.NodeEnv)
	}

	cfg.Port = DefaultPort
	if raw := get(EnvPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 {
			return nil, errors.New("PORT must be a positive integer")
		}
		cfg.Port = port
	}

	cfg.Commitment, err = types.ParseCommitment(get(EnvCommitment))
	if err != nil {
		return nil, err
	}

	wallet, err := LoadWallet(get(EnvWalletKeypair), get(EnvWalletKeypairPath), l.readFile)
	if err != nil {
		return nil, err
	}
	cfg.WalletSecretKey = []byte(wallet)

	cfg.ProgramID, err = ResolveProgramID(get(EnvProgramID), cfg.IDLPath, l.readFile)
	if err != nil {
		return nil, err
	}

	cfg.API.TrustedProxies = splitList(get(EnvTrustedProxies))
	cfg.API.AllowedOrigins = splitList(stringOr(get(EnvAllowedOrigins), "*"))
	if cfg.API.RateLimit, err = floatOr(get(EnvRateLimit), DefaultRateLimit); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvRateLimit, err)
	}
	if cfg.API.RateBurst, err = intOr(get(EnvRateBurst), DefaultRateBurst); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvRateBurst, err)
	}

	cfg.Metrics.Address = stringOr(get(EnvMetricsAddress), DefaultMetricsAddress)
	metricsPort, err := intOr(get(EnvMetricsPort), DefaultMetricsPort)
	if err != nil || metricsPort < 0 || metricsPort > 32767 {
		return nil, fmt.Errorf("invalid %s: %q", EnvMetricsPort, get(EnvMetricsPort))
	}
	cfg.Metrics.Port = int16(metricsPort)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// layers returns a getter that resolves a key through the environment, then .env files, then the YAML file
func (l *Loader) layers() (func(string) string, error) {
	fileSettings := map[string]string{}
	if l.filePath != "" {
		data, err := l.readFile(l.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.filePath, err)
		}
		fc, err := ParseFile(data)
		if err != nil {
			return nil, err
		}
		fileSettings = fc.settings()
	}

	dotenv := map[string]string{}
	for _, path := range l.dotenvPaths {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range values {
			if _, seen := dotenv[k]; !seen {
				dotenv[k] = v
			}
		}
	}

	return func(key string) string {
		if v, ok := l.lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v := strings.TrimSpace(dotenv[key]); v != "" {
			return v
		}
		return fileSettings[key]
	}, nil
}

// ResolveProgramID returns the explicit program id, else the address recorded in the IDL
func ResolveProgramID(explicit, idlPath string, readFile func(string) ([]byte, error)) (string, error) {
	programID := explicit
	if programID == "" {
		programID = programIDFromIDL(idlPath, readFile)
	}
	if programID == "" {
		return "", ErrProgramIDMissing
	}

	if _, err := solana.PublicKeyFromBase58(programID); err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", EnvProgramID, programID, err)
	}
	return programID, nil
}

func programIDFromIDL(idlPath string, readFile func(string) ([]byte, error)) string {
	doc := idl.Default()
	if idlPath != "" {
		data, err := readFile(idlPath)
		if err != nil {
			return ""
		}
		if doc, err = idl.Parse(data); err != nil {
			return ""
		}
	}
	return doc.ProgramAddress()
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOr(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func floatOr(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
