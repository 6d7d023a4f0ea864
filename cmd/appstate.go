package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/solana-counter-api/config"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

// AppState is the modifiable state of the application.
type AppState struct {
	Config *types.AppConfig

	ConfigPath string
	DotenvPath string

	LogLevel string
	JSONLogs bool

	Logger log.Logger
}

func NewAppState() *AppState {
	return &AppState{}
}

// InitAppState sets up the logger and loads the layered config
func (a *AppState) InitAppState() error {
	a.InitLogger()
	return a.loadConfig()
}

// InitLogger creates a new logger with the specified log level
func (a *AppState) InitLogger() {
	level, err := zerolog.ParseLevel(a.LogLevel)
	if err != nil || a.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	opts := []log.Option{log.LevelOption(level)}
	if a.JSONLogs {
		opts = append(opts, log.OutputJSONOption())
	}
	a.Logger = log.NewLogger(os.Stdout, opts...)
}

func (a *AppState) loader() *config.Loader {
	opts := []config.LoaderOption{config.WithDotenv(a.DotenvPath)}
	if a.ConfigPath != "" {
		opts = append(opts, config.WithConfigFile(a.ConfigPath))
	}
	return config.NewLoader(opts...)
}

func (a *AppState) loadConfig() error {
	cfg, err := a.loader().Load()
	if err != nil {
		a.Logger.Error("Unable to load config", "config", a.ConfigPath, "error", err)
		return fmt.Errorf("invalid environment configuration: %w", err)
	}
	a.Config = cfg
	return nil
}
