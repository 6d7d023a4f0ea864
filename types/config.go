package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// AppConfig is the immutable runtime configuration of the API server
type AppConfig struct {
	NodeEnv    string     `yaml:"node-env" validate:"oneof=development test production"`
	Port       int        `yaml:"port" validate:"min=1,max=65535"`
	ClusterURL string     `yaml:"cluster-url" validate:"required,url"`
	Commitment Commitment `yaml:"commitment" validate:"min=1,max=3"`
	ProgramID  string     `yaml:"program-id" validate:"required"`
	IDLPath    string     `yaml:"idl-path,omitempty"`

	// WalletSecretKey holds the 64 byte ed25519 keypair, never serialized
	WalletSecretKey []byte `yaml:"-" validate:"len=64"`

	API     APISettings     `yaml:"api"`
	Metrics MetricsSettings `yaml:"metrics"`
}

type APISettings struct {
	TrustedProxies []string `yaml:"trusted-proxies"`
	AllowedOrigins []string `yaml:"allowed-origins"`

	// RateLimit is requests per second for mutating routes, 0 disables limiting
	RateLimit float64 `yaml:"rate-limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate-burst" validate:"gte=0"`
}

type MetricsSettings struct {
	Address string `yaml:"address"`
	Port    int16  `yaml:"port" validate:"gte=0"`
}

var configValidator = validator.New()

// IsProduction reports whether the server runs with NODE_ENV=production
func (c *AppConfig) IsProduction() bool {
	return c.NodeEnv == EnvProduction
}

// Validate checks the struct level constraints of the config
func (c *AppConfig) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
