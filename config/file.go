package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML config file. Every key maps onto the
// environment variable of the same meaning; the environment wins when both are set.
type FileConfig struct {
	NodeEnv           string `yaml:"node-env"`
	Port              int    `yaml:"port"`
	ClusterURL        string `yaml:"cluster-url"`
	Commitment        string `yaml:"commitment"`
	ProgramID         string `yaml:"program-id"`
	IDLPath           string `yaml:"idl-path"`
	WalletKeypairPath string `yaml:"wallet-keypair-path"`
	WalletKeypair     string `yaml:"wallet-keypair"`

	API struct {
		TrustedProxies []string `yaml:"trusted-proxies"`
		AllowedOrigins []string `yaml:"allowed-origins"`
		RateLimit      float64  `yaml:"rate-limit"`
		RateBurst      int      `yaml:"rate-burst"`
	} `yaml:"api"`

	Metrics struct {
		Address string `yaml:"address"`
		Port    int16  `yaml:"port"`
	} `yaml:"metrics"`
}

// ParseFile decodes a YAML config file
func ParseFile(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &fc, nil
}

// settings flattens the file into environment variable form, skipping unset keys
func (fc *FileConfig) settings() map[string]string {
	out := make(map[string]string)
	put := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}

	put(EnvNodeEnv, fc.NodeEnv)
	if fc.Port != 0 {
		put(EnvPort, strconv.Itoa(fc.Port))
	}
	put(EnvClusterURL, fc.ClusterURL)
	put(EnvCommitment, fc.Commitment)
	put(EnvProgramID, fc.ProgramID)
	put(EnvIDLPath, fc.IDLPath)
	put(EnvWalletKeypairPath, fc.WalletKeypairPath)
	put(EnvWalletKeypair, fc.WalletKeypair)

	put(EnvTrustedProxies, strings.Join(fc.API.TrustedProxies, ","))
	put(EnvAllowedOrigins, strings.Join(fc.API.AllowedOrigins, ","))
	if fc.API.RateLimit != 0 {
		put(EnvRateLimit, strconv.FormatFloat(fc.API.RateLimit, 'f', -1, 64))
	}
	if fc.API.RateBurst != 0 {
		put(EnvRateBurst, strconv.Itoa(fc.API.RateBurst))
	}

	put(EnvMetricsAddress, fc.Metrics.Address)
	if fc.Metrics.Port != 0 {
		put(EnvMetricsPort, strconv.Itoa(int(fc.Metrics.Port)))
	}
	return out
}
