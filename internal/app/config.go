package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRegistryURL is the registry every command talks to unless a flag
// or IMXPKG_REGISTRY says otherwise.
const DefaultRegistryURL = "https://registry.imx-starknet.dev"

// RegistryEnv is the environment variable overriding the registry URL.
const RegistryEnv = "IMXPKG_REGISTRY"

const defaultWorkers = 4

// Config holds everything an App instance needs to run.
type Config struct {
	// Home is the toolchain directory holding the content cache, the state
	// database and the cached index.
	Home        string
	RegistryURL string
	LogLevel    string
	LogFormat   string
	// Workers bounds how many packages install concurrently.
	Workers int
}

// NewConfig fills in defaults and validates the result. Flag values win over
// the environment, the environment over defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine the home directory: %w", err)
		}
		cfg.Home = filepath.Join(home, ".imxpkg")
	}
	if cfg.RegistryURL == "" {
		cfg.RegistryURL = os.Getenv(RegistryEnv)
	}
	if cfg.RegistryURL == "" {
		cfg.RegistryURL = DefaultRegistryURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaultWorkers
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("unknown log level %q: want debug, info, warn or error", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q: want text or json", cfg.LogFormat)
	}
	if cfg.Workers < 1 {
		return nil, errors.New("workers must be at least 1")
	}

	return &cfg, nil
}
