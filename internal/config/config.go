// Package config loads runtime configuration from the environment and the
// network allow-list from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/chainwage/payroll_layer/internal/wallet"
)

// Config is the process configuration, decoded from the environment.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	JWTSecret string `env:"JWT_SECRET"`

	WalletRPCURL string        `env:"WALLET_RPC_URL"`
	ChainRPCURL  string        `env:"CHAIN_RPC_URL,default=http://localhost:10332"`
	ChainTimeout time.Duration `env:"CHAIN_TIMEOUT,default=15s"`

	// RoleRegistryHash is the 0x-prefixed script hash of the role registry
	// contract. Empty disables on-chain role lookups.
	RoleRegistryHash string `env:"ROLE_REGISTRY_HASH"`

	NetworksPath string `env:"NETWORKS_PATH"`

	WatchInterval  time.Duration `env:"WALLET_WATCH_INTERVAL,default=5s"`
	PayrollEnabled bool          `env:"PAYROLL_RUNNER_ENABLED,default=true"`
	PayrollScan    time.Duration `env:"PAYROLL_SCAN_INTERVAL,default=1m"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
}

// Load decodes the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// NetworksFile is the YAML shape of the network allow-list.
type NetworksFile struct {
	Networks []wallet.NetworkDefinition `yaml:"networks"`
}

// LoadNetworks loads the network allow-list from config/networks.yaml.
func LoadNetworks() ([]wallet.NetworkDefinition, error) {
	return LoadNetworksFromPath(filepath.Join("config", "networks.yaml"))
}

// LoadNetworksFromPath loads the network allow-list from a specific path.
// Order is significant; the first entry is the preferred network.
func LoadNetworksFromPath(path string) ([]wallet.NetworkDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks config: %w", err)
	}

	var file NetworksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse networks config: %w", err)
	}
	if len(file.Networks) == 0 {
		return nil, fmt.Errorf("networks config %s lists no networks", path)
	}
	for i, def := range file.Networks {
		if def.Magic == 0 {
			return nil, fmt.Errorf("network %d: magic is required", i)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("network %d: name is required", i)
		}
	}
	return file.Networks, nil
}

// LoadNetworksOrDefault loads the allow-list or falls back to the built-in
// default when no file is present.
func LoadNetworksOrDefault(path string) []wallet.NetworkDefinition {
	if path == "" {
		path = filepath.Join("config", "networks.yaml")
	}
	defs, err := LoadNetworksFromPath(path)
	if err != nil {
		return DefaultNetworks()
	}
	return defs
}

// DefaultNetworks returns the built-in allow-list: Neo N3 MainNet preferred,
// TestNet accepted.
func DefaultNetworks() []wallet.NetworkDefinition {
	return []wallet.NetworkDefinition{
		{
			Magic:  860833102,
			Name:   "Neo N3 MainNet",
			RPCURL: "https://mainnet1.neo.coz.io:443",
		},
		{
			Magic:  894710606,
			Name:   "Neo N3 TestNet",
			RPCURL: "https://testnet1.neo.coz.io:443",
		},
	}
}
