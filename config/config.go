package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"ocex/crypto"
)

// Config holds the vault daemon configuration.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	// OwnerAddress seeds the vault owner on first boot. Ignored afterwards:
	// ownership transfers are recorded in state.
	OwnerAddress string `toml:"OwnerAddress"`
	// AuthTokenEnv names the environment variable carrying the RPC bearer
	// token for owner-gated methods.
	AuthTokenEnv string `toml:"AuthTokenEnv"`
	LogFile      string `toml:"LogFile"`
	Env          string `toml:"Env"`
}

const defaultAuthTokenEnv = "OCEX_RPC_TOKEN"

// Load loads the configuration from the given path, writing a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = "127.0.0.1:9645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./ocex-data"
	}
	if strings.TrimSpace(cfg.AuthTokenEnv) == "" {
		cfg.AuthTokenEnv = defaultAuthTokenEnv
	}
}

// Validate checks the semantic constraints the daemon relies on.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	owner := strings.TrimSpace(cfg.OwnerAddress)
	if owner != "" {
		if _, err := crypto.DecodeAddress(owner); err != nil {
			return fmt.Errorf("invalid OwnerAddress: %w", err)
		}
	}
	return nil
}

// Owner decodes the configured owner address. Returns the zero address when
// unset; the node rejects that on first boot.
func (cfg *Config) Owner() ([32]byte, error) {
	trimmed := strings.TrimSpace(cfg.OwnerAddress)
	if trimmed == "" {
		return [32]byte{}, nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], addr.Bytes())
	return out, nil
}

// AuthToken resolves the RPC bearer token from the configured environment
// variable. Empty means owner-gated methods are disabled.
func (cfg *Config) AuthToken() string {
	return strings.TrimSpace(os.Getenv(cfg.AuthTokenEnv))
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# ocex vault configuration"); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintln(f, "# OwnerAddress must be set before first boot."); err != nil {
		return nil, err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
