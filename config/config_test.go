package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ocex/crypto"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, defaultAuthTokenEnv, cfg.AuthTokenEnv)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file must be written")

	// Loading the generated file again round-trips.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, again.RPCAddress)
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	owner := key.PubKey().Address().String()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("OwnerAddress = \""+owner+"\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./ocex-data", cfg.DataDir)

	decoded, err := cfg.Owner()
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Bytes(), decoded[:])
}

func TestLoadRejectsBadOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("OwnerAddress = \"not-an-address\"\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestAuthTokenFromEnv(t *testing.T) {
	cfg := &Config{AuthTokenEnv: "OCEX_TEST_TOKEN"}
	t.Setenv("OCEX_TEST_TOKEN", "  secret  ")
	require.Equal(t, "secret", cfg.AuthToken())
}
