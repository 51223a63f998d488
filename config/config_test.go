package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, "market-a", cfg.MarketA.Name)
	require.Equal(t, "market-b", cfg.MarketB.Name)

	// The default file must round trip.
	_, err = os.Stat(path)
	require.NoError(t, err)
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadParsesMarkets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
RPCAddress = ":9090"
DataDir = "/var/lib/synthnet"
Environment = "staging"
PausedModules = ["exchange"]

[MarketA]
Name = "market-a"
CollateralSymbol = "WETH"
SyntheticSymbol = "synA"
GenesisPrice = "200000000000"

[MarketB]
Name = "market-b"
CollateralSymbol = "WBTC"
SyntheticSymbol = "synB"
GenesisPrice = "5000000000000"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.RPCAddress)
	require.Equal(t, []string{"exchange"}, cfg.PausedModules)

	price, err := cfg.MarketA.Price()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200000000000), price)
}

func TestLoadRejectsBadPrice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
[MarketA]
Name = "market-a"
GenesisPrice = "not-a-number"

[MarketB]
Name = "market-b"
GenesisPrice = "5000000000000"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateMarketNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
[MarketA]
Name = "market-a"
GenesisPrice = "1"

[MarketB]
Name = "market-a"
GenesisPrice = "1"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
