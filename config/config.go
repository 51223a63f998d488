package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// MarketConfig describes one market instance: its collateral asset, the
// synthetic asset minted against it and the genesis oracle price.
type MarketConfig struct {
	Name             string `toml:"Name"`
	CollateralName   string `toml:"CollateralName"`
	CollateralSymbol string `toml:"CollateralSymbol"`
	SyntheticName    string `toml:"SyntheticName"`
	SyntheticSymbol  string `toml:"SyntheticSymbol"`
	// GenesisPrice seeds the manual price feed, expressed at 8 decimals.
	GenesisPrice string `toml:"GenesisPrice"`
}

type Config struct {
	RPCAddress    string       `toml:"RPCAddress"`
	DataDir       string       `toml:"DataDir"`
	Environment   string       `toml:"Environment"`
	PausedModules []string     `toml:"PausedModules"`
	MarketA       MarketConfig `toml:"MarketA"`
	MarketB       MarketConfig `toml:"MarketB"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./synthnet-data"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for _, market := range []*MarketConfig{&c.MarketA, &c.MarketB} {
		if strings.TrimSpace(market.Name) == "" {
			return fmt.Errorf("config: market name required")
		}
		if _, err := market.Price(); err != nil {
			return err
		}
	}
	if strings.EqualFold(c.MarketA.Name, c.MarketB.Name) {
		return fmt.Errorf("config: market names must differ")
	}
	return nil
}

// Price parses the genesis price into an integer at 8 decimals.
func (m *MarketConfig) Price() (*big.Int, error) {
	raw := strings.TrimSpace(m.GenesisPrice)
	price, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("config: market %s: invalid genesis price %q", m.Name, m.GenesisPrice)
	}
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("config: market %s: genesis price must be positive", m.Name)
	}
	return price, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:    ":8080",
		DataDir:       "./synthnet-data",
		Environment:   "local",
		PausedModules: []string{},
		MarketA: MarketConfig{
			Name:             "market-a",
			CollateralName:   "Wrapped Ether",
			CollateralSymbol: "WETH",
			SyntheticName:    "Synthetic A",
			SyntheticSymbol:  "synA",
			GenesisPrice:     "200000000000", // 2000 at 8 decimals
		},
		MarketB: MarketConfig{
			Name:             "market-b",
			CollateralName:   "Wrapped Bitcoin",
			CollateralSymbol: "WBTC",
			SyntheticName:    "Synthetic B",
			SyntheticSymbol:  "synB",
			GenesisPrice:     "5000000000000", // 50000 at 8 decimals
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
