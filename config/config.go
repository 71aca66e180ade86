package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Genesis describes the initial state of a ledger: the vaults, the credit
// registry, the collateral table, oracle prices and opening balances.
type Genesis struct {
	RegistryAddress  string                   `toml:"RegistryAddress"`
	Credit           CreditGenesis            `toml:"Credit"`
	Vaults           []VaultGenesis           `toml:"Vaults"`
	CollateralRatios []CollateralRatioGenesis `toml:"CollateralRatios"`
	Prices           map[string]string        `toml:"Prices"`
	Balances         []BalanceGenesis         `toml:"Balances"`
	Accounts         []AccountGenesis         `toml:"Accounts"`
	Pauses           map[string]bool          `toml:"Pauses"`
}

// Load reads a genesis file. Unknown keys are rejected so typos do not
// silently fall back to defaults.
func Load(path string) (*Genesis, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("genesis path required")
	}
	g := &Genesis{}
	meta, err := toml.DecodeFile(path, g)
	if err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("genesis %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	g.normalize()
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return g, nil
}

// Save writes g as TOML, creating parent directories as needed.
func Save(path string, g *Genesis) error {
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

	return toml.NewEncoder(f).Encode(g)
}

func (g *Genesis) normalize() {
	if g == nil {
		return
	}
	g.RegistryAddress = strings.TrimSpace(g.RegistryAddress)
	for i := range g.Vaults {
		g.Vaults[i].Denom = strings.TrimSpace(g.Vaults[i].Denom)
		g.Vaults[i].Address = strings.TrimSpace(g.Vaults[i].Address)
	}
	for i := range g.CollateralRatios {
		g.CollateralRatios[i].Denom = strings.TrimSpace(g.CollateralRatios[i].Denom)
	}
	if g.Prices == nil {
		g.Prices = map[string]string{}
	}
	if g.Pauses == nil {
		g.Pauses = map[string]bool{}
	}
}
