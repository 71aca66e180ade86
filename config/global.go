package config

import (
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"

	"ghostcredit/crypto"
	"ghostcredit/native/credit"
	"ghostcredit/native/vault"
)

// CollateralEntry is a parsed collateral ratio.
type CollateralEntry struct {
	Denom string
	Ratio sdkmath.LegacyDec
}

// Balance is a parsed opening balance.
type Balance struct {
	Address crypto.Address
	Denom   string
	Amount  *big.Int
}

// Borrower is a parsed borrower limit.
type Borrower struct {
	Address crypto.Address
	Limit   *big.Int
}

// Registry returns the credit registry address.
func (g *Genesis) Registry() (crypto.Address, error) {
	return parseAddress(g.RegistryAddress)
}

// CreditConfig converts the credit section into registry parameters with
// defaults applied.
func (g *Genesis) CreditConfig() (credit.Config, error) {
	var cfg credit.Config
	var err error
	c := g.Credit
	if cfg.FeeLiquidation, err = parseOptionalDec(c.FeeLiquidation); err != nil {
		return cfg, fmt.Errorf("invalid Credit.FeeLiquidation: %w", err)
	}
	if cfg.FeeLiquidator, err = parseOptionalDec(c.FeeLiquidator); err != nil {
		return cfg, fmt.Errorf("invalid Credit.FeeLiquidator: %w", err)
	}
	if cfg.LiquidationMaxSlip, err = parseOptionalDec(c.LiquidationMaxSlip); err != nil {
		return cfg, fmt.Errorf("invalid Credit.LiquidationMaxSlip: %w", err)
	}
	if cfg.LiquidationThreshold, err = parseOptionalDec(c.LiquidationThreshold); err != nil {
		return cfg, fmt.Errorf("invalid Credit.LiquidationThreshold: %w", err)
	}
	if cfg.AdjustmentThreshold, err = parseOptionalDec(c.AdjustmentThreshold); err != nil {
		return cfg, fmt.Errorf("invalid Credit.AdjustmentThreshold: %w", err)
	}
	if strings.TrimSpace(c.FeeAddress) != "" {
		if cfg.FeeAddress, err = parseAddress(c.FeeAddress); err != nil {
			return cfg, fmt.Errorf("invalid Credit.FeeAddress: %w", err)
		}
	}
	cfg.MaxCollateralRatios = c.MaxCollateralRatios
	cfg.LiquidationStopOnSafe = c.LiquidationStopOnSafe
	cfg.EnsureDefaults()
	return cfg, nil
}

// VaultConfig converts one vault section into engine parameters with
// defaults applied.
func (v VaultGenesis) VaultConfig() (vault.Config, error) {
	var cfg vault.Config
	var err error
	if cfg.Model.Base, err = parseOptionalDec(v.Model.Base); err != nil {
		return cfg, fmt.Errorf("vault %s: invalid Model.Base: %w", v.Denom, err)
	}
	if cfg.Model.Step1, err = parseOptionalDec(v.Model.Step1); err != nil {
		return cfg, fmt.Errorf("vault %s: invalid Model.Step1: %w", v.Denom, err)
	}
	if cfg.Model.Step2, err = parseOptionalDec(v.Model.Step2); err != nil {
		return cfg, fmt.Errorf("vault %s: invalid Model.Step2: %w", v.Denom, err)
	}
	if cfg.Model.Target, err = parseOptionalDec(v.Model.Target); err != nil {
		return cfg, fmt.Errorf("vault %s: invalid Model.Target: %w", v.Denom, err)
	}
	if cfg.FeeRate, err = parseOptionalDec(v.FeeRate); err != nil {
		return cfg, fmt.Errorf("vault %s: invalid FeeRate: %w", v.Denom, err)
	}
	if strings.TrimSpace(v.FeeRecipient) != "" {
		if cfg.FeeRecipient, err = parseAddress(v.FeeRecipient); err != nil {
			return cfg, fmt.Errorf("vault %s: invalid FeeRecipient: %w", v.Denom, err)
		}
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

// VaultAddress returns the vault's own address.
func (v VaultGenesis) VaultAddress() (crypto.Address, error) {
	return parseAddress(v.Address)
}

// BorrowerLimits parses the vault's borrower table.
func (v VaultGenesis) BorrowerLimits() ([]Borrower, error) {
	out := make([]Borrower, 0, len(v.Borrowers))
	for i, b := range v.Borrowers {
		addr, err := parseAddress(b.Address)
		if err != nil {
			return nil, fmt.Errorf("vault %s: invalid Borrowers[%d].Address: %w", v.Denom, i, err)
		}
		limit, err := parseUintAmount(b.Limit)
		if err != nil {
			return nil, fmt.Errorf("vault %s: invalid Borrowers[%d].Limit: %w", v.Denom, i, err)
		}
		out = append(out, Borrower{Address: addr, Limit: limit})
	}
	return out, nil
}

// Collateral parses the collateral ratio table.
func (g *Genesis) Collateral() ([]CollateralEntry, error) {
	out := make([]CollateralEntry, 0, len(g.CollateralRatios))
	for i, entry := range g.CollateralRatios {
		ratio, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(entry.Ratio))
		if err != nil {
			return nil, fmt.Errorf("invalid CollateralRatios[%d].Ratio: %w", i, err)
		}
		out = append(out, CollateralEntry{Denom: entry.Denom, Ratio: ratio})
	}
	return out, nil
}

// PriceTable parses the oracle prices.
func (g *Genesis) PriceTable() (map[string]sdkmath.LegacyDec, error) {
	out := make(map[string]sdkmath.LegacyDec, len(g.Prices))
	for denom, raw := range g.Prices {
		price, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid Prices.%s: %w", denom, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("invalid Prices.%s: negative price", denom)
		}
		out[denom] = price
	}
	return out, nil
}

// OpeningBalances parses the balance table.
func (g *Genesis) OpeningBalances() ([]Balance, error) {
	out := make([]Balance, 0, len(g.Balances))
	for i, b := range g.Balances {
		addr, err := parseAddress(b.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid Balances[%d].Address: %w", i, err)
		}
		amount, err := parseUintAmount(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid Balances[%d].Amount: %w", i, err)
		}
		if strings.TrimSpace(b.Denom) == "" {
			return nil, fmt.Errorf("invalid Balances[%d].Denom: empty", i)
		}
		out = append(out, Balance{Address: addr, Denom: strings.TrimSpace(b.Denom), Amount: amount})
	}
	return out, nil
}

func parseAddress(value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("address must not be empty")
	}
	return crypto.DecodeAddress(trimmed)
}

func parseOptionalDec(value string) (sdkmath.LegacyDec, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return sdkmath.LegacyDec{}, nil
	}
	return sdkmath.LegacyNewDecFromStr(trimmed)
}

func parseUintAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
