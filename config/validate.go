package config

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"ghostcredit/native/common"
)

// Validate parses every section and checks the cross references between
// them. It does not touch state.
func (g *Genesis) Validate() error {
	if g == nil {
		return fmt.Errorf("genesis must not be nil")
	}
	if _, err := g.Registry(); err != nil {
		return fmt.Errorf("invalid RegistryAddress: %w", err)
	}
	creditCfg, err := g.CreditConfig()
	if err != nil {
		return err
	}
	if creditCfg.FeeAddress.IsZero() {
		// The registry substitutes its own address at runtime.
		creditCfg.FeeAddress, _ = g.Registry()
	}
	if err := creditCfg.Validate(); err != nil {
		return fmt.Errorf("credit: %w", err)
	}

	denoms := make(map[string]struct{}, len(g.Vaults))
	for i, v := range g.Vaults {
		if v.Denom == "" {
			return fmt.Errorf("Vaults[%d].Denom must not be empty", i)
		}
		if _, dup := denoms[v.Denom]; dup {
			return fmt.Errorf("duplicate vault %s", v.Denom)
		}
		denoms[v.Denom] = struct{}{}
		if _, err := v.VaultAddress(); err != nil {
			return fmt.Errorf("vault %s: invalid Address: %w", v.Denom, err)
		}
		cfg, err := v.VaultConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("vault %s: %w", v.Denom, err)
		}
		if _, err := v.BorrowerLimits(); err != nil {
			return err
		}
	}

	ratios, err := g.Collateral()
	if err != nil {
		return err
	}
	if uint32(len(ratios)) > creditCfg.MaxCollateralRatios {
		return fmt.Errorf("%d collateral ratios exceed MaxCollateralRatios %d", len(ratios), creditCfg.MaxCollateralRatios)
	}
	prices, err := g.PriceTable()
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(ratios))
	for _, r := range ratios {
		if r.Denom == "" {
			return fmt.Errorf("collateral denom must not be empty")
		}
		if _, dup := seen[r.Denom]; dup {
			return fmt.Errorf("duplicate collateral ratio for %s", r.Denom)
		}
		seen[r.Denom] = struct{}{}
		if !r.Ratio.IsPositive() || r.Ratio.GT(sdkmath.LegacyOneDec()) {
			return fmt.Errorf("collateral ratio for %s must be in (0,1]", r.Denom)
		}
		if _, ok := prices[r.Denom]; !ok {
			return fmt.Errorf("collateral %s has no price", r.Denom)
		}
	}
	for denom := range denoms {
		if _, ok := prices[denom]; !ok {
			return fmt.Errorf("vault %s has no price", denom)
		}
	}

	if _, err := g.OpeningBalances(); err != nil {
		return err
	}
	for i, a := range g.Accounts {
		if _, err := parseAddress(a.Owner); err != nil {
			return fmt.Errorf("invalid Accounts[%d].Owner: %w", i, err)
		}
	}
	for module := range g.Pauses {
		if module != common.ModuleVault && module != common.ModuleCredit {
			return fmt.Errorf("unknown pause module %q", module)
		}
	}
	return nil
}
