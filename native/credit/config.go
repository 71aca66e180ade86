package credit

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"ghostcredit/crypto"
	"ghostcredit/native/common"
)

const (
	// DefaultMaxCollateralRatios bounds the ratio table unless configured.
	DefaultMaxCollateralRatios = 25
	// MaxCollateralRatiosCeiling is the hard limit for the configured bound.
	MaxCollateralRatiosCeiling = 100
)

var maxFee = sdkmath.LegacyNewDecWithPrec(5, 1)

// Config holds the registry parameters. Every field is optional in the
// persisted form; EnsureDefaults fills what older payloads lack.
type Config struct {
	FeeLiquidation        sdkmath.LegacyDec `json:"fee_liquidation"`
	FeeLiquidator         sdkmath.LegacyDec `json:"fee_liquidator"`
	FeeAddress            crypto.Address    `json:"fee_address"`
	LiquidationMaxSlip    sdkmath.LegacyDec `json:"liquidation_max_slip"`
	LiquidationThreshold  sdkmath.LegacyDec `json:"liquidation_threshold"`
	AdjustmentThreshold   sdkmath.LegacyDec `json:"adjustment_threshold"`
	MaxCollateralRatios   uint32            `json:"max_collateral_ratios,omitempty"`
	LiquidationStopOnSafe *bool             `json:"liquidation_stop_on_safe,omitempty"`
}

// DefaultConfig returns the registry defaults.
func DefaultConfig() Config {
	stop := true
	return Config{
		FeeLiquidation:        sdkmath.LegacyNewDecWithPrec(1, 2),
		FeeLiquidator:         sdkmath.LegacyNewDecWithPrec(1, 2),
		LiquidationMaxSlip:    sdkmath.LegacyNewDecWithPrec(3, 1),
		LiquidationThreshold:  sdkmath.LegacyNewDecWithPrec(9, 1),
		AdjustmentThreshold:   sdkmath.LegacyNewDecWithPrec(8, 1),
		MaxCollateralRatios:   DefaultMaxCollateralRatios,
		LiquidationStopOnSafe: &stop,
	}
}

// EnsureDefaults fills unset fields.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	def := DefaultConfig()
	if c.FeeLiquidation.IsNil() {
		c.FeeLiquidation = def.FeeLiquidation
	}
	if c.FeeLiquidator.IsNil() {
		c.FeeLiquidator = def.FeeLiquidator
	}
	if c.LiquidationMaxSlip.IsNil() {
		c.LiquidationMaxSlip = def.LiquidationMaxSlip
	}
	if c.LiquidationThreshold.IsNil() {
		c.LiquidationThreshold = def.LiquidationThreshold
	}
	if c.AdjustmentThreshold.IsNil() {
		c.AdjustmentThreshold = def.AdjustmentThreshold
	}
	if c.MaxCollateralRatios == 0 {
		c.MaxCollateralRatios = def.MaxCollateralRatios
	}
	if c.LiquidationStopOnSafe == nil {
		c.LiquidationStopOnSafe = def.LiquidationStopOnSafe
	}
}

// StopOnSafe reports whether liquidation ends as soon as the account is safe.
func (c Config) StopOnSafe() bool {
	return c.LiquidationStopOnSafe == nil || *c.LiquidationStopOnSafe
}

// FeeTotal is the combined share of a liquidation repay taken as fees.
func (c Config) FeeTotal() sdkmath.LegacyDec {
	return c.FeeLiquidation.Add(c.FeeLiquidator)
}

// Validate checks the config after defaults have been applied.
func (c Config) Validate() error {
	for name, fee := range map[string]sdkmath.LegacyDec{
		"fee_liquidation": c.FeeLiquidation,
		"fee_liquidator":  c.FeeLiquidator,
	} {
		if fee.IsNil() || fee.IsNegative() || fee.GT(maxFee) {
			return errorsmod.Wrapf(common.ErrValidation, "%s %s must be in [0,%s]", name, fee, maxFee)
		}
	}
	if c.FeeTotal().GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(common.ErrValidation, "fee total %s must be below 1", c.FeeTotal())
	}
	if c.FeeLiquidation.IsPositive() && c.FeeAddress.IsZero() {
		return errorsmod.Wrap(common.ErrValidation, "fee_address required when fee_liquidation is set")
	}
	if c.AdjustmentThreshold.IsNil() || c.LiquidationThreshold.IsNil() ||
		!c.AdjustmentThreshold.IsPositive() ||
		c.AdjustmentThreshold.GTE(c.LiquidationThreshold) ||
		c.LiquidationThreshold.GT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(common.ErrValidation, "thresholds must satisfy 0 < adjustment %s < liquidation %s <= 1",
			c.AdjustmentThreshold, c.LiquidationThreshold)
	}
	if c.LiquidationMaxSlip.IsNil() || c.LiquidationMaxSlip.IsNegative() || c.LiquidationMaxSlip.GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(common.ErrValidation, "liquidation_max_slip %s must be in [0,1)", c.LiquidationMaxSlip)
	}
	if c.MaxCollateralRatios == 0 || c.MaxCollateralRatios > MaxCollateralRatiosCeiling {
		return errorsmod.Wrapf(common.ErrValidation, "max_collateral_ratios %d must be in [1,%d]",
			c.MaxCollateralRatios, MaxCollateralRatiosCeiling)
	}
	return nil
}
