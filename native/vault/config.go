package vault

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"ghostcredit/crypto"
	"ghostcredit/native/common"
)

// Config captures the governance-controlled parameters of one vault.
type Config struct {
	Model        InterestModel     `json:"model"`
	FeeRate      sdkmath.LegacyDec `json:"fee_rate"`
	FeeRecipient crypto.Address    `json:"fee_recipient"`
}

// EnsureDefaults fills fields that are absent from older payloads.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	c.Model.EnsureDefaults()
	if c.FeeRate.IsNil() {
		c.FeeRate = sdkmath.LegacyZeroDec()
	}
}

// Validate checks the config after defaults have been applied.
func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if c.FeeRate.IsNil() || c.FeeRate.IsNegative() || c.FeeRate.GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(common.ErrValidation, "fee rate %s must be in [0,1)", c.FeeRate)
	}
	if c.FeeRate.IsPositive() && c.FeeRecipient.IsZero() {
		return errorsmod.Wrap(common.ErrValidation, "fee recipient required when fee rate is set")
	}
	return nil
}

// Clone returns a copy that shares no mutable state.
func (c Config) Clone() Config {
	clone := c
	if !c.FeeRecipient.IsZero() {
		clone.FeeRecipient = crypto.MustNewAddress(c.FeeRecipient.Prefix(), c.FeeRecipient.Bytes())
	}
	return clone
}
