package vault

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"ghostcredit/native/common"
)

// SecondsPerYear annualises the interest rate.
const SecondsPerYear = 31_536_000

var (
	decimalScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(sdkmath.LegacyPrecision), nil)
	yearScale    = new(big.Int).Mul(decimalScale, big.NewInt(SecondsPerYear))
)

// InterestModel is a kinked utilisation curve. Below Target the annual rate
// climbs from Base by Step1; above it the remaining Step2 applies over the
// rest of the range.
type InterestModel struct {
	Base   sdkmath.LegacyDec `json:"base"`
	Step1  sdkmath.LegacyDec `json:"step1"`
	Step2  sdkmath.LegacyDec `json:"step2"`
	Target sdkmath.LegacyDec `json:"target"`
}

// DefaultInterestModel is used when a vault is configured without a curve.
func DefaultInterestModel() InterestModel {
	return InterestModel{
		Base:   sdkmath.LegacyZeroDec(),
		Step1:  sdkmath.LegacyNewDecWithPrec(4, 2),
		Step2:  sdkmath.LegacyNewDecWithPrec(75, 2),
		Target: sdkmath.LegacyNewDecWithPrec(80, 2),
	}
}

// EnsureDefaults replaces nil decimals with the default curve's values.
func (m *InterestModel) EnsureDefaults() {
	def := DefaultInterestModel()
	if m.Base.IsNil() {
		m.Base = def.Base
	}
	if m.Step1.IsNil() {
		m.Step1 = def.Step1
	}
	if m.Step2.IsNil() {
		m.Step2 = def.Step2
	}
	if m.Target.IsNil() {
		m.Target = def.Target
	}
}

// Validate checks that the curve is well formed.
func (m InterestModel) Validate() error {
	if m.Base.IsNil() || m.Step1.IsNil() || m.Step2.IsNil() || m.Target.IsNil() {
		return errorsmod.Wrap(common.ErrValidation, "interest model has unset fields")
	}
	if m.Base.IsNegative() || m.Step1.IsNegative() || m.Step2.IsNegative() {
		return errorsmod.Wrap(common.ErrValidation, "interest model rates must not be negative")
	}
	if !m.Target.IsPositive() || m.Target.GT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(common.ErrValidation, "target utilization %s must be in (0,1]", m.Target)
	}
	return nil
}

// Rate returns the annual borrow rate at utilization u.
func (m InterestModel) Rate(u sdkmath.LegacyDec) sdkmath.LegacyDec {
	if u.LTE(m.Target) {
		return m.Base.Add(m.Step1.Mul(u).Quo(m.Target))
	}
	excess := u.Sub(m.Target).Quo(sdkmath.LegacyOneDec().Sub(m.Target))
	return m.Base.Add(m.Step1).Add(m.Step2.Mul(excess))
}

// Utilization returns debt/deposit clamped to [0,1]; zero when nothing is
// deposited.
func Utilization(debt, deposit *big.Int) sdkmath.LegacyDec {
	if deposit == nil || deposit.Sign() == 0 || debt == nil || debt.Sign() == 0 {
		return sdkmath.LegacyZeroDec()
	}
	u := sdkmath.LegacyNewDecFromBigInt(debt).Quo(sdkmath.LegacyNewDecFromBigInt(deposit))
	if u.GT(sdkmath.LegacyOneDec()) {
		return sdkmath.LegacyOneDec()
	}
	return u
}

// interestFor computes floor(size * rate * elapsed / year) on the raw 18-digit
// rate so the only rounding is the final floor.
func interestFor(size *big.Int, rate sdkmath.LegacyDec, elapsed int64) (*big.Int, error) {
	if size == nil || size.Sign() == 0 || elapsed <= 0 || !rate.IsPositive() {
		return new(big.Int), nil
	}
	scaled := new(big.Int).Mul(rate.BigInt(), big.NewInt(elapsed))
	return common.MulDiv(size, scaled, yearScale)
}

// feeFor returns floor(interest * feeRate).
func feeFor(interest *big.Int, feeRate sdkmath.LegacyDec) (*big.Int, error) {
	if interest.Sign() == 0 || feeRate.IsNil() || !feeRate.IsPositive() {
		return new(big.Int), nil
	}
	return common.MulDiv(interest, feeRate.BigInt(), decimalScale)
}
