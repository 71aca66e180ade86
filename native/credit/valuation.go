package credit

import (
	"math/big"
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"ghostcredit/native/common"
)

// MaxLTV is reported for accounts that owe something against no collateral
// value. Any computed ratio above it is clamped to it.
var MaxLTV = sdkmath.LegacyNewDec(1_000_000_000)

// maxValueBits keeps price*amount products inside the LegacyDec range.
const maxValueBits = 300

var decimalOne = new(big.Int).Exp(big.NewInt(10), big.NewInt(sdkmath.LegacyPrecision), nil)

// PriceBook memoizes oracle answers for the duration of one evaluation so
// every denom is priced exactly once.
type PriceBook struct {
	oracle Oracle
	prices map[string]sdkmath.LegacyDec
}

// NewPriceBook starts an empty book over oracle.
func NewPriceBook(oracle Oracle) *PriceBook {
	return &PriceBook{oracle: oracle, prices: make(map[string]sdkmath.LegacyDec)}
}

// Price returns the cached price of denom, querying the oracle on first use.
func (b *PriceBook) Price(denom string) (sdkmath.LegacyDec, error) {
	if price, ok := b.prices[denom]; ok {
		return price, nil
	}
	if b.oracle == nil {
		return sdkmath.LegacyDec{}, errorsmod.Wrap(common.ErrValidation, "oracle not configured")
	}
	price, err := b.oracle.Price(denom)
	if err != nil {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(err, "price %s", denom)
	}
	if price.IsNil() || price.IsNegative() {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(common.ErrValidation, "invalid price %s for %s", price, denom)
	}
	b.prices[denom] = price
	return price, nil
}

// Value converts amount base units of denom to USD. Negative amounts produce
// negative values.
func (b *PriceBook) Value(denom string, amount *big.Int) (sdkmath.LegacyDec, error) {
	price, err := b.Price(denom)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return mulAmount(amount, price)
}

func mulAmount(amount *big.Int, price sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if amount == nil || amount.Sign() == 0 || price.IsZero() {
		return sdkmath.LegacyZeroDec(), nil
	}
	if amount.BitLen()+price.BigInt().BitLen() > maxValueBits {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(common.ErrValidation, "value of %s overflows", amount)
	}
	return sdkmath.LegacyNewDecFromBigInt(amount).Mul(price), nil
}

// checkedRatio divides num by den on the raw decimal integers. A zero
// denominator, or a quotient above MaxLTV, yields MaxLTV.
func checkedRatio(num, den sdkmath.LegacyDec) sdkmath.LegacyDec {
	if !den.IsPositive() {
		return MaxLTV
	}
	raw := new(big.Int).Mul(num.BigInt(), decimalOne)
	raw.Quo(raw, den.BigInt())
	if raw.Cmp(MaxLTV.BigInt()) > 0 {
		return MaxLTV
	}
	return sdkmath.LegacyNewDecFromBigIntWithPrec(raw, sdkmath.LegacyPrecision)
}

// AdjustedLTV is total debt value over risk-adjusted collateral value.
func (a *CreditAccount) AdjustedLTV() sdkmath.LegacyDec {
	debt := a.TotalDebt()
	if !debt.IsPositive() {
		return sdkmath.LegacyZeroDec()
	}
	return checkedRatio(debt, a.TotalCollateralAdjusted())
}

// CheckSafe fails with ErrUnsafePosition when the adjusted LTV has reached
// threshold.
func (a *CreditAccount) CheckSafe(threshold sdkmath.LegacyDec) error {
	if ltv := a.AdjustedLTV(); ltv.GTE(threshold) {
		return errorsmod.Wrapf(common.ErrUnsafePosition, "account %s adjusted ltv %s >= %s", a.Address, ltv, threshold)
	}
	return nil
}

// CheckUnsafe fails with ErrSafePosition unless the adjusted LTV has reached
// threshold.
func (a *CreditAccount) CheckUnsafe(threshold sdkmath.LegacyDec) error {
	if ltv := a.AdjustedLTV(); ltv.LT(threshold) {
		return errorsmod.Wrapf(common.ErrSafePosition, "account %s adjusted ltv %s < %s", a.Address, ltv, threshold)
	}
	return nil
}

// evaluate values rec at the prices in book. Collaterals follow the ratio
// table order and debts the sorted vault denoms; zero values are dropped.
func (r *Registry) evaluate(rec *AccountRecord, book *PriceBook) (*CreditAccount, error) {
	ratios, err := r.loadRatios()
	if err != nil {
		return nil, err
	}
	acct := &CreditAccount{AccountRecord: *rec}
	for _, entry := range ratios {
		bal, err := r.custody.Balance(rec.Address, entry.Denom)
		if err != nil {
			return nil, err
		}
		if bal == nil || bal.Sign() <= 0 {
			continue
		}
		value, err := book.Value(entry.Denom, bal)
		if err != nil {
			return nil, err
		}
		if !value.IsPositive() {
			continue
		}
		acct.Collaterals = append(acct.Collaterals, Valued[Collateral]{
			Value:         value,
			ValueAdjusted: value.Mul(entry.ratio()),
			Item:          Collateral{Denom: entry.Denom, Amount: common.CopyInt(bal)},
		})
	}
	for _, denom := range r.vaultDenoms() {
		debt, err := r.vaults[denom].DelegateDebt(r.address, rec.Address)
		if err != nil {
			return nil, err
		}
		if debt == nil || debt.Sign() <= 0 {
			continue
		}
		value, err := book.Value(denom, debt)
		if err != nil {
			return nil, err
		}
		if !value.IsPositive() {
			continue
		}
		acct.Debts = append(acct.Debts, Valued[Debt]{
			Value:         value,
			ValueAdjusted: value,
			Item:          Debt{Denom: denom, Amount: common.CopyInt(debt)},
		})
	}
	return acct, nil
}

func (r *Registry) vaultDenoms() []string {
	out := make([]string, 0, len(r.vaults))
	for denom := range r.vaults {
		out = append(out, denom)
	}
	sort.Strings(out)
	return out
}

// heldDenoms lists the collateral denoms with a positive value in acct.
func heldDenoms(acct *CreditAccount) []string {
	out := make([]string, 0, len(acct.Collaterals))
	for _, c := range acct.Collaterals {
		out = append(out, c.Item.Denom)
	}
	sort.Strings(out)
	return out
}
