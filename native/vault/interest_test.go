package vault

import (
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func TestInterestModelRateKink(t *testing.T) {
	model := InterestModel{Base: dec("0.02"), Step1: dec("0.04"), Step2: dec("0.75"), Target: dec("0.8")}

	require.True(t, model.Rate(dec("0")).Equal(dec("0.02")))
	require.True(t, model.Rate(dec("0.4")).Equal(dec("0.04")))
	require.True(t, model.Rate(dec("0.8")).Equal(dec("0.06")))
	require.True(t, model.Rate(dec("0.9")).Equal(dec("0.435")))
	require.True(t, model.Rate(dec("1")).Equal(dec("0.81")))
}

func TestInterestModelValidate(t *testing.T) {
	valid := DefaultInterestModel()
	require.NoError(t, valid.Validate())

	bad := valid
	bad.Target = dec("0")
	require.Error(t, bad.Validate())

	bad = valid
	bad.Target = dec("1.1")
	require.Error(t, bad.Validate())

	bad = valid
	bad.Base = dec("-0.1")
	require.Error(t, bad.Validate())

	var empty InterestModel
	require.Error(t, empty.Validate())
	empty.EnsureDefaults()
	require.NoError(t, empty.Validate())
}

func TestUtilizationClamped(t *testing.T) {
	require.True(t, Utilization(big.NewInt(5), big.NewInt(0)).IsZero())
	require.True(t, Utilization(big.NewInt(1), big.NewInt(4)).Equal(dec("0.25")))
	require.True(t, Utilization(big.NewInt(9), big.NewInt(4)).Equal(sdkmath.LegacyOneDec()))
}

func TestInterestForFloorsOnce(t *testing.T) {
	interest, err := interestFor(big.NewInt(SecondsPerYear), dec("0.1"), 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), interest.Int64())

	interest, err = interestFor(big.NewInt(SecondsPerYear), dec("0.1"), 9)
	require.NoError(t, err)
	require.Zero(t, interest.Sign())
}

func flatConfig(rate string) Config {
	return Config{
		Model:   InterestModel{Base: dec(rate), Step1: dec("0"), Step2: dec("0"), Target: dec("0.8")},
		FeeRate: sdkmath.LegacyZeroDec(),
	}
}

func debtState(debt int64) *State {
	st := newState()
	st.Deposit = pool(2*debt, 2*debt)
	st.Debt = pool(debt, debt)
	return st
}

func TestAccrualIsTimeAdditive(t *testing.T) {
	cfg := flatConfig("0.1")

	split := debtState(SecondsPerYear)
	_, err := applyAccrual(split, cfg, 10)
	require.NoError(t, err)
	_, err = applyAccrual(split, cfg, 20)
	require.NoError(t, err)

	whole := debtState(SecondsPerYear)
	_, err = applyAccrual(whole, cfg, 20)
	require.NoError(t, err)

	require.Equal(t, int64(SecondsPerYear+2), split.Debt.Size.Int64())
	require.Equal(t, 0, split.Debt.Size.Cmp(whole.Debt.Size))
	require.Equal(t, uint64(20), split.LastUpdated)
}

func TestRateChangeIsNotRetroactive(t *testing.T) {
	st := debtState(SecondsPerYear)
	_, err := applyAccrual(st, flatConfig("0.1"), 10)
	require.NoError(t, err)
	_, err = applyAccrual(st, flatConfig("0.2"), 20)
	require.NoError(t, err)

	// 1 unit at 10% for the first interval, 2 at 20% for the second.
	require.Equal(t, int64(SecondsPerYear+3), st.Debt.Size.Int64())
}

func TestAccrualNeverMovesBackwards(t *testing.T) {
	st := debtState(SecondsPerYear)
	st.LastUpdated = 50
	res, err := applyAccrual(st, flatConfig("0.1"), 40)
	require.NoError(t, err)
	require.Zero(t, res.interest.Sign())
	require.Equal(t, uint64(50), st.LastUpdated)
}

func TestAccrualDefersFeesWithoutDepositShares(t *testing.T) {
	first, second := testAddr(11), testAddr(12)
	cfg := flatConfig("0.1")
	cfg.FeeRate = dec("0.5")
	cfg.FeeRecipient = first

	st := newState()
	st.Debt = pool(10*SecondsPerYear, 10*SecondsPerYear)

	res, err := applyAccrual(st, cfg, 10)
	require.NoError(t, err)
	require.True(t, res.deferred)
	require.Equal(t, int64(10), res.interest.Int64())
	require.Equal(t, int64(5), st.Pending.Interest.Int64())
	require.Len(t, st.Pending.Fees, 1)
	require.True(t, st.Pending.Fees[0].Recipient.Equal(first))

	cfg.FeeRecipient = second
	_, err = applyAccrual(st, cfg, 20)
	require.NoError(t, err)
	require.Len(t, st.Pending.Fees, 2)
	require.Equal(t, int64(5), st.Pending.Fees[0].Amount.Int64())

	// Once depositors exist the deferred amounts flush to the snapshotted
	// recipients.
	_, err = st.Deposit.Join(big.NewInt(1000))
	require.NoError(t, err)
	res, err = applyAccrual(st, cfg, 20)
	require.NoError(t, err)
	require.Empty(t, st.Pending.Fees)
	require.Zero(t, st.Pending.Interest.Sign())
	require.Len(t, res.credits, 2)
	require.True(t, res.credits[0].fee.Recipient.Equal(first))
	require.True(t, res.credits[1].fee.Recipient.Equal(second))
}
