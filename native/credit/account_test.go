package credit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"ghostcredit/crypto"
	"ghostcredit/native/common"
	"ghostcredit/native/vault"
	"ghostcredit/storage"
)

func TestCreateAccountDerivesDistinctAddresses(t *testing.T) {
	f := newFixture(t)

	first, err := f.reg.CreateAccount(ownerAddr, "main")
	require.NoError(t, err)
	second, err := f.reg.CreateAccount(ownerAddr, "main")
	require.NoError(t, err)
	require.False(t, first.Address.Equal(second.Address))
	require.True(t, first.Address.Equal(crypto.DeriveAddress(registryAddr, ownerAddr, "main", 1)))

	_, err = f.reg.CreateAccount(ownerAddr, "bad/tag")
	require.ErrorIs(t, err, common.ErrValidation)
	require.Contains(t, f.events.Types(), EventTypeAccountCreated)
}

func TestApplyBorrowKeepsAccountBelowAdjustmentThreshold(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, coin(atom, 100))

	// 100 uatom at 10 with ratio 0.8 supports up to 800 of debt; the
	// adjustment threshold of 0.8 allows strictly less than 640.
	acct, err := f.reg.Apply(ownerAddr, account, []AccountMsg{BorrowMsg(coin(usd, 600))})
	require.NoError(t, err)
	require.True(t, acct.AdjustedLTV().LT(dec("0.8")))
	require.Equal(t, int64(600), f.balance(t, account, usd))
	require.Equal(t, int64(600), f.debt(t, account))

	_, err = f.reg.Apply(ownerAddr, account, []AccountMsg{BorrowMsg(coin(usd, 100))})
	require.ErrorIs(t, err, common.ErrUnsafePosition)
	// The failed call left nothing behind.
	require.Equal(t, int64(600), f.debt(t, account))
	require.Equal(t, int64(600), f.balance(t, account, usd))
}

func TestApplyChecksOnlyAfterTheLastOperation(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, coin(atom, 100))

	// Withdrawing collateral that backs the borrow fails at the end.
	_, err := f.reg.Apply(ownerAddr, account, []AccountMsg{
		BorrowMsg(coin(usd, 600)),
		SendMsg(ownerAddr, coin(atom, 50)),
	})
	require.ErrorIs(t, err, common.ErrUnsafePosition)
	require.Equal(t, int64(100), f.balance(t, account, atom))
	require.Zero(t, f.debt(t, account))

	// Repaying within the same call keeps the account safe.
	_, err = f.reg.Apply(ownerAddr, account, []AccountMsg{
		BorrowMsg(coin(usd, 600)),
		RepayMsg(coin(usd, 600)),
		SendMsg(ownerAddr, coin(atom, 50)),
	})
	require.NoError(t, err)
	require.Equal(t, int64(50), f.balance(t, ownerAddr, atom))
	require.Zero(t, f.debt(t, account))
}

func TestRepayingReportedDebtClosesInTwoCalls(t *testing.T) {
	f := newFixture(t)
	first := f.openAccount(t, coin(atom, 100))
	second := f.openAccount(t, coin(atom, 100))
	_, err := f.reg.Apply(ownerAddr, first, []AccountMsg{BorrowMsg(coin(usd, 2))})
	require.NoError(t, err)
	_, err = f.reg.Apply(ownerAddr, second, []AccountMsg{BorrowMsg(coin(usd, 1))})
	require.NoError(t, err)

	// A flat 100% rate over 997/3 years grows the debt pool from 3 to 1000
	// over 3 shares.
	require.NoError(t, f.vault.SetInterestModel(vault.InterestModel{
		Base: dec("1"), Step1: dec("0"), Step2: dec("0"), Target: dec("0.8"),
	}))
	f.vault.SetNowFunc(func() int64 { return 1_000 + 997*vault.SecondsPerYear/3 })
	require.Equal(t, int64(666), f.debt(t, first))
	require.NoError(t, f.ledger.Mint(first, coin(usd, 1_000)))

	_, err = f.reg.Apply(ownerAddr, first, []AccountMsg{RepayMsg(coin(usd, 666))})
	require.NoError(t, err)
	require.Equal(t, int64(333), f.debt(t, first))
	require.Equal(t, int64(1_002-333), f.balance(t, first, usd))

	_, err = f.reg.Apply(ownerAddr, first, []AccountMsg{RepayMsg(coin(usd, 333))})
	require.NoError(t, err)
	require.Zero(t, f.debt(t, first))
	require.Equal(t, int64(1_002-666), f.balance(t, first, usd))
	require.Equal(t, int64(334), f.debt(t, second))
}

func TestApplyRequiresOwner(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, coin(atom, 100))
	stranger := testAddr(99)

	_, err := f.reg.Apply(stranger, account, []AccountMsg{SendMsg(stranger, coin(atom, 1))})
	require.ErrorIs(t, err, common.ErrUnauthorized)

	require.NoError(t, f.reg.TransferAccount(ownerAddr, account, stranger))
	_, err = f.reg.Apply(ownerAddr, account, []AccountMsg{SendMsg(ownerAddr, coin(atom, 1))})
	require.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = f.reg.Apply(stranger, account, []AccountMsg{SendMsg(stranger, coin(atom, 1))})
	require.NoError(t, err)

	recs, _, err := f.reg.AccountsByOwner(stranger, "", crypto.Address{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	recs, _, err = f.reg.AccountsByOwner(ownerAddr, "main", crypto.Address{}, 0)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestAllAccountsLimitIsCapped(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		_, err := f.reg.CreateAccount(testAddr(byte(50+i)), "")
		require.NoError(t, err)
	}

	recs, next, err := f.reg.Accounts(crypto.Address{}, 100000)
	require.NoError(t, err)
	require.Len(t, recs, 10)
	require.True(t, next.IsZero())
}

func TestAccountListingsPaginate(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		tag := "even"
		if i%2 == 1 {
			tag = "odd"
		}
		_, err := f.reg.CreateAccount(ownerAddr, tag)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	cursor := crypto.Address{}
	pages := 0
	for {
		recs, next, err := f.reg.AccountsByOwner(ownerAddr, "", cursor, 10)
		require.NoError(t, err)
		require.LessOrEqual(t, len(recs), 10)
		for _, rec := range recs {
			key := rec.Address.String()
			require.False(t, seen[key], "duplicate %s", key)
			seen[key] = true
		}
		pages++
		if next.IsZero() {
			break
		}
		cursor = next
	}
	require.Len(t, seen, 25)
	require.Equal(t, 3, pages)

	odd, _, err := f.reg.AccountsByOwner(ownerAddr, "odd", crypto.Address{}, 0)
	require.NoError(t, err)
	require.Len(t, odd, 12)
	for _, rec := range odd {
		require.Equal(t, "odd", rec.Tag)
	}
}

func TestAccountListingsReadOnlyOnePage(t *testing.T) {
	db := &countingDB{Database: storage.NewMemDB()}
	f := newFixtureOn(t, db)
	for i := 0; i < 300; i++ {
		_, err := f.reg.CreateAccount(testAddr(byte(i%200)), "")
		require.NoError(t, err)
		_, err = f.reg.CreateAccount(ownerAddr, "bulk")
		require.NoError(t, err)
	}
	require.NoError(t, f.mgr.Commit())

	db.visited = 0
	recs, next, err := f.reg.Accounts(crypto.Address{}, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.False(t, next.IsZero())
	require.LessOrEqual(t, db.visited, 2)

	db.visited = 0
	recs, next, err = f.reg.Accounts(next, 100000)
	require.NoError(t, err)
	require.Len(t, recs, MaxPageSize)
	require.False(t, next.IsZero())
	require.LessOrEqual(t, db.visited, MaxPageSize+1)

	db.visited = 0
	recs, _, err = f.reg.AccountsByOwner(ownerAddr, "bulk", crypto.Address{}, 5)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	require.LessOrEqual(t, db.visited, 6)
}

func TestSetPreferencesValidates(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t)

	err := f.reg.SetPreferences(ownerAddr, account, Preferences{Order: []string{atom, atom}})
	require.ErrorIs(t, err, common.ErrValidation)

	msgs := make([]LiquidateMsg, MaxPreferenceMessages+1)
	for i := range msgs {
		msgs[i] = NewRepayStep(usd)
	}
	err = f.reg.SetPreferences(ownerAddr, account, Preferences{Messages: msgs})
	require.ErrorIs(t, err, common.ErrCapacityExceeded)

	err = f.reg.SetPreferences(ownerAddr, account, Preferences{
		Order:    []string{osmo, atom},
		Messages: []LiquidateMsg{NewRepayStep(usd)},
	})
	require.NoError(t, err)
	rec, err := f.reg.Account(account)
	require.NoError(t, err)
	require.Equal(t, []string{osmo, atom}, rec.Preferences.Order)
	require.Len(t, rec.Preferences.Messages, 1)
}

func TestRatioTableCapacity(t *testing.T) {
	f := newFixture(t)

	added := 2
	var capErr error
	for i := 0; i < 500; i++ {
		if err := f.reg.SetCollateralRatio(fmt.Sprintf("denom%03d", i), dec("0.5")); err != nil {
			capErr = err
			break
		}
		added++
	}
	require.ErrorIs(t, capErr, common.ErrCapacityExceeded)
	require.Equal(t, DefaultMaxCollateralRatios, added)

	ratios, err := f.reg.CollateralRatios()
	require.NoError(t, err)
	require.Len(t, ratios, DefaultMaxCollateralRatios)

	// Updating a listed denom is still allowed at capacity.
	require.NoError(t, f.reg.SetCollateralRatio(atom, dec("0.7")))

	// Shrinking the bound below the table size is rejected.
	cfg := f.params.cfg
	cfg.MaxCollateralRatios = 10
	require.ErrorIs(t, f.reg.SetConfig(cfg), common.ErrCapacityExceeded)
}

func TestRemoveRatioRequiresNoLiveExposure(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, coin(atom, 100))
	_, err := f.reg.Apply(ownerAddr, account, []AccountMsg{SendMsg(ownerAddr, coin(atom, 1))})
	require.NoError(t, err)

	exposure, err := f.reg.Exposure(atom)
	require.NoError(t, err)
	require.Equal(t, uint64(1), exposure)
	require.ErrorIs(t, f.reg.RemoveCollateralRatio(atom), common.ErrLiveExposure)

	_, err = f.reg.Apply(ownerAddr, account, []AccountMsg{SendMsg(ownerAddr, coin(atom, 99))})
	require.NoError(t, err)
	require.NoError(t, f.reg.RemoveCollateralRatio(atom))
	require.ErrorIs(t, f.reg.RemoveCollateralRatio(atom), common.ErrNotFound)
}

func TestPausedRegistryRejectsOperations(t *testing.T) {
	f := newFixture(t)
	account := f.openAccount(t, coin(atom, 100))
	f.reg.SetPauses(common.Pauses{common.ModuleCredit: true})

	_, err := f.reg.Apply(ownerAddr, account, []AccountMsg{SendMsg(ownerAddr, coin(atom, 1))})
	require.ErrorIs(t, err, common.ErrPaused)
	_, err = f.reg.Liquidate(liquidator, account, nil)
	require.ErrorIs(t, err, common.ErrPaused)

	// Queries stay available.
	_, err = f.reg.AccountStatus(account)
	require.NoError(t, err)
}
