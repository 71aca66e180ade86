package app

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ghostcredit/config"
	"ghostcredit/core/types"
	"ghostcredit/crypto"
	"ghostcredit/native/common"
	"ghostcredit/native/credit"
	"ghostcredit/storage"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0xA0
	raw[len(raw)-1] = b
	return crypto.MustNewAddress(crypto.GhostPrefix, raw)
}

var (
	registry  = addr(1)
	vaultAddr = addr(2)
	depositor = addr(3)
	owner     = addr(10)
)

func testGenesis() *config.Genesis {
	account := crypto.DeriveAddress(registry, owner, "main", 1)
	return &config.Genesis{
		RegistryAddress: registry.String(),
		Vaults: []config.VaultGenesis{{
			Denom:     "uusd",
			Address:   vaultAddr.String(),
			Borrowers: []config.BorrowerGenesis{{Address: registry.String(), Limit: "500000"}},
		}},
		CollateralRatios: []config.CollateralRatioGenesis{{Denom: "uatom", Ratio: "0.8"}},
		Prices:           map[string]string{"uatom": "10", "uusd": "1"},
		Balances: []config.BalanceGenesis{
			{Address: depositor.String(), Denom: "uusd", Amount: "1000000"},
			{Address: account.String(), Denom: "uatom", Amount: "100"},
		},
		Accounts: []config.AccountGenesis{{Owner: owner.String(), Tag: "main"}},
		Pauses:   map[string]bool{common.ModuleVault: false},
	}
}

func TestInitGenesisAppliesOnce(t *testing.T) {
	g := testGenesis()
	require.NoError(t, g.Validate())
	db := storage.NewMemDB()

	a, err := New(db, g, nil)
	require.NoError(t, err)
	applied, err := a.InitGenesis(g)
	require.NoError(t, err)
	require.True(t, applied)

	// A second process over the same database keeps the committed state.
	b, err := New(db, g, nil)
	require.NoError(t, err)
	applied, err = b.InitGenesis(g)
	require.NoError(t, err)
	require.False(t, applied)

	recs, _, err := b.Registry().AccountsByOwner(owner, "", crypto.Address{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	ratios, err := b.Registry().CollateralRatios()
	require.NoError(t, err)
	require.Len(t, ratios, 1)

	engine, ok := b.Vault("uusd")
	require.True(t, ok)
	borrowers, _, err := engine.Borrowers(crypto.Address{}, 0)
	require.NoError(t, err)
	require.Len(t, borrowers, 1)
	require.Equal(t, int64(500000), borrowers[0].Limit.Int64())
}

func TestUpdateCommitsAndDiscards(t *testing.T) {
	g := testGenesis()
	dir := t.TempDir()
	db, err := storage.NewLevelDB(filepath.Join(dir, "state"))
	require.NoError(t, err)
	defer db.Close()

	a, err := New(db, g, nil)
	require.NoError(t, err)
	_, err = a.InitGenesis(g)
	require.NoError(t, err)
	engine, _ := a.Vault("uusd")
	account := crypto.DeriveAddress(registry, owner, "main", 1)

	require.NoError(t, a.Update(func() error {
		_, err := engine.Deposit(depositor, big.NewInt(1_000_000))
		return err
	}))
	require.NoError(t, a.Update(func() error {
		_, err := a.Registry().Apply(owner, account, []credit.AccountMsg{
			credit.BorrowMsg(types.NewCoin("uusd", big.NewInt(300))),
		})
		return err
	}))

	// An unsafe borrow leaves no trace.
	err = a.Update(func() error {
		_, err := a.Registry().Apply(owner, account, []credit.AccountMsg{
			credit.BorrowMsg(types.NewCoin("uusd", big.NewInt(10_000))),
		})
		return err
	})
	require.ErrorIs(t, err, common.ErrUnsafePosition)

	require.NoError(t, a.View(func() error {
		debt, err := engine.DelegateDebt(registry, account)
		require.NoError(t, err)
		require.GreaterOrEqual(t, debt.Int64(), int64(300))
		balances, err := a.Balances(account)
		require.NoError(t, err)
		require.Equal(t, int64(300), balances.AmountOf("uusd").Int64())
		return nil
	}))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, testGenesis(), nil)
	require.Error(t, err)
	_, err = New(storage.NewMemDB(), nil, nil)
	require.Error(t, err)

	g := testGenesis()
	g.RegistryAddress = "nope"
	_, err = New(storage.NewMemDB(), g, nil)
	require.Error(t, err)
}
