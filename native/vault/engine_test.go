package vault

import (
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"ghostcredit/core/events"
	"ghostcredit/core/state"
	"ghostcredit/core/types"
	"ghostcredit/crypto"
	"ghostcredit/native/bank"
	"ghostcredit/native/common"
	"ghostcredit/storage"
)

const testDenom = "uusd"

func testAddr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0xAA
	raw[len(raw)-1] = b
	return crypto.MustNewAddress(crypto.GhostPrefix, raw)
}

type paramsStub struct {
	configs map[string]Config
}

func (p *paramsStub) VaultConfig(denom string) (Config, error) {
	return p.configs[denom], nil
}

func (p *paramsStub) SetVaultConfig(denom string, cfg Config) error {
	p.configs[denom] = cfg
	return nil
}

type fixture struct {
	engine *Engine
	ledger *bank.Ledger
	params *paramsStub
	mgr    *state.Manager
	events *events.Recorder
	now    int64
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	f := &fixture{
		ledger: bank.NewLedger(mgr),
		params: &paramsStub{configs: map[string]Config{testDenom: cfg}},
		mgr:    mgr,
		events: &events.Recorder{},
	}
	f.engine = NewEngine(testDenom, testAddr(100))
	f.engine.SetState(mgr)
	f.engine.SetBank(f.ledger)
	f.engine.SetParams(f.params)
	f.engine.SetEmitter(f.events)
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func (f *fixture) mint(t *testing.T, addr crypto.Address, amount int64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(addr, types.NewCoin(testDenom, big.NewInt(amount))))
}

func (f *fixture) balance(t *testing.T, addr crypto.Address) int64 {
	t.Helper()
	bal, err := f.ledger.Balance(addr, testDenom)
	require.NoError(t, err)
	return bal.Int64()
}

func lastEvent(t *testing.T, rec *events.Recorder, kind string) *types.Event {
	t.Helper()
	all := rec.Events()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].EventType() == kind {
			return all[i].(vaultEvent).Event()
		}
	}
	t.Fatalf("no %s event recorded", kind)
	return nil
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	alice := testAddr(1)
	f.mint(t, alice, 1_000)

	minted, err := f.engine.Deposit(alice, big.NewInt(600))
	require.NoError(t, err)
	require.Equal(t, int64(600), minted.Int64())
	require.Equal(t, int64(400), f.balance(t, alice))

	_, err = f.engine.Withdraw(alice, big.NewInt(601))
	require.ErrorIs(t, err, common.ErrInsufficientShares)

	claim, err := f.engine.Withdraw(alice, big.NewInt(600))
	require.NoError(t, err)
	require.Equal(t, int64(600), claim.Int64())
	require.Equal(t, int64(1_000), f.balance(t, alice))
	require.Equal(t, []string{EventTypeDeposit, EventTypeWithdraw}, f.events.Types())
}

func TestBorrowRequiresWhitelistAndLimit(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	alice, registry, account := testAddr(1), testAddr(2), testAddr(3)
	f.mint(t, alice, 1_000)
	_, err := f.engine.Deposit(alice, big.NewInt(1_000))
	require.NoError(t, err)

	_, err = f.engine.Borrow(registry, &account, big.NewInt(10), account)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	require.NoError(t, f.engine.SetBorrowerLimit(registry, big.NewInt(300)))
	_, err = f.engine.Borrow(registry, &account, big.NewInt(301), account)
	require.ErrorIs(t, err, common.ErrBorrowLimit)

	minted, err := f.engine.Borrow(registry, &account, big.NewInt(300), account)
	require.NoError(t, err)
	require.Equal(t, int64(300), minted.Int64())
	require.Equal(t, int64(300), f.balance(t, account))

	debt, err := f.engine.DelegateDebt(registry, account)
	require.NoError(t, err)
	require.Equal(t, int64(300), debt.Int64())

	_, err = f.engine.Borrow(registry, &account, big.NewInt(1), account)
	require.ErrorIs(t, err, common.ErrBorrowLimit)
}

func TestBorrowersPaginate(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	for i := 0; i < 250; i++ {
		require.NoError(t, f.engine.SetBorrowerLimit(testAddr(byte(i)), big.NewInt(int64(i+1))))
	}

	all, next, err := f.engine.Borrowers(crypto.Address{}, 100000)
	require.NoError(t, err)
	require.Len(t, all, MaxPageSize)
	require.False(t, next.IsZero())

	seen := map[string]bool{}
	cursor := crypto.Address{}
	pages := 0
	for {
		views, next, err := f.engine.Borrowers(cursor, 0)
		require.NoError(t, err)
		require.LessOrEqual(t, len(views), DefaultPageSize)
		for _, v := range views {
			require.False(t, seen[v.Address.String()])
			seen[v.Address.String()] = true
		}
		pages++
		if next.IsZero() {
			break
		}
		cursor = next
	}
	require.Len(t, seen, 250)
	require.Equal(t, 9, pages)
}

func TestBorrowAndWithdrawRespectLiquidity(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	alice, registry := testAddr(1), testAddr(2)
	f.mint(t, alice, 100)
	_, err := f.engine.Deposit(alice, big.NewInt(100))
	require.NoError(t, err)
	require.NoError(t, f.engine.SetBorrowerLimit(registry, big.NewInt(1_000)))

	_, err = f.engine.Borrow(registry, nil, big.NewInt(101), registry)
	require.ErrorIs(t, err, common.ErrInsufficientLiquidity)

	_, err = f.engine.Borrow(registry, nil, big.NewInt(80), registry)
	require.NoError(t, err)

	_, err = f.engine.Withdraw(alice, big.NewInt(100))
	require.ErrorIs(t, err, common.ErrInsufficientLiquidity)
}

func TestRepayReportsClaimedAmount(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	registry, account, payer := testAddr(2), testAddr(3), testAddr(4)
	f.now = 1_000

	st := newState()
	st.Deposit = pool(2_000, 2_000)
	st.Debt = pool(1_000, 3)
	st.LastUpdated = uint64(f.now)
	require.NoError(t, f.engine.putState(st))
	require.NoError(t, f.engine.putBorrower(&BorrowerRecord{
		Address:         registry,
		Shares:          big.NewInt(3),
		DelegatedShares: big.NewInt(3),
		Limit:           big.NewInt(5_000),
	}))
	require.NoError(t, f.engine.putShares(delegateKey(testDenom, registry, account), big.NewInt(3)))
	f.mint(t, payer, 334)

	claim, err := f.engine.Repay(registry, &account, payer, big.NewInt(334))
	require.NoError(t, err)
	require.Equal(t, int64(333), claim.Int64())
	require.Equal(t, int64(1), f.balance(t, payer), "excess is refunded to the payer")
	require.Equal(t, "333", lastEvent(t, f.events, EventTypeRepay).Attributes["amount"])

	debt, err := f.engine.DelegateDebt(registry, account)
	require.NoError(t, err)
	require.Equal(t, int64(667), debt.Int64())
}

func TestRepayWithoutDebt(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	registry, payer := testAddr(2), testAddr(4)
	require.NoError(t, f.engine.SetBorrowerLimit(registry, big.NewInt(10)))
	f.mint(t, payer, 10)
	_, err := f.engine.Repay(registry, nil, payer, big.NewInt(10))
	require.ErrorIs(t, err, common.ErrZeroDebt)
}

func TestInterestAccruesBeforeRepay(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	alice, registry := testAddr(1), testAddr(2)
	f.mint(t, alice, 2*SecondsPerYear)
	_, err := f.engine.Deposit(alice, big.NewInt(2*SecondsPerYear))
	require.NoError(t, err)
	require.NoError(t, f.engine.SetBorrowerLimit(registry, big.NewInt(10*SecondsPerYear)))
	_, err = f.engine.Borrow(registry, nil, big.NewInt(SecondsPerYear), registry)
	require.NoError(t, err)

	f.now = 20
	debt, err := f.engine.BorrowerDebt(registry)
	require.NoError(t, err)
	require.Equal(t, int64(SecondsPerYear+2), debt.Int64())

	f.mint(t, registry, 2)
	claim, err := f.engine.Repay(registry, nil, registry, big.NewInt(SecondsPerYear+2))
	require.NoError(t, err)
	require.Equal(t, int64(SecondsPerYear+2), claim.Int64())

	status, err := f.engine.Status()
	require.NoError(t, err)
	require.Zero(t, status.DebtSize.Sign())
	require.Equal(t, int64(2*SecondsPerYear+2), status.DepositSize.Int64())
	require.Equal(t, uint64(20), status.LastUpdated)
}

func TestSetInterestModelFlushesAtOldRate(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	alice, registry := testAddr(1), testAddr(2)
	f.mint(t, alice, 2*SecondsPerYear)
	_, err := f.engine.Deposit(alice, big.NewInt(2*SecondsPerYear))
	require.NoError(t, err)
	require.NoError(t, f.engine.SetBorrowerLimit(registry, big.NewInt(10*SecondsPerYear)))
	_, err = f.engine.Borrow(registry, nil, big.NewInt(SecondsPerYear), registry)
	require.NoError(t, err)

	f.now = 10
	require.NoError(t, f.engine.SetInterestModel(flatConfig("0.2").Model))
	f.now = 20
	debt, err := f.engine.BorrowerDebt(registry)
	require.NoError(t, err)
	require.Equal(t, int64(SecondsPerYear+3), debt.Int64())
	require.True(t, f.params.configs[testDenom].Model.Base.Equal(dec("0.2")))
}

func TestSetFeeRecipientBoundedWhileDeferred(t *testing.T) {
	cfg := flatConfig("0.1")
	cfg.FeeRate = dec("0.5")
	cfg.FeeRecipient = testAddr(50)
	f := newFixture(t, cfg)

	st := newState()
	st.Debt = pool(10*SecondsPerYear, 10*SecondsPerYear)
	require.NoError(t, f.engine.putState(st))

	for i := 0; i < MaxPendingFees-1; i++ {
		f.now += 10
		require.NoError(t, f.engine.SetFeeRecipient(testAddr(byte(51+i))))
	}
	f.now += 10
	err := f.engine.SetFeeRecipient(testAddr(200))
	require.ErrorIs(t, err, common.ErrCapacityExceeded)

	status, err := f.engine.Status()
	require.NoError(t, err)
	require.Len(t, status.PendingFees, MaxPendingFees)
	require.Contains(t, f.events.Types(), EventTypeFeeDeferred)
}

func TestFeeSharesCreditedToRecipient(t *testing.T) {
	cfg := flatConfig("0.1")
	cfg.FeeRate = dec("0.5")
	treasury := testAddr(60)
	cfg.FeeRecipient = treasury
	f := newFixture(t, cfg)
	alice, registry := testAddr(1), testAddr(2)

	f.mint(t, alice, 20*SecondsPerYear)
	_, err := f.engine.Deposit(alice, big.NewInt(20*SecondsPerYear))
	require.NoError(t, err)
	require.NoError(t, f.engine.SetBorrowerLimit(registry, big.NewInt(10*SecondsPerYear)))
	_, err = f.engine.Borrow(registry, nil, big.NewInt(10*SecondsPerYear), registry)
	require.NoError(t, err)

	f.now = 10
	f.mint(t, alice, 1_000)
	_, err = f.engine.Deposit(alice, big.NewInt(1_000))
	require.NoError(t, err)

	// Interest 10, fee 5. Joining 5 after the yield lands mints 4 shares.
	shares, amount, err := f.engine.DepositorPosition(treasury)
	require.NoError(t, err)
	require.Equal(t, int64(4), shares.Int64())
	require.Equal(t, int64(4), amount.Int64())
	require.Contains(t, f.events.Types(), EventTypeFeeCredited)
}

func TestPausedVaultRejectsOperations(t *testing.T) {
	f := newFixture(t, flatConfig("0.1"))
	f.engine.SetPauses(common.Pauses{common.ModuleVault: true})
	alice := testAddr(1)
	f.mint(t, alice, 10)
	_, err := f.engine.Deposit(alice, big.NewInt(10))
	require.ErrorIs(t, err, common.ErrPaused)
}

func TestConfigValidate(t *testing.T) {
	cfg := flatConfig("0.1")
	require.NoError(t, cfg.Validate())

	cfg.FeeRate = dec("0.1")
	require.Error(t, cfg.Validate(), "fee without recipient")
	cfg.FeeRecipient = testAddr(1)
	require.NoError(t, cfg.Validate())

	cfg.FeeRate = sdkmath.LegacyOneDec()
	require.ErrorIs(t, cfg.Validate(), common.ErrValidation)

	var empty Config
	empty.EnsureDefaults()
	require.NoError(t, empty.Validate())
}
