package credit

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
	"ghostcredit/native/vault"
	"ghostcredit/storage"
)

const (
	atom = "uatom"
	osmo = "uosmo"
	usd  = "uusd"
)

var (
	registryAddr  = testAddr(1)
	vaultAddr     = testAddr(2)
	depositorAddr = testAddr(3)
	ownerAddr     = testAddr(10)
	liquidator    = testAddr(20)
	swapAddr      = testAddr(30)
	badSwapAddr   = testAddr(31)
	feeAddr       = testAddr(40)
)

func testAddr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0xCC
	raw[len(raw)-1] = b
	return crypto.MustNewAddress(crypto.GhostPrefix, raw)
}

func dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

func coin(denom string, amount int64) types.Coin {
	return types.NewCoin(denom, big.NewInt(amount))
}

type priceStub struct {
	prices map[string]sdkmath.LegacyDec
	calls  map[string]int
}

func (p *priceStub) Price(denom string) (sdkmath.LegacyDec, error) {
	p.calls[denom]++
	price, ok := p.prices[denom]
	if !ok {
		return sdkmath.LegacyDec{}, common.ErrNotFound
	}
	return price, nil
}

type creditParams struct {
	cfg Config
}

func (p *creditParams) CreditConfig() (Config, error) { return p.cfg, nil }

func (p *creditParams) SetCreditConfig(cfg Config) error {
	p.cfg = cfg
	return nil
}

type vaultParams struct {
	cfg vault.Config
}

func (p *vaultParams) VaultConfig(string) (vault.Config, error) { return p.cfg, nil }

func (p *vaultParams) SetVaultConfig(_ string, cfg vault.Config) error {
	p.cfg = cfg
	return nil
}

// countingDB records how many stored entries Iterate hands out.
type countingDB struct {
	storage.Database
	visited int
}

func (c *countingDB) Iterate(prefix, start []byte, fn func(key, value []byte) bool) error {
	return c.Database.Iterate(prefix, start, func(key, value []byte) bool {
		c.visited++
		return fn(key, value)
	})
}

type fixture struct {
	reg    *Registry
	vault  *vault.Engine
	router *bank.Router
	ledger *bank.Ledger
	mgr    *state.Manager
	prices *priceStub
	params *creditParams
	events *events.Recorder
}

// newFixture wires a registry to a zero-rate uusd vault with 1,000,000 of
// liquidity. uatom (price 10, ratio 0.8) and uosmo (price 1, ratio 0.5) are
// listed as collateral. The swap target pays uusd at the oracle price; the bad
// swap target pays one uusd per unit.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, storage.NewMemDB())
}

func newFixtureOn(t *testing.T, db storage.Database) *fixture {
	t.Helper()
	mgr := state.NewManager(db)
	ledger := bank.NewLedger(mgr)
	f := &fixture{
		ledger: ledger,
		mgr:    mgr,
		prices: &priceStub{
			prices: map[string]sdkmath.LegacyDec{atom: dec("10"), osmo: dec("1"), usd: dec("1")},
			calls:  map[string]int{},
		},
		events: &events.Recorder{},
	}
	cfg := DefaultConfig()
	cfg.FeeAddress = feeAddr
	f.params = &creditParams{cfg: cfg}

	f.vault = vault.NewEngine(usd, vaultAddr)
	f.vault.SetState(mgr)
	f.vault.SetBank(ledger)
	f.vault.SetNowFunc(func() int64 { return 1_000 })
	f.vault.SetParams(&vaultParams{cfg: vault.Config{
		Model:   vault.InterestModel{Base: dec("0"), Step1: dec("0"), Step2: dec("0"), Target: dec("0.8")},
		FeeRate: dec("0"),
	}})
	require.NoError(t, ledger.Mint(depositorAddr, coin(usd, 1_000_000)))
	_, err := f.vault.Deposit(depositorAddr, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.NoError(t, f.vault.SetBorrowerLimit(registryAddr, big.NewInt(1_000_000)))

	router := bank.NewRouter()
	f.router = router
	require.NoError(t, ledger.Mint(swapAddr, coin(usd, 1_000_000)))
	require.NoError(t, ledger.Mint(badSwapAddr, coin(usd, 1_000_000)))
	router.Register(swapAddr, swapHandler(ledger, swapAddr, f.prices))
	router.Register(badSwapAddr, bank.HandlerFunc(func(sender crypto.Address, _ []byte, funds types.Coins) error {
		var out big.Int
		for _, c := range funds {
			out.Add(&out, c.Amount)
		}
		return ledger.Transfer(badSwapAddr, sender, types.NewCoin(usd, &out))
	}))

	f.reg = NewRegistry(registryAddr)
	f.reg.SetState(mgr)
	f.reg.SetCustody(bank.NewCustody(ledger, router))
	f.reg.SetOracle(f.prices)
	f.reg.SetParams(f.params)
	f.reg.SetEmitter(f.events)
	require.NoError(t, f.reg.RegisterVault(f.vault))
	require.NoError(t, f.reg.SetCollateralRatio(atom, dec("0.8")))
	require.NoError(t, f.reg.SetCollateralRatio(osmo, dec("0.5")))
	return f
}

// swapHandler converts every received coin into uusd at the stub price.
func swapHandler(ledger *bank.Ledger, self crypto.Address, prices *priceStub) bank.Handler {
	return bank.HandlerFunc(func(sender crypto.Address, _ []byte, funds types.Coins) error {
		total := sdkmath.LegacyZeroDec()
		for _, c := range funds {
			total = total.Add(sdkmath.LegacyNewDecFromBigInt(c.Amount).Mul(prices.prices[c.Denom]))
		}
		return ledger.Transfer(self, sender, types.NewCoin(usd, total.TruncateInt().BigInt()))
	})
}

// openAccount creates an account for ownerAddr funded with coins.
func (f *fixture) openAccount(t *testing.T, coins ...types.Coin) crypto.Address {
	t.Helper()
	rec, err := f.reg.CreateAccount(ownerAddr, "main")
	require.NoError(t, err)
	for _, c := range coins {
		require.NoError(t, f.ledger.Mint(rec.Address, c))
	}
	return rec.Address
}

// borrowAndWithdraw draws amount uusd into the account and sends it to the
// owner, so the account holds only its collateral against the debt.
func (f *fixture) borrowAndWithdraw(t *testing.T, account crypto.Address, amount int64) {
	t.Helper()
	_, err := f.reg.Apply(ownerAddr, account, []AccountMsg{
		BorrowMsg(coin(usd, amount)),
		SendMsg(ownerAddr, coin(usd, amount)),
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, addr crypto.Address, denom string) int64 {
	t.Helper()
	bal, err := f.ledger.Balance(addr, denom)
	require.NoError(t, err)
	return bal.Int64()
}

func (f *fixture) debt(t *testing.T, account crypto.Address) int64 {
	t.Helper()
	debt, err := f.vault.DelegateDebt(registryAddr, account)
	require.NoError(t, err)
	return debt.Int64()
}

// lastEvent returns the newest recorded event of kind.
func (f *fixture) lastEvent(t *testing.T, kind string) *types.Event {
	t.Helper()
	all := f.events.Events()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].EventType() == kind {
			return all[i].(creditEvent).Event()
		}
	}
	t.Fatalf("no %s event recorded", kind)
	return nil
}

func (f *fixture) setStopOnSafe(stop bool) {
	f.params.cfg.LiquidationStopOnSafe = &stop
}
