package vault

import (
	"log/slog"
	"math/big"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"ghostcredit/core/events"
	"ghostcredit/core/types"
	"ghostcredit/crypto"
	"ghostcredit/native/common"
	"ghostcredit/observability/metrics"
)

// Bank moves vault denom balances between addresses.
type Bank interface {
	Balance(addr crypto.Address, denom string) (*big.Int, error)
	Transfer(from, to crypto.Address, coin types.Coin) error
}

// Engine runs a single-denom lending vault: depositors join a deposit pool,
// whitelisted borrowers draw from it against a governance limit, and interest
// accrues on the debt pool before every balance-affecting operation.
type Engine struct {
	denom   string
	address crypto.Address
	state   engineState
	params  configStore
	bank    Bank
	pauses  common.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.VaultMetrics
	nowFn   func() int64
}

// NewEngine constructs a vault for denom whose funds are held by address.
func NewEngine(denom string, address crypto.Address) *Engine {
	return &Engine{
		denom:   strings.TrimSpace(denom),
		address: address,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		metrics: metrics.Vault(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetParams wires the governance parameter store holding the vault config.
func (e *Engine) SetParams(params configStore) {
	if e == nil {
		return
	}
	e.params = params
}

func (e *Engine) SetBank(bank Bank) {
	if e == nil {
		return
	}
	e.bank = bank
}

func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With(slog.String("component", "vault"), slog.String("denom", e.denom))
}

// SetNowFunc overrides the clock used for interest accrual. Values are unix
// seconds.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

// Denom returns the vault denomination.
func (e *Engine) Denom() string { return e.denom }

// Address returns the account holding the vault liquidity.
func (e *Engine) Address() crypto.Address { return e.address }

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errorsmod.Wrap(common.ErrValidation, "vault engine: state not configured")
	}
	if e.bank == nil {
		return errorsmod.Wrap(common.ErrValidation, "vault engine: bank not configured")
	}
	return nil
}

func (e *Engine) config() (Config, error) {
	var cfg Config
	if e.params != nil {
		loaded, err := e.params.VaultConfig(e.denom)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

// begin runs the guards shared by every mutating entry point and returns the
// state accrued to the current time.
func (e *Engine) begin() (*State, Config, error) {
	if err := e.ready(); err != nil {
		return nil, Config{}, err
	}
	if err := common.Guard(e.pauses, common.ModuleVault); err != nil {
		return nil, Config{}, err
	}
	cfg, err := e.config()
	if err != nil {
		return nil, Config{}, err
	}
	st, err := e.loadState()
	if err != nil {
		return nil, Config{}, err
	}
	if err := e.accrue(st, cfg); err != nil {
		return nil, Config{}, err
	}
	return st, cfg, nil
}

func (e *Engine) finish(st *State) error {
	if err := e.putState(st); err != nil {
		return err
	}
	u, _ := Utilization(st.Debt.Size, st.Deposit.Size).Float64()
	e.metrics.SetPools(e.denom, st.Deposit.Size, st.Debt.Size, u)
	return nil
}

func (e *Engine) liquidity() (*big.Int, error) {
	bal, err := e.bank.Balance(e.address, e.denom)
	if err != nil {
		return nil, err
	}
	return common.CopyInt(bal), nil
}

// Deposit moves amount from depositor into the vault and mints deposit shares.
func (e *Engine) Deposit(depositor crypto.Address, amount *big.Int) (minted *big.Int, err error) {
	defer func() { e.metrics.ObserveOperation(e.denom, "deposit", err) }()
	if err := common.PositiveAmount(amount); err != nil {
		return nil, err
	}
	st, _, err := e.begin()
	if err != nil {
		return nil, err
	}
	minted, err = st.Deposit.Join(amount)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(depositor, e.address, types.NewCoin(e.denom, amount)); err != nil {
		return nil, err
	}
	if err := e.creditDepositor(depositor, minted); err != nil {
		return nil, err
	}
	if err := e.finish(st); err != nil {
		return nil, err
	}
	e.emit(NewDepositEvent(e.denom, depositor, amount, minted))
	return minted, nil
}

// Withdraw burns deposit shares and pays out their current value, provided the
// vault holds enough idle liquidity.
func (e *Engine) Withdraw(depositor crypto.Address, shares *big.Int) (claim *big.Int, err error) {
	defer func() { e.metrics.ObserveOperation(e.denom, "withdraw", err) }()
	if err := common.PositiveAmount(shares); err != nil {
		return nil, err
	}
	st, _, err := e.begin()
	if err != nil {
		return nil, err
	}
	held, err := e.depositorShares(depositor)
	if err != nil {
		return nil, err
	}
	if shares.Cmp(held) > 0 {
		return nil, errorsmod.Wrapf(common.ErrInsufficientShares, "withdraw %s of %s", shares, held)
	}
	preview, err := st.Deposit.Ownership(shares)
	if err != nil {
		return nil, err
	}
	available, err := e.liquidity()
	if err != nil {
		return nil, err
	}
	if preview.Cmp(available) > 0 {
		return nil, errorsmod.Wrapf(common.ErrInsufficientLiquidity, "withdraw %s, available %s", preview, available)
	}
	claim, err = st.Deposit.Leave(shares)
	if err != nil {
		return nil, err
	}
	if claim.Sign() > 0 {
		if err := e.bank.Transfer(e.address, depositor, types.NewCoin(e.denom, claim)); err != nil {
			return nil, err
		}
	}
	if err := e.putShares(depositorKey(e.denom, depositor), held.Sub(held, shares)); err != nil {
		return nil, err
	}
	if err := e.finish(st); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawEvent(e.denom, depositor, shares, claim))
	return claim, nil
}

// Borrow draws amount for a whitelisted borrower and sends it to recipient.
// When delegate is set the new debt is also tracked under that delegate.
func (e *Engine) Borrow(borrower crypto.Address, delegate *crypto.Address, amount *big.Int, recipient crypto.Address) (minted *big.Int, err error) {
	defer func() { e.metrics.ObserveOperation(e.denom, "borrow", err) }()
	if err := common.PositiveAmount(amount); err != nil {
		return nil, err
	}
	st, _, err := e.begin()
	if err != nil {
		return nil, err
	}
	rec, err := e.getBorrower(borrower)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errorsmod.Wrapf(common.ErrUnauthorized, "borrower %s is not whitelisted", borrower)
	}
	owed, err := st.Debt.Ownership(rec.Shares)
	if err != nil {
		return nil, err
	}
	headroom := new(big.Int).Sub(rec.Limit, owed)
	if amount.Cmp(headroom) > 0 {
		return nil, errorsmod.Wrapf(common.ErrBorrowLimit, "borrow %s, owed %s, limit %s", amount, owed, rec.Limit)
	}
	available, err := e.liquidity()
	if err != nil {
		return nil, err
	}
	if amount.Cmp(available) > 0 {
		return nil, errorsmod.Wrapf(common.ErrInsufficientLiquidity, "borrow %s, available %s", amount, available)
	}
	minted, err = st.Debt.Join(amount)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.address, recipient, types.NewCoin(e.denom, amount)); err != nil {
		return nil, err
	}

	rec.Shares.Add(rec.Shares, minted)
	if delegate != nil {
		rec.DelegatedShares.Add(rec.DelegatedShares, minted)
		held, err := e.delegateShares(borrower, *delegate)
		if err != nil {
			return nil, err
		}
		if err := e.putShares(delegateKey(e.denom, borrower, *delegate), held.Add(held, minted)); err != nil {
			return nil, err
		}
	}
	if err := e.putBorrower(rec); err != nil {
		return nil, err
	}
	if err := e.finish(st); err != nil {
		return nil, err
	}
	e.emit(NewBorrowEvent(e.denom, borrower, delegate, recipient, amount, minted))
	return minted, nil
}

// Repay takes amount from payer towards the debt of borrower (or of its
// delegate). Only whole shares are burned, so the cleared debt can be less than
// amount; the difference is refunded to payer and the cleared amount is
// returned.
//
// Paying exactly the reported debt of a position that is not the whole pool
// can leave one share behind: with a pool of 1000 over 3 shares, 666 owed on
// 2 shares burns floor(666*3/1000) = 1. The remaining share is cleared by a
// second call for its reported value, which burns the last share.
func (e *Engine) Repay(borrower crypto.Address, delegate *crypto.Address, payer crypto.Address, amount *big.Int) (claim *big.Int, err error) {
	defer func() { e.metrics.ObserveOperation(e.denom, "repay", err) }()
	if err := common.PositiveAmount(amount); err != nil {
		return nil, err
	}
	st, _, err := e.begin()
	if err != nil {
		return nil, err
	}
	if st.Debt.Size.Sign() == 0 {
		return nil, errorsmod.Wrap(common.ErrZeroDebt, "vault has no outstanding debt")
	}
	rec, err := e.getBorrower(borrower)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errorsmod.Wrapf(common.ErrNotFound, "borrower %s", borrower)
	}
	var held *big.Int
	if delegate != nil {
		held, err = e.delegateShares(borrower, *delegate)
		if err != nil {
			return nil, err
		}
	} else {
		held = rec.DirectShares()
	}
	if held.Sign() == 0 {
		return nil, errorsmod.Wrapf(common.ErrZeroDebt, "borrower %s", borrower)
	}
	burn, err := st.Debt.SharesForAmount(amount, held)
	if err != nil {
		return nil, err
	}
	if burn.Sign() == 0 {
		return nil, errorsmod.Wrapf(common.ErrZeroAmount, "repay %s is below the value of one share", amount)
	}
	claim, err = st.Debt.Leave(burn)
	if err != nil {
		return nil, err
	}

	if err := e.bank.Transfer(payer, e.address, types.NewCoin(e.denom, amount)); err != nil {
		return nil, err
	}
	refund := new(big.Int).Sub(amount, claim)
	if refund.Sign() > 0 {
		if err := e.bank.Transfer(e.address, payer, types.NewCoin(e.denom, refund)); err != nil {
			return nil, err
		}
	}

	rec.Shares.Sub(rec.Shares, burn)
	if delegate != nil {
		rec.DelegatedShares.Sub(rec.DelegatedShares, burn)
		if err := e.putShares(delegateKey(e.denom, borrower, *delegate), held.Sub(held, burn)); err != nil {
			return nil, err
		}
	}
	if err := e.putBorrower(rec); err != nil {
		return nil, err
	}
	if err := e.finish(st); err != nil {
		return nil, err
	}
	e.emit(NewRepayEvent(e.denom, borrower, delegate, payer, claim, burn, refund))
	return claim, nil
}

// DelegateDebt returns the current debt tracked under delegate.
func (e *Engine) DelegateDebt(borrower, delegate crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	st, _, err := e.view()
	if err != nil {
		return nil, err
	}
	held, err := e.delegateShares(borrower, delegate)
	if err != nil {
		return nil, err
	}
	return st.Debt.Ownership(held)
}

// BorrowerDebt returns the total current debt of borrower, delegates included.
func (e *Engine) BorrowerDebt(borrower crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	st, _, err := e.view()
	if err != nil {
		return nil, err
	}
	rec, err := e.getBorrower(borrower)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return new(big.Int), nil
	}
	return st.Debt.Ownership(rec.Shares)
}

// DepositorPosition returns the shares held by depositor and their value.
func (e *Engine) DepositorPosition(depositor crypto.Address) (shares, amount *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	st, _, err := e.view()
	if err != nil {
		return nil, nil, err
	}
	shares, err = e.depositorShares(depositor)
	if err != nil {
		return nil, nil, err
	}
	amount, err = st.Deposit.Ownership(shares)
	if err != nil {
		return nil, nil, err
	}
	return shares, amount, nil
}

// Borrowers lists whitelisted borrowers with their current debt in address
// order, starting after cursor. At most MaxPageSize entries are returned; next
// is the cursor of the following page, zero when there is none.
func (e *Engine) Borrowers(cursor crypto.Address, limit uint32) (views []BorrowerView, next crypto.Address, err error) {
	if err := e.ready(); err != nil {
		return nil, crypto.Address{}, err
	}
	st, _, err := e.view()
	if err != nil {
		return nil, crypto.Address{}, err
	}
	size := pageLimit(limit)
	prefix := borrowerPrefix(e.denom)
	var start []byte
	if !cursor.IsZero() {
		start = append(append(append([]byte(nil), prefix...), cursor.Bytes()...), 0)
	}
	var iterErr error
	err = e.state.KVIterate(prefix, start, func(_, value []byte) bool {
		rec := new(BorrowerRecord)
		if iterErr = rlp.DecodeBytes(value, rec); iterErr != nil {
			return false
		}
		rec.ensure()
		var debt *big.Int
		if debt, iterErr = st.Debt.Ownership(rec.Shares); iterErr != nil {
			return false
		}
		views = append(views, BorrowerView{Address: rec.Address, Shares: rec.Shares, Debt: debt, Limit: rec.Limit})
		return len(views) <= size
	})
	if err != nil {
		return nil, crypto.Address{}, err
	}
	if iterErr != nil {
		return nil, crypto.Address{}, iterErr
	}
	if len(views) > size {
		views = views[:size]
		next = views[size-1].Address
	}
	return views, next, nil
}

// Status is a point-in-time view of the vault accrued to now.
type Status struct {
	Denom           string            `json:"denom"`
	Address         crypto.Address    `json:"address"`
	DepositSize     *big.Int          `json:"deposit_size"`
	DepositShares   *big.Int          `json:"deposit_shares"`
	DebtSize        *big.Int          `json:"debt_size"`
	DebtShares      *big.Int          `json:"debt_shares"`
	Liquidity       *big.Int          `json:"liquidity"`
	PendingInterest *big.Int          `json:"pending_interest"`
	PendingFees     []PendingFee      `json:"pending_fees,omitempty"`
	Utilization     sdkmath.LegacyDec `json:"utilization"`
	BorrowRate      sdkmath.LegacyDec `json:"borrow_rate"`
	SupplyRate      sdkmath.LegacyDec `json:"supply_rate"`
	LastUpdated     uint64            `json:"last_updated"`
}

// Status reports pool sizes and the current borrow and supply rates.
func (e *Engine) Status() (*Status, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	st, cfg, err := e.view()
	if err != nil {
		return nil, err
	}
	available, err := e.liquidity()
	if err != nil {
		return nil, err
	}
	u := Utilization(st.Debt.Size, st.Deposit.Size)
	borrowRate := cfg.Model.Rate(u)
	supplyRate := borrowRate.Mul(u).Mul(sdkmath.LegacyOneDec().Sub(cfg.FeeRate))
	return &Status{
		Denom:           e.denom,
		Address:         e.address,
		DepositSize:     st.Deposit.Size,
		DepositShares:   st.Deposit.Shares,
		DebtSize:        st.Debt.Size,
		DebtShares:      st.Debt.Shares,
		Liquidity:       available,
		PendingInterest: st.Pending.Interest,
		PendingFees:     st.Pending.Fees,
		Utilization:     u,
		BorrowRate:      borrowRate,
		SupplyRate:      supplyRate,
		LastUpdated:     st.LastUpdated,
	}, nil
}
