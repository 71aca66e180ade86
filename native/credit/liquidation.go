package credit

import (
	"math/big"
	"sort"
	"unicode/utf8"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"ghostcredit/core/types"
	"ghostcredit/crypto"
	"ghostcredit/native/common"
)

// MaxFailureReason bounds the stored and emitted text of a failed preference
// step.
const MaxFailureReason = 256

// Phase is the lifecycle position of a liquidation.
type Phase uint8

const (
	PhaseTriggered Phase = iota
	PhaseExecuting
	PhaseFinalizing
	PhaseClosed
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseTriggered:
		return "triggered"
	case PhaseExecuting:
		return "executing"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseClosed:
		return "closed"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StepSource records who queued a liquidation step.
type StepSource uint8

const (
	SourceLiquidator StepSource = iota + 1
	SourcePreference
)

func (s StepSource) String() string {
	if s == SourcePreference {
		return "preference"
	}
	return "liquidator"
}

// QueueEntry is one queued liquidation step.
type QueueEntry struct {
	Source StepSource
	Msg    LiquidateMsg
}

// LiquidationState is the persisted progress of a liquidation. Cursor indexes
// the next entry of Queue to run.
type LiquidationState struct {
	Account     crypto.Address
	Liquidator  crypto.Address
	Phase       Phase
	Queue       []QueueEntry
	Cursor      uint64
	Safe        bool
	Executed    uint64
	Skipped     uint64
	Initial     types.Coins
	InitialDebt types.Coins
	Failures    []string
}

// LiquidationResult summarizes a closed liquidation.
type LiquidationResult struct {
	Account    crypto.Address    `json:"account"`
	Liquidator crypto.Address    `json:"liquidator"`
	Executed   int               `json:"executed"`
	Skipped    int               `json:"skipped"`
	Failures   []string          `json:"failures,omitempty"`
	SpentUSD   sdkmath.LegacyDec `json:"spent_usd"`
	RepaidUSD  sdkmath.LegacyDec `json:"repaid_usd"`
	LTV        sdkmath.LegacyDec `json:"ltv"`
}

// truncateReason cuts reason to at most MaxFailureReason bytes without
// splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= MaxFailureReason {
		return reason
	}
	cut := MaxFailureReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

// Liquidate runs msgs followed by the owner's preference messages against an
// account whose adjusted LTV has reached the liquidation threshold. Any
// failure other than a preference step leaves state as it was before the call.
func (r *Registry) Liquidate(liquidator, addr crypto.Address, msgs []LiquidateMsg) (*LiquidationResult, error) {
	cfg, err := r.begin()
	if err != nil {
		return nil, err
	}
	if liquidator.IsZero() {
		return nil, errorsmod.Wrap(common.ErrValidation, "liquidator required")
	}
	if err := validateLiquidateMsgs(msgs); err != nil {
		return nil, err
	}
	rec, err := r.getAccount(addr)
	if err != nil {
		return nil, err
	}
	if _, active, err := r.getLiquidation(addr); err != nil {
		return nil, err
	} else if active {
		return nil, errorsmod.Wrapf(common.ErrValidation, "account %s is already being liquidated", addr)
	}

	base := r.state.Snapshot()
	ls, res, err := r.runLiquidation(cfg, rec, liquidator, msgs)
	if err != nil {
		if revertErr := r.state.RevertToSnapshot(base); revertErr != nil {
			r.logger.Error("revert liquidation", "account", addr.String(), "error", revertErr)
		}
		if ls != nil {
			ls.Phase = PhaseAborted
			r.emit(NewLiquidationAbortedEvent(ls, truncateReason(err.Error())))
			r.metrics.ObserveLiquidation(PhaseAborted.String())
		}
		return nil, err
	}
	r.emit(NewLiquidationClosedEvent(res))
	r.metrics.ObserveLiquidation(PhaseClosed.String())
	return res, nil
}

func (r *Registry) runLiquidation(cfg Config, rec *AccountRecord, liquidator crypto.Address, msgs []LiquidateMsg) (*LiquidationState, *LiquidationResult, error) {
	acct, err := r.evaluate(rec, NewPriceBook(r.oracle))
	if err != nil {
		return nil, nil, err
	}
	if err := acct.CheckUnsafe(cfg.LiquidationThreshold); err != nil {
		return nil, nil, err
	}

	tracked, err := r.trackedDenoms(rec)
	if err != nil {
		return nil, nil, err
	}
	ls := &LiquidationState{Account: rec.Address, Liquidator: liquidator, Phase: PhaseTriggered}
	for _, msg := range msgs {
		ls.Queue = append(ls.Queue, QueueEntry{Source: SourceLiquidator, Msg: msg})
	}
	for _, msg := range rec.Preferences.Messages {
		ls.Queue = append(ls.Queue, QueueEntry{Source: SourcePreference, Msg: msg})
	}
	if ls.Initial, err = r.balances(rec.Address, tracked); err != nil {
		return nil, nil, err
	}
	if ls.InitialDebt, err = r.debts(rec.Address); err != nil {
		return nil, nil, err
	}
	if err := r.putLiquidation(ls); err != nil {
		return nil, nil, err
	}
	r.emit(NewLiquidationTriggeredEvent(ls, acct.AdjustedLTV()))

	ls.Phase = PhaseExecuting
	for ls.Cursor < uint64(len(ls.Queue)) {
		if err := r.step(cfg, ls); err != nil {
			return ls, nil, err
		}
		if err := r.putLiquidation(ls); err != nil {
			return ls, nil, err
		}
	}

	ls.Phase = PhaseFinalizing
	if err := r.putLiquidation(ls); err != nil {
		return ls, nil, err
	}
	res, err := r.finalize(cfg, rec, ls, tracked)
	if err != nil {
		return ls, nil, err
	}
	ls.Phase = PhaseClosed
	if err := r.state.KVDelete(liquidationKey(rec.Address)); err != nil {
		return ls, nil, err
	}
	return ls, res, nil
}

// step runs the entry at the cursor and advances it. Once the account is
// safe the remaining entries are skipped, or only the preference entries when
// early exit is disabled.
func (r *Registry) step(cfg Config, ls *LiquidationState) error {
	index := int(ls.Cursor)
	entry := ls.Queue[index]
	ls.Cursor++
	if ls.Safe && entry.Source == SourcePreference {
		ls.Skipped++
		return nil
	}

	snap := r.state.Snapshot()
	err := r.runStep(cfg, ls, entry)
	r.metrics.ObserveLiquidationStep(entry.Source.String(), entry.Msg.Kind.String())
	if err != nil {
		if entry.Source == SourceLiquidator {
			return errorsmod.Wrapf(err, "liquidation step %d (%s)", index, entry.Msg.Kind)
		}
		if revertErr := r.state.RevertToSnapshot(snap); revertErr != nil {
			return revertErr
		}
		reason := truncateReason(err.Error())
		ls.Failures = append(ls.Failures, reason)
		r.logger.Warn("preference step failed",
			"account", ls.Account.String(),
			"index", index,
			"kind", entry.Msg.Kind.String(),
			"error", reason)
		r.metrics.ObservePreferenceFailure()
		r.emit(NewPreferenceFailureEvent(ls.Account, index, reason))
	} else {
		ls.Executed++
		r.emit(NewLiquidationStepEvent(ls, entry, index))
	}

	rec, err := r.getAccount(ls.Account)
	if err != nil {
		return err
	}
	acct, err := r.evaluate(rec, NewPriceBook(r.oracle))
	if err != nil {
		return err
	}
	if acct.CheckUnsafe(cfg.LiquidationThreshold) == nil {
		return nil
	}
	ls.Safe = true
	if cfg.StopOnSafe() {
		ls.Skipped += uint64(len(ls.Queue)) - ls.Cursor
		ls.Cursor = uint64(len(ls.Queue))
	}
	return nil
}

func (r *Registry) runStep(cfg Config, ls *LiquidationState, entry QueueEntry) error {
	switch entry.Msg.Kind {
	case MsgExecute:
		return r.custody.Execute(ls.Account, entry.Msg.Target, entry.Msg.Msg, entry.Msg.Funds)
	case MsgRepay:
		return r.repayFromBalance(cfg, ls, entry.Msg.Denom)
	default:
		return errorsmod.Wrapf(common.ErrValidation, "unsupported step %s", entry.Msg.Kind)
	}
}

// repayFromBalance repays the account's debt in denom out of its own
// balance. The gross amount is capped so that after fees it just covers the
// debt; fees come out of the gross first and the vault refunds any excess of
// the remainder to the account.
func (r *Registry) repayFromBalance(cfg Config, ls *LiquidationState, denom string) error {
	v, err := r.vault(denom)
	if err != nil {
		return err
	}
	bal, err := r.custody.Balance(ls.Account, denom)
	if err != nil {
		return err
	}
	if bal == nil || bal.Sign() <= 0 {
		return errorsmod.Wrapf(common.ErrZeroAmount, "account %s holds no %s", ls.Account, denom)
	}
	debt, err := v.DelegateDebt(r.address, ls.Account)
	if err != nil {
		return err
	}
	if debt == nil || debt.Sign() <= 0 {
		return errorsmod.Wrapf(common.ErrZeroDebt, "account %s owes no %s", ls.Account, denom)
	}
	gross := common.MinInt(bal, grossRepayCap(debt, cfg.FeeTotal()))
	protocolFee, err := common.MulDiv(gross, cfg.FeeLiquidation.BigInt(), decimalOne)
	if err != nil {
		return err
	}
	liquidatorFee, err := common.MulDiv(gross, cfg.FeeLiquidator.BigInt(), decimalOne)
	if err != nil {
		return err
	}
	if protocolFee.Sign() > 0 {
		if err := r.custody.Send(ls.Account, cfg.FeeAddress, types.Coins{types.NewCoin(denom, protocolFee)}); err != nil {
			return err
		}
	}
	if liquidatorFee.Sign() > 0 {
		if err := r.custody.Send(ls.Account, ls.Liquidator, types.Coins{types.NewCoin(denom, liquidatorFee)}); err != nil {
			return err
		}
	}
	amount := new(big.Int).Sub(gross, protocolFee)
	amount.Sub(amount, liquidatorFee)
	if amount.Sign() <= 0 {
		return nil
	}
	account := ls.Account
	_, err = v.Repay(r.address, &account, account, amount)
	return err
}

// grossRepayCap is ceil(debt / (1 - feeTotal)).
func grossRepayCap(debt *big.Int, feeTotal sdkmath.LegacyDec) *big.Int {
	keep := new(big.Int).Sub(decimalOne, feeTotal.BigInt())
	if keep.Sign() <= 0 {
		return new(big.Int).Set(debt)
	}
	num := new(big.Int).Mul(debt, decimalOne)
	num.Add(num, keep)
	num.Sub(num, big.NewInt(1))
	return num.Quo(num, keep)
}

// trackedDenoms are the denoms whose balance changes are accounted for in
// finalization: listed collaterals, vault denoms and the owner's ordering.
func (r *Registry) trackedDenoms(rec *AccountRecord) ([]string, error) {
	ratios, err := r.loadRatios()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, entry := range ratios {
		set[entry.Denom] = struct{}{}
	}
	for denom := range r.vaults {
		set[denom] = struct{}{}
	}
	for _, denom := range rec.Preferences.Order {
		set[denom] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for denom := range set {
		out = append(out, denom)
	}
	sort.Strings(out)
	return out, nil
}

func (r *Registry) balances(addr crypto.Address, denoms []string) (types.Coins, error) {
	out := make(types.Coins, 0, len(denoms))
	for _, denom := range denoms {
		bal, err := r.custody.Balance(addr, denom)
		if err != nil {
			return nil, err
		}
		out = append(out, types.NewCoin(denom, common.CopyInt(bal)))
	}
	return out, nil
}

func (r *Registry) debts(addr crypto.Address) (types.Coins, error) {
	denoms := r.vaultDenoms()
	out := make(types.Coins, 0, len(denoms))
	for _, denom := range denoms {
		debt, err := r.vaults[denom].DelegateDebt(r.address, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, types.NewCoin(denom, common.CopyInt(debt)))
	}
	return out, nil
}

// finalize checks the disposal order and slippage of the whole liquidation
// using prices read once here.
func (r *Registry) finalize(cfg Config, rec *AccountRecord, ls *LiquidationState, tracked []string) (*LiquidationResult, error) {
	final, err := r.balances(ls.Account, tracked)
	if err != nil {
		return nil, err
	}
	finalDebt, err := r.debts(ls.Account)
	if err != nil {
		return nil, err
	}
	if err := checkDisposalOrder(rec.Preferences.Order, ls.Initial, final); err != nil {
		return nil, err
	}

	book := NewPriceBook(r.oracle)
	spent := sdkmath.LegacyZeroDec()
	for _, coin := range final {
		delta := new(big.Int).Sub(ls.Initial.AmountOf(coin.Denom), coin.Amount)
		if delta.Sign() == 0 {
			continue
		}
		value, err := book.Value(coin.Denom, delta)
		if err != nil {
			return nil, err
		}
		spent = spent.Add(value)
	}
	repaid := sdkmath.LegacyZeroDec()
	for _, coin := range finalDebt {
		delta := new(big.Int).Sub(ls.InitialDebt.AmountOf(coin.Denom), coin.Amount)
		if delta.Sign() <= 0 {
			continue
		}
		value, err := book.Value(coin.Denom, delta)
		if err != nil {
			return nil, err
		}
		repaid = repaid.Add(value)
	}
	if spent.IsPositive() {
		slip := checkedRatio(spent.Sub(repaid), spent)
		if spent.Sub(repaid).IsPositive() && slip.GT(cfg.LiquidationMaxSlip) {
			return nil, errorsmod.Wrapf(common.ErrSlippageExceeded, "spent %s usd, repaid %s usd, slippage %s > %s",
				spent, repaid, slip, cfg.LiquidationMaxSlip)
		}
	}

	acct, err := r.evaluate(rec, book)
	if err != nil {
		return nil, err
	}
	if err := r.syncExposure(rec, heldDenoms(acct)); err != nil {
		return nil, err
	}
	if err := r.putAccount(rec); err != nil {
		return nil, err
	}
	return &LiquidationResult{
		Account:    ls.Account,
		Liquidator: ls.Liquidator,
		Executed:   int(ls.Executed),
		Skipped:    int(ls.Skipped),
		Failures:   append([]string(nil), ls.Failures...),
		SpentUSD:   spent,
		RepaidUSD:  repaid,
		LTV:        acct.AdjustedLTV(),
	}, nil
}

// checkDisposalOrder rejects a liquidation that spent a denom while a denom
// ranked ahead of it still holds a balance. Unlisted denoms rank after every
// listed one; an empty order imposes nothing.
func checkDisposalOrder(order []string, initial, final types.Coins) error {
	if len(order) == 0 {
		return nil
	}
	rank := make(map[string]int, len(order))
	for i, denom := range order {
		rank[denom] = i
	}
	rankOf := func(denom string) int {
		if i, ok := rank[denom]; ok {
			return i
		}
		return len(order)
	}
	for _, coin := range final {
		if initial.AmountOf(coin.Denom).Cmp(coin.Amount) <= 0 {
			continue
		}
		spentRank := rankOf(coin.Denom)
		for _, ahead := range order[:spentRank] {
			if left := final.AmountOf(ahead); left.Sign() > 0 {
				return errorsmod.Wrapf(common.ErrLiquidationOrder, "spent %s while %s%s remains", coin.Denom, left, ahead)
			}
		}
	}
	return nil
}
