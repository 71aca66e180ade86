package vault

import (
	"log/slog"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

type feeCredit struct {
	fee    PendingFee
	minted *big.Int
}

type accrualResult struct {
	elapsed  int64
	rate     sdkmath.LegacyDec
	interest *big.Int
	fee      *big.Int
	deferred bool
	credits  []feeCredit
}

// applyAccrual advances st to now under cfg. It only touches st; crediting the
// minted fee shares to their recipients is left to the caller.
func applyAccrual(st *State, cfg Config, now int64) (*accrualResult, error) {
	st.ensure()
	res := &accrualResult{interest: new(big.Int), fee: new(big.Int), rate: sdkmath.LegacyZeroDec()}

	var nowU uint64
	if now > 0 {
		nowU = uint64(now)
	}
	if nowU > st.LastUpdated {
		res.elapsed = int64(nowU - st.LastUpdated)
	}

	u := Utilization(st.Debt.Size, st.Deposit.Size)
	res.rate = cfg.Model.Rate(u)
	interest, err := interestFor(st.Debt.Size, res.rate, res.elapsed)
	if err != nil {
		return nil, err
	}
	fee, err := feeFor(interest, cfg.FeeRate)
	if err != nil {
		return nil, err
	}
	yield := new(big.Int).Sub(interest, fee)
	res.interest, res.fee = interest, fee

	st.Debt.Donate(interest)

	if st.Deposit.Shares.Sign() == 0 {
		st.Pending.Interest.Add(st.Pending.Interest, yield)
		if fee.Sign() > 0 {
			res.deferred = true
			if !st.Pending.addPendingFee(cfg.FeeRecipient, fee) {
				st.Pending.Interest.Add(st.Pending.Interest, fee)
			}
		}
	} else {
		st.Deposit.Donate(new(big.Int).Add(yield, st.Pending.Interest))
		st.Pending.Interest = new(big.Int)

		owed := st.Pending.Fees
		if fee.Sign() > 0 {
			owed = append(owed, PendingFee{Recipient: cfg.FeeRecipient, Amount: fee})
		}
		st.Pending.Fees = nil
		for _, entry := range owed {
			if entry.Amount == nil || entry.Amount.Sign() == 0 {
				continue
			}
			minted, err := st.Deposit.preview(entry.Amount)
			if err != nil {
				return nil, err
			}
			if minted.Sign() == 0 {
				st.Deposit.Donate(entry.Amount)
				continue
			}
			if _, err := st.Deposit.Join(entry.Amount); err != nil {
				return nil, err
			}
			res.credits = append(res.credits, feeCredit{fee: entry, minted: minted})
		}
	}

	if nowU > st.LastUpdated {
		st.LastUpdated = nowU
	}
	return res, nil
}

// accrue applies interest up to the engine clock and credits fee shares.
func (e *Engine) accrue(st *State, cfg Config) error {
	res, err := applyAccrual(st, cfg, e.now())
	if err != nil {
		return err
	}
	for _, credit := range res.credits {
		if err := e.creditDepositor(credit.fee.Recipient, credit.minted); err != nil {
			return err
		}
		e.emit(NewFeeCreditedEvent(e.denom, credit.fee.Recipient, credit.fee.Amount, credit.minted))
	}
	if res.interest.Sign() > 0 {
		e.metrics.AddInterest(e.denom, res.interest)
		e.emit(NewAccrueEvent(e.denom, res.interest, res.fee, res.rate, res.elapsed))
	}
	if res.deferred {
		e.metrics.ObserveFeeDeferred(e.denom)
		e.logger.Info("vault fee deferred",
			slog.String("denom", e.denom),
			slog.String("recipient", cfg.FeeRecipient.String()),
			slog.String("fee", res.fee.String()),
			slog.Int("pending_recipients", len(st.Pending.Fees)))
		e.emit(NewFeeDeferredEvent(e.denom, cfg.FeeRecipient, res.fee, st.Pending.Interest))
	}
	return nil
}

// view returns the state as it would be after accruing to now, without
// persisting anything.
func (e *Engine) view() (*State, Config, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, Config{}, err
	}
	st, err := e.loadState()
	if err != nil {
		return nil, Config{}, err
	}
	if _, err := applyAccrual(st, cfg, e.now()); err != nil {
		return nil, Config{}, err
	}
	return st, cfg, nil
}
