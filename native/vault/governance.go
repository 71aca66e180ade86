package vault

import (
	"log/slog"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"ghostcredit/crypto"
	"ghostcredit/native/common"
)

// SetBorrowerLimit whitelists borrower or updates its limit. Existing debt is
// untouched; a limit below the current debt only blocks further borrowing.
func (e *Engine) SetBorrowerLimit(borrower crypto.Address, limit *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if borrower.IsZero() {
		return errorsmod.Wrap(common.ErrValidation, "borrower address required")
	}
	if limit == nil || limit.Sign() < 0 {
		return errorsmod.Wrap(common.ErrValidation, "borrower limit must not be negative")
	}
	rec, err := e.getBorrower(borrower)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &BorrowerRecord{Address: borrower}
		rec.ensure()
	}
	rec.Limit = new(big.Int).Set(limit)
	if err := e.putBorrower(rec); err != nil {
		return err
	}
	e.emit(NewBorrowerLimitEvent(e.denom, borrower, limit))
	return nil
}

// SetInterestModel replaces the rate curve. Interest up to now is settled at
// the previous curve first.
func (e *Engine) SetInterestModel(model InterestModel) error {
	if err := model.Validate(); err != nil {
		return err
	}
	return e.updateConfig("model", func(cfg *Config, _ *State) error {
		cfg.Model = model
		return nil
	})
}

// SetFeeRate replaces the share of interest routed to the fee recipient.
func (e *Engine) SetFeeRate(rate sdkmath.LegacyDec) error {
	return e.updateConfig("fee_rate", func(cfg *Config, _ *State) error {
		cfg.FeeRate = rate
		return nil
	})
}

// SetFeeRecipient changes who receives future fees. Fees already deferred stay
// with the recipient that earned them.
func (e *Engine) SetFeeRecipient(recipient crypto.Address) error {
	return e.updateConfig("fee_recipient", func(cfg *Config, st *State) error {
		if st.Deposit.Shares.Sign() == 0 && !st.Pending.hasRoomFor(recipient) {
			return errorsmod.Wrapf(common.ErrCapacityExceeded, "%d recipients already hold deferred fees", len(st.Pending.Fees))
		}
		cfg.FeeRecipient = recipient
		return nil
	})
}

// SetConfig replaces the whole vault config.
func (e *Engine) SetConfig(next Config) error {
	next.EnsureDefaults()
	return e.updateConfig("config", func(cfg *Config, st *State) error {
		if st.Deposit.Shares.Sign() == 0 && !next.FeeRecipient.IsZero() && !st.Pending.hasRoomFor(next.FeeRecipient) {
			return errorsmod.Wrapf(common.ErrCapacityExceeded, "%d recipients already hold deferred fees", len(st.Pending.Fees))
		}
		*cfg = next.Clone()
		return nil
	})
}

func (e *Engine) updateConfig(field string, mutate func(*Config, *State) error) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.params == nil {
		return errorsmod.Wrap(common.ErrValidation, "vault engine: params not configured")
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	st, err := e.loadState()
	if err != nil {
		return err
	}
	if err := e.accrue(st, cfg); err != nil {
		return err
	}
	next := cfg.Clone()
	if err := mutate(&next, st); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if err := e.finish(st); err != nil {
		return err
	}
	if err := e.params.SetVaultConfig(e.denom, next); err != nil {
		return err
	}
	e.logger.Info("vault config updated",
		slog.String("field", field),
		slog.Uint64("flushed_at", st.LastUpdated))
	e.emit(NewConfigUpdatedEvent(e.denom, field))
	return nil
}
