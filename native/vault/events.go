package vault

import (
	"math/big"
	"strconv"

	sdkmath "cosmossdk.io/math"

	"ghostcredit/core/types"
	"ghostcredit/crypto"
)

const (
	EventTypeDeposit       = "vault.deposit"
	EventTypeWithdraw      = "vault.withdraw"
	EventTypeBorrow        = "vault.borrow"
	EventTypeRepay         = "vault.repay"
	EventTypeAccrue        = "vault.accrue"
	EventTypeFeeDeferred   = "vault.fee_deferred"
	EventTypeFeeCredited   = "vault.fee_credited"
	EventTypeBorrowerLimit = "vault.borrower_limit"
	EventTypeConfigUpdated = "vault.config_updated"
)

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event exposes the underlying payload.
func (e vaultEvent) Event() *types.Event {
	return e.evt
}

func newEvent(kind, denom string, attrs map[string]string) *types.Event {
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs["denom"] = denom
	return &types.Event{Type: kind, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewDepositEvent reports shares minted for a deposit.
func NewDepositEvent(denom string, depositor crypto.Address, amount, shares *big.Int) *types.Event {
	return newEvent(EventTypeDeposit, denom, map[string]string{
		"depositor": depositor.String(),
		"amount":    amountString(amount),
		"shares":    amountString(shares),
	})
}

// NewWithdrawEvent reports the claim paid for burned deposit shares.
func NewWithdrawEvent(denom string, depositor crypto.Address, shares, claim *big.Int) *types.Event {
	return newEvent(EventTypeWithdraw, denom, map[string]string{
		"depositor": depositor.String(),
		"shares":    amountString(shares),
		"amount":    amountString(claim),
	})
}

func NewBorrowEvent(denom string, borrower crypto.Address, delegate *crypto.Address, recipient crypto.Address, amount, shares *big.Int) *types.Event {
	attrs := map[string]string{
		"borrower":  borrower.String(),
		"recipient": recipient.String(),
		"amount":    amountString(amount),
		"shares":    amountString(shares),
	}
	if delegate != nil {
		attrs["delegate"] = delegate.String()
	}
	return newEvent(EventTypeBorrow, denom, attrs)
}

// NewRepayEvent reports the debt actually cleared, which may be less than the
// amount the payer offered.
func NewRepayEvent(denom string, borrower crypto.Address, delegate *crypto.Address, payer crypto.Address, claim, shares, refund *big.Int) *types.Event {
	attrs := map[string]string{
		"borrower": borrower.String(),
		"payer":    payer.String(),
		"amount":   amountString(claim),
		"shares":   amountString(shares),
		"refund":   amountString(refund),
	}
	if delegate != nil {
		attrs["delegate"] = delegate.String()
	}
	return newEvent(EventTypeRepay, denom, attrs)
}

func NewAccrueEvent(denom string, interest, fee *big.Int, rate sdkmath.LegacyDec, elapsed int64) *types.Event {
	return newEvent(EventTypeAccrue, denom, map[string]string{
		"interest": amountString(interest),
		"fee":      amountString(fee),
		"rate":     rate.String(),
		"elapsed":  strconv.FormatInt(elapsed, 10),
	})
}

func NewFeeDeferredEvent(denom string, recipient crypto.Address, fee, interest *big.Int) *types.Event {
	return newEvent(EventTypeFeeDeferred, denom, map[string]string{
		"recipient": recipient.String(),
		"fee":       amountString(fee),
		"interest":  amountString(interest),
	})
}

func NewFeeCreditedEvent(denom string, recipient crypto.Address, amount, shares *big.Int) *types.Event {
	return newEvent(EventTypeFeeCredited, denom, map[string]string{
		"recipient": recipient.String(),
		"amount":    amountString(amount),
		"shares":    amountString(shares),
	})
}

func NewBorrowerLimitEvent(denom string, borrower crypto.Address, limit *big.Int) *types.Event {
	return newEvent(EventTypeBorrowerLimit, denom, map[string]string{
		"borrower": borrower.String(),
		"limit":    amountString(limit),
	})
}

func NewConfigUpdatedEvent(denom, field string) *types.Event {
	return newEvent(EventTypeConfigUpdated, denom, map[string]string{"field": field})
}
