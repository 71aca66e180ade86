package credit

import (
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"

	"ghostcredit/core/types"
	"ghostcredit/crypto"
)

const (
	EventTypeAccountCreated       = "credit.account_created"
	EventTypeAccountTransferred   = "credit.account_transferred"
	EventTypePreferencesUpdated   = "credit.preferences_updated"
	EventTypeAccountOperation     = "credit.account_operation"
	EventTypeRatioSet             = "credit.ratio_set"
	EventTypeRatioRemoved         = "credit.ratio_removed"
	EventTypeConfigUpdated        = "credit.config_updated"
	EventTypeLiquidationTriggered = "credit.liquidation_triggered"
	EventTypeLiquidationStep      = "credit.liquidation_step"
	EventTypePreferenceFailure    = "credit.preference_failure"
	EventTypeLiquidationClosed    = "credit.liquidation_closed"
	EventTypeLiquidationAborted   = "credit.liquidation_aborted"
)

type creditEvent struct {
	evt *types.Event
}

func (e creditEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Event exposes the underlying payload.
func (e creditEvent) Event() *types.Event {
	return e.evt
}

func NewAccountCreatedEvent(rec *AccountRecord) *types.Event {
	return &types.Event{Type: EventTypeAccountCreated, Attributes: map[string]string{
		"account": rec.Address.String(),
		"owner":   rec.Owner.String(),
		"tag":     rec.Tag,
	}}
}

func NewAccountTransferredEvent(account, from, to crypto.Address) *types.Event {
	return &types.Event{Type: EventTypeAccountTransferred, Attributes: map[string]string{
		"account": account.String(),
		"from":    from.String(),
		"to":      to.String(),
	}}
}

func NewPreferencesUpdatedEvent(account crypto.Address, prefs Preferences) *types.Event {
	return &types.Event{Type: EventTypePreferencesUpdated, Attributes: map[string]string{
		"account":  account.String(),
		"order":    strings.Join(prefs.Order, ","),
		"messages": strconv.Itoa(len(prefs.Messages)),
	}}
}

// NewAccountOperationEvent reports one applied owner operation.
func NewAccountOperationEvent(account crypto.Address, msg AccountMsg) *types.Event {
	attrs := map[string]string{
		"account":   account.String(),
		"operation": msg.Kind.String(),
	}
	switch msg.Kind {
	case MsgExecute:
		attrs["target"] = msg.Target.String()
		attrs["funds"] = msg.Funds.String()
	case MsgSend:
		attrs["to"] = msg.To.String()
		attrs["coin"] = msg.Coin.String()
	default:
		attrs["coin"] = msg.Coin.String()
	}
	return &types.Event{Type: EventTypeAccountOperation, Attributes: attrs}
}

func NewRatioSetEvent(denom string, ratio sdkmath.LegacyDec) *types.Event {
	return &types.Event{Type: EventTypeRatioSet, Attributes: map[string]string{
		"denom": denom,
		"ratio": ratio.String(),
	}}
}

func NewRatioRemovedEvent(denom string) *types.Event {
	return &types.Event{Type: EventTypeRatioRemoved, Attributes: map[string]string{"denom": denom}}
}

func NewConfigUpdatedEvent() *types.Event {
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: map[string]string{}}
}

func NewLiquidationTriggeredEvent(ls *LiquidationState, ltv sdkmath.LegacyDec) *types.Event {
	return &types.Event{Type: EventTypeLiquidationTriggered, Attributes: map[string]string{
		"account":    ls.Account.String(),
		"liquidator": ls.Liquidator.String(),
		"steps":      strconv.Itoa(len(ls.Queue)),
		"ltv":        ltv.String(),
	}}
}

func NewLiquidationStepEvent(ls *LiquidationState, entry QueueEntry, index int) *types.Event {
	return &types.Event{Type: EventTypeLiquidationStep, Attributes: map[string]string{
		"account": ls.Account.String(),
		"index":   strconv.Itoa(index),
		"source":  entry.Source.String(),
		"kind":    entry.Msg.Kind.String(),
	}}
}

// NewPreferenceFailureEvent reports a reverted owner preference step. The
// reason is already truncated.
func NewPreferenceFailureEvent(account crypto.Address, index int, reason string) *types.Event {
	return &types.Event{Type: EventTypePreferenceFailure, Attributes: map[string]string{
		"account": account.String(),
		"index":   strconv.Itoa(index),
		"reason":  reason,
	}}
}

func NewLiquidationClosedEvent(res *LiquidationResult) *types.Event {
	return &types.Event{Type: EventTypeLiquidationClosed, Attributes: map[string]string{
		"account":    res.Account.String(),
		"liquidator": res.Liquidator.String(),
		"executed":   strconv.Itoa(res.Executed),
		"skipped":    strconv.Itoa(res.Skipped),
		"failures":   strconv.Itoa(len(res.Failures)),
		"spent_usd":  res.SpentUSD.String(),
		"repaid_usd": res.RepaidUSD.String(),
		"ltv":        res.LTV.String(),
	}}
}

func NewLiquidationAbortedEvent(ls *LiquidationState, reason string) *types.Event {
	return &types.Event{Type: EventTypeLiquidationAborted, Attributes: map[string]string{
		"account":    ls.Account.String(),
		"liquidator": ls.Liquidator.String(),
		"cursor":     strconv.FormatUint(ls.Cursor, 10),
		"reason":     reason,
	}}
}
