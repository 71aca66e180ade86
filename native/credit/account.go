package credit

import (
	"strings"
	"unicode"

	errorsmod "cosmossdk.io/errors"

	"ghostcredit/core/types"
	"ghostcredit/crypto"
	"ghostcredit/native/common"
)

const (
	MaxTagLength          = 64
	MaxPreferenceMessages = 16
	MaxAccountMessages    = 32
)

func validateTag(tag string) error {
	if len(tag) > MaxTagLength {
		return errorsmod.Wrapf(common.ErrValidation, "tag longer than %d bytes", MaxTagLength)
	}
	for _, r := range tag {
		if r == '/' || !unicode.IsPrint(r) {
			return errorsmod.Wrapf(common.ErrValidation, "tag %q contains %q", tag, r)
		}
	}
	return nil
}

// CreateAccount opens an empty account for owner. The address is derived from
// the registry, the owner, the tag and a registry-wide sequence, so repeated
// tags still yield distinct accounts.
func (r *Registry) CreateAccount(owner crypto.Address, tag string) (rec *AccountRecord, err error) {
	defer func() { r.metrics.ObserveAccountOperation("create", err) }()
	if _, err := r.begin(); err != nil {
		return nil, err
	}
	if owner.IsZero() {
		return nil, errorsmod.Wrap(common.ErrValidation, "owner required")
	}
	tag = strings.TrimSpace(tag)
	if err := validateTag(tag); err != nil {
		return nil, err
	}
	seq, err := r.nextSequence()
	if err != nil {
		return nil, err
	}
	rec = &AccountRecord{
		Owner:   owner,
		Tag:     tag,
		Address: crypto.DeriveAddress(r.address, owner, tag, seq),
	}
	if err := r.putAccount(rec); err != nil {
		return nil, err
	}
	if err := r.indexAccount(rec); err != nil {
		return nil, err
	}
	r.emit(NewAccountCreatedEvent(rec))
	return rec, nil
}

func (r *Registry) ownedAccount(caller, addr crypto.Address) (*AccountRecord, error) {
	rec, err := r.getAccount(addr)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equal(caller) {
		return nil, errorsmod.Wrapf(common.ErrUnauthorized, "%s does not own account %s", caller, addr)
	}
	return rec, nil
}

// TransferAccount hands addr to newOwner. Only the current owner may call it.
func (r *Registry) TransferAccount(caller, addr, newOwner crypto.Address) (err error) {
	defer func() { r.metrics.ObserveAccountOperation("transfer", err) }()
	if _, err := r.begin(); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return errorsmod.Wrap(common.ErrValidation, "new owner required")
	}
	rec, err := r.ownedAccount(caller, addr)
	if err != nil {
		return err
	}
	if err := r.unindexAccount(rec); err != nil {
		return err
	}
	previous := rec.Owner
	rec.Owner = newOwner
	if err := r.putAccount(rec); err != nil {
		return err
	}
	if err := r.indexAccount(rec); err != nil {
		return err
	}
	r.emit(NewAccountTransferredEvent(addr, previous, newOwner))
	return nil
}

func validateLiquidateMsgs(msgs []LiquidateMsg) error {
	for i, msg := range msgs {
		switch msg.Kind {
		case MsgExecute:
			if msg.Target.IsZero() {
				return errorsmod.Wrapf(common.ErrValidation, "step %d: execute target required", i)
			}
		case MsgRepay:
			if strings.TrimSpace(msg.Denom) == "" {
				return errorsmod.Wrapf(common.ErrValidation, "step %d: repay denom required", i)
			}
		default:
			return errorsmod.Wrapf(common.ErrValidation, "step %d: unsupported kind %s", i, msg.Kind)
		}
	}
	return nil
}

// SetPreferences replaces the liquidation preferences of addr.
func (r *Registry) SetPreferences(caller, addr crypto.Address, prefs Preferences) (err error) {
	defer func() { r.metrics.ObserveAccountOperation("preferences", err) }()
	if _, err := r.begin(); err != nil {
		return err
	}
	rec, err := r.ownedAccount(caller, addr)
	if err != nil {
		return err
	}
	if len(prefs.Messages) > MaxPreferenceMessages {
		return errorsmod.Wrapf(common.ErrCapacityExceeded, "%d preference messages, limit %d",
			len(prefs.Messages), MaxPreferenceMessages)
	}
	if len(prefs.Order) > MaxCollateralRatiosCeiling {
		return errorsmod.Wrapf(common.ErrCapacityExceeded, "%d ordered denoms, limit %d",
			len(prefs.Order), MaxCollateralRatiosCeiling)
	}
	seen := make(map[string]bool, len(prefs.Order))
	for _, denom := range prefs.Order {
		if denom == "" || seen[denom] {
			return errorsmod.Wrapf(common.ErrValidation, "order denom %q empty or repeated", denom)
		}
		seen[denom] = true
	}
	if err := validateLiquidateMsgs(prefs.Messages); err != nil {
		return err
	}
	rec.Preferences = Preferences{
		Order:    append([]string(nil), prefs.Order...),
		Messages: append([]LiquidateMsg(nil), prefs.Messages...),
	}
	if err := r.putAccount(rec); err != nil {
		return err
	}
	r.emit(NewPreferencesUpdatedEvent(addr, rec.Preferences))
	return nil
}

// Apply runs owner operations on addr in order. After the last one the
// account must remain below the adjustment threshold. A failed call leaves
// state as it was.
func (r *Registry) Apply(caller, addr crypto.Address, msgs []AccountMsg) (*CreditAccount, error) {
	cfg, err := r.begin()
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, errorsmod.Wrap(common.ErrValidation, "no operations")
	}
	if len(msgs) > MaxAccountMessages {
		return nil, errorsmod.Wrapf(common.ErrCapacityExceeded, "%d operations, limit %d", len(msgs), MaxAccountMessages)
	}
	rec, err := r.ownedAccount(caller, addr)
	if err != nil {
		return nil, err
	}
	base := r.state.Snapshot()
	acct, err := r.applyAll(cfg, rec, msgs)
	if err != nil {
		if revertErr := r.state.RevertToSnapshot(base); revertErr != nil {
			r.logger.Error("revert account operations", "account", addr.String(), "error", revertErr)
		}
		return nil, err
	}
	for _, msg := range msgs {
		r.emit(NewAccountOperationEvent(addr, msg))
	}
	return acct, nil
}

func (r *Registry) applyAll(cfg Config, rec *AccountRecord, msgs []AccountMsg) (*CreditAccount, error) {
	for i, msg := range msgs {
		err := r.applyOne(rec.Address, msg)
		r.metrics.ObserveAccountOperation(msg.Kind.String(), err)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "operation %d (%s)", i, msg.Kind)
		}
	}
	acct, err := r.evaluate(rec, NewPriceBook(r.oracle))
	if err != nil {
		return nil, err
	}
	if err := acct.CheckSafe(cfg.AdjustmentThreshold); err != nil {
		return nil, err
	}
	if err := r.syncExposure(rec, heldDenoms(acct)); err != nil {
		return nil, err
	}
	if err := r.putAccount(rec); err != nil {
		return nil, err
	}
	acct.AccountRecord = *rec
	return acct, nil
}

func (r *Registry) applyOne(addr crypto.Address, msg AccountMsg) error {
	switch msg.Kind {
	case MsgBorrow:
		if err := common.PositiveAmount(msg.Coin.Amount); err != nil {
			return err
		}
		v, err := r.vault(msg.Coin.Denom)
		if err != nil {
			return err
		}
		_, err = v.Borrow(r.address, &addr, msg.Coin.Amount, addr)
		return err
	case MsgRepay:
		if err := common.PositiveAmount(msg.Coin.Amount); err != nil {
			return err
		}
		v, err := r.vault(msg.Coin.Denom)
		if err != nil {
			return err
		}
		_, err = v.Repay(r.address, &addr, addr, msg.Coin.Amount)
		return err
	case MsgSend:
		if msg.To.IsZero() {
			return errorsmod.Wrap(common.ErrValidation, "send recipient required")
		}
		if err := common.PositiveAmount(msg.Coin.Amount); err != nil {
			return err
		}
		return r.custody.Send(addr, msg.To, types.Coins{msg.Coin})
	case MsgExecute:
		if msg.Target.IsZero() {
			return errorsmod.Wrap(common.ErrValidation, "execute target required")
		}
		return r.custody.Execute(addr, msg.Target, msg.Msg, msg.Funds)
	default:
		return errorsmod.Wrapf(common.ErrValidation, "unsupported operation %s", msg.Kind)
	}
}
