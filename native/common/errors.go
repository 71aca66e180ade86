package common

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace groups every error registered by the vault and credit engines.
const Codespace = "ghostcredit"

// Code 1 is reserved for internal failures.
var (
	ErrValidation            = errorsmod.Register(Codespace, 2, "validation error")
	ErrZeroAmount            = errorsmod.Register(Codespace, 3, "amount must be positive")
	ErrZeroDebt              = errorsmod.Register(Codespace, 4, "no outstanding debt")
	ErrInsufficientLiquidity = errorsmod.Register(Codespace, 5, "insufficient liquidity")
	ErrInsufficientShares    = errorsmod.Register(Codespace, 6, "insufficient shares")
	ErrBorrowLimit           = errorsmod.Register(Codespace, 7, "borrow limit exceeded")
	ErrUnauthorized          = errorsmod.Register(Codespace, 8, "unauthorized")
	ErrUnsafePosition        = errorsmod.Register(Codespace, 9, "position is unsafe")
	ErrSafePosition          = errorsmod.Register(Codespace, 10, "position is safe")
	ErrSlippageExceeded      = errorsmod.Register(Codespace, 11, "liquidation slippage exceeded")
	ErrLiquidationOrder      = errorsmod.Register(Codespace, 12, "liquidation disposal order violated")
	ErrPreferenceStepFailure = errorsmod.Register(Codespace, 13, "preference step failed")
	ErrCapacityExceeded      = errorsmod.Register(Codespace, 14, "capacity exceeded")
	ErrLiveExposure          = errorsmod.Register(Codespace, 15, "denom has live exposure")
	ErrNotFound              = errorsmod.Register(Codespace, 16, "not found")
	ErrPaused                = errorsmod.Register(Codespace, 17, "module paused")
)

var registered = []*errorsmod.Error{
	ErrValidation,
	ErrZeroAmount,
	ErrZeroDebt,
	ErrInsufficientLiquidity,
	ErrInsufficientShares,
	ErrBorrowLimit,
	ErrUnauthorized,
	ErrUnsafePosition,
	ErrSafePosition,
	ErrSlippageExceeded,
	ErrLiquidationOrder,
	ErrPreferenceStepFailure,
	ErrCapacityExceeded,
	ErrLiveExposure,
	ErrNotFound,
	ErrPaused,
}

// CodeOf returns the registered error at the root of err, or nil when err was
// not produced from one of the registered codes.
func CodeOf(err error) *errorsmod.Error {
	if err == nil {
		return nil
	}
	for _, candidate := range registered {
		if errors.Is(err, candidate) {
			return candidate
		}
	}
	return nil
}
