package common

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
)

// MulDiv returns floor(x*y/d) computed with a 512-bit intermediate product.
// The operands and the result must fit in 256 bits.
func MulDiv(x, y, d *big.Int) (*big.Int, error) {
	if d == nil || d.Sign() == 0 {
		return nil, errorsmod.Wrap(ErrValidation, "division by zero")
	}
	ux, err := toUint256(x)
	if err != nil {
		return nil, err
	}
	uy, err := toUint256(y)
	if err != nil {
		return nil, err
	}
	ud, err := toUint256(d)
	if err != nil {
		return nil, err
	}
	out, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
	if overflow {
		return nil, errorsmod.Wrapf(ErrValidation, "overflow computing %s*%s/%s", x, y, d)
	}
	return out.ToBig(), nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, errorsmod.Wrapf(ErrValidation, "negative operand %s", v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, errorsmod.Wrapf(ErrValidation, "operand %s exceeds 256 bits", v)
	}
	return out, nil
}

// PositiveAmount validates that amount is set and strictly positive.
func PositiveAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return nil
}

// CopyInt returns a copy of v, treating nil as zero.
func CopyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// MinInt returns the smaller of a and b.
func MinInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return CopyInt(a)
	}
	return CopyInt(b)
}
