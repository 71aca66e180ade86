package vault

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"

	"ghostcredit/native/common"
)

// SharePool tracks a fungible quantity split into proportional shares. A pool
// with no shares always has zero size.
type SharePool struct {
	Size   *big.Int
	Shares *big.Int
}

// NewSharePool returns an empty pool.
func NewSharePool() SharePool {
	return SharePool{Size: new(big.Int), Shares: new(big.Int)}
}

// Clone returns a deep copy of the pool.
func (p SharePool) Clone() SharePool {
	return SharePool{Size: common.CopyInt(p.Size), Shares: common.CopyInt(p.Shares)}
}

func (p *SharePool) ensure() {
	if p.Size == nil {
		p.Size = new(big.Int)
	}
	if p.Shares == nil {
		p.Shares = new(big.Int)
	}
}

// preview returns the shares that joining amount would mint.
func (p *SharePool) preview(amount *big.Int) (*big.Int, error) {
	p.ensure()
	if p.Shares.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	if p.Size.Sign() == 0 {
		return nil, errorsmod.Wrapf(common.ErrValidation, "pool has %s shares but no size", p.Shares)
	}
	return common.MulDiv(amount, p.Shares, p.Size)
}

// Join adds amount to the pool and returns the minted shares. The first join
// mints one share per unit.
func (p *SharePool) Join(amount *big.Int) (*big.Int, error) {
	if err := common.PositiveAmount(amount); err != nil {
		return nil, errorsmod.Wrap(err, "join")
	}
	minted, err := p.preview(amount)
	if err != nil {
		return nil, err
	}
	if minted.Sign() == 0 {
		return nil, errorsmod.Wrapf(common.ErrZeroAmount, "join %s mints no shares", amount)
	}
	p.Size.Add(p.Size, amount)
	p.Shares.Add(p.Shares, minted)
	return minted, nil
}

// Donate grows the pool size without minting shares.
func (p *SharePool) Donate(amount *big.Int) {
	p.ensure()
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.Size.Add(p.Size, amount)
}

// Leave burns shares and returns the amount they represented.
func (p *SharePool) Leave(burn *big.Int) (*big.Int, error) {
	if err := common.PositiveAmount(burn); err != nil {
		return nil, errorsmod.Wrap(err, "leave")
	}
	p.ensure()
	if burn.Cmp(p.Shares) > 0 {
		return nil, errorsmod.Wrapf(common.ErrInsufficientShares, "burn %s of %s", burn, p.Shares)
	}
	claim, err := common.MulDiv(p.Size, burn, p.Shares)
	if err != nil {
		return nil, err
	}
	p.Size.Sub(p.Size, claim)
	p.Shares.Sub(p.Shares, burn)
	return claim, nil
}

// Ownership is the amount currently represented by shares.
func (p SharePool) Ownership(shares *big.Int) (*big.Int, error) {
	if p.Shares == nil || p.Shares.Sign() == 0 || shares == nil || shares.Sign() == 0 {
		return new(big.Int), nil
	}
	return common.MulDiv(p.Size, shares, p.Shares)
}

// SharesForAmount converts amount into the shares to burn, never more than
// held. When the conversion floors to zero but amount covers the value of a
// single share, one share is burned so that dust positions can be closed.
func (p SharePool) SharesForAmount(amount, held *big.Int) (*big.Int, error) {
	if err := common.PositiveAmount(amount); err != nil {
		return nil, err
	}
	if p.Shares == nil || p.Shares.Sign() == 0 || p.Size == nil || p.Size.Sign() == 0 {
		return new(big.Int), nil
	}
	if held == nil || held.Sign() <= 0 {
		return new(big.Int), nil
	}
	burn, err := common.MulDiv(amount, p.Shares, p.Size)
	if err != nil {
		return nil, err
	}
	if burn.Cmp(held) > 0 {
		burn.Set(held)
	}
	if burn.Sign() == 0 {
		unit, err := p.Ownership(big.NewInt(1))
		if err != nil {
			return nil, err
		}
		if amount.Cmp(unit) >= 0 {
			burn.SetInt64(1)
		}
	}
	return burn, nil
}
