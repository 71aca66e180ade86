package vault

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"ghostcredit/native/common"
)

func pool(size, shares int64) SharePool {
	return SharePool{Size: big.NewInt(size), Shares: big.NewInt(shares)}
}

func TestSharePoolBootstrapsOneToOne(t *testing.T) {
	p := NewSharePool()
	minted, err := p.Join(big.NewInt(500))
	require.NoError(t, err)
	require.Equal(t, int64(500), minted.Int64())
	require.Equal(t, int64(500), p.Size.Int64())
	require.Equal(t, int64(500), p.Shares.Int64())
}

func TestSharePoolRejectsZeroAndOverdraw(t *testing.T) {
	p := pool(100, 10)
	_, err := p.Join(big.NewInt(0))
	require.ErrorIs(t, err, common.ErrZeroAmount)
	_, err = p.Leave(big.NewInt(0))
	require.ErrorIs(t, err, common.ErrZeroAmount)
	_, err = p.Leave(big.NewInt(11))
	require.ErrorIs(t, err, common.ErrInsufficientShares)

	// 1*10/100 floors to zero shares.
	_, err = p.Join(big.NewInt(1))
	require.ErrorIs(t, err, common.ErrZeroAmount)
	require.Equal(t, int64(100), p.Size.Int64())
}

func TestLeaveAfterJoinNeverReturnsMore(t *testing.T) {
	cases := []struct {
		size, shares, amount int64
	}{
		{0, 0, 1},
		{1000, 3, 334},
		{1000, 3, 999},
		{7, 3, 5},
		{1_000_003, 999_999, 17},
		{10, 1_000_000, 1},
		{123_456_789, 7, 123_456_790},
	}
	for _, tc := range cases {
		p := pool(tc.size, tc.shares)
		minted, err := p.Join(big.NewInt(tc.amount))
		if err != nil {
			require.ErrorIs(t, err, common.ErrZeroAmount, "case %+v", tc)
			continue
		}
		claim, err := p.Leave(minted)
		require.NoError(t, err)
		require.LessOrEqual(t, claim.Cmp(big.NewInt(tc.amount)), 0, "case %+v claimed %s", tc, claim)
	}
}

func TestOwnership(t *testing.T) {
	p := pool(1000, 3)
	owned, err := p.Ownership(big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, int64(333), owned.Int64())

	owned, err = NewSharePool().Ownership(big.NewInt(5))
	require.NoError(t, err)
	require.Zero(t, owned.Sign())
}

func TestSharesForAmountClosesDust(t *testing.T) {
	p := pool(10, 3)

	// 3*3/10 floors to zero, but 3 covers the value of one share.
	burn, err := p.SharesForAmount(big.NewInt(3), big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), burn.Int64())

	burn, err = p.SharesForAmount(big.NewInt(2), big.NewInt(1))
	require.NoError(t, err)
	require.Zero(t, burn.Sign())

	// Capped at the shares held.
	burn, err = p.SharesForAmount(big.NewInt(10), big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, int64(2), burn.Int64())
}

func TestDustSequenceFullyCloses(t *testing.T) {
	p := NewSharePool()
	_, err := p.Join(big.NewInt(10))
	require.NoError(t, err)
	p.Donate(big.NewInt(3))
	held := new(big.Int).Set(p.Shares)

	for held.Sign() > 0 {
		owed, err := p.Ownership(held)
		require.NoError(t, err)
		burn, err := p.SharesForAmount(owed, held)
		require.NoError(t, err)
		require.Positive(t, burn.Sign(), "closing %s owed must burn at least one share", owed)
		_, err = p.Leave(burn)
		require.NoError(t, err)
		held.Sub(held, burn)
	}
	require.Zero(t, p.Shares.Sign())
	require.Zero(t, p.Size.Sign())
}

func TestRepayScenarioBurnsOneShare(t *testing.T) {
	p := pool(1000, 3)
	burn, err := p.SharesForAmount(big.NewInt(334), big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, int64(1), burn.Int64())
	claim, err := p.Leave(burn)
	require.NoError(t, err)
	require.Equal(t, int64(333), claim.Int64())
}
