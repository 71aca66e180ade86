package oracle

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"ghostcredit/native/common"
)

func TestStaticPrices(t *testing.T) {
	o, err := NewStatic(map[string]sdkmath.LegacyDec{
		"uatom": sdkmath.LegacyMustNewDecFromStr("9.5"),
		"ujunk": sdkmath.LegacyZeroDec(),
	})
	require.NoError(t, err)

	price, err := o.Price("uatom")
	require.NoError(t, err)
	require.True(t, price.Equal(sdkmath.LegacyMustNewDecFromStr("9.5")))

	price, err = o.Price("ujunk")
	require.NoError(t, err)
	require.True(t, price.IsZero())

	_, err = o.Price("uosmo")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.ErrorIs(t, o.Set("uatom", sdkmath.LegacyMustNewDecFromStr("-1")), common.ErrValidation)
}

type failingOracle struct{}

func (failingOracle) Price(string) (sdkmath.LegacyDec, error) {
	return sdkmath.LegacyDec{}, errors.New("feed offline")
}

func TestChainFallsThroughMissingPrices(t *testing.T) {
	primary, err := NewStatic(map[string]sdkmath.LegacyDec{"uatom": sdkmath.LegacyNewDec(10)})
	require.NoError(t, err)
	secondary, err := NewStatic(map[string]sdkmath.LegacyDec{"uatom": sdkmath.LegacyNewDec(11), "uosmo": sdkmath.LegacyNewDec(2)})
	require.NoError(t, err)

	chain := Chain{primary, secondary}
	price, err := chain.Price("uatom")
	require.NoError(t, err)
	require.True(t, price.Equal(sdkmath.LegacyNewDec(10)))

	price, err = chain.Price("uosmo")
	require.NoError(t, err)
	require.True(t, price.Equal(sdkmath.LegacyNewDec(2)))

	_, err = chain.Price("uusd")
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = Chain{failingOracle{}, secondary}.Price("uosmo")
	require.EqualError(t, err, "feed offline")
}
