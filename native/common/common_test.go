package common

import (
	"errors"
	"math/big"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"
)

func TestMulDivFloors(t *testing.T) {
	out, err := MulDiv(big.NewInt(10), big.NewInt(3), big.NewInt(4))
	require.NoError(t, err)
	require.Equal(t, int64(7), out.Int64())
}

func TestMulDivWideIntermediate(t *testing.T) {
	ceiling := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	out, err := MulDiv(ceiling, ceiling, ceiling)
	require.NoError(t, err)
	require.Equal(t, 0, out.Cmp(ceiling))
}

func TestMulDivOverflowIsValidationError(t *testing.T) {
	ceiling := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err := MulDiv(ceiling, big.NewInt(2), big.NewInt(1))
	require.ErrorIs(t, err, ErrValidation)

	_, err = MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0))
	require.ErrorIs(t, err, ErrValidation)

	_, err = MulDiv(new(big.Int).Lsh(big.NewInt(1), 300), big.NewInt(1), big.NewInt(1))
	require.ErrorIs(t, err, ErrValidation)
}

func TestGuard(t *testing.T) {
	require.NoError(t, Guard(nil, ModuleVault))
	pauses := Pauses{ModuleVault: true}
	require.ErrorIs(t, Guard(pauses, ModuleVault), ErrPaused)
	require.NoError(t, Guard(pauses, ModuleCredit))
}

func TestCodeOf(t *testing.T) {
	wrapped := errorsmod.Wrapf(ErrBorrowLimit, "amount %d", 5)
	require.Equal(t, ErrBorrowLimit, CodeOf(wrapped))
	require.Nil(t, CodeOf(errors.New("plain")))
	require.Nil(t, CodeOf(nil))
}
