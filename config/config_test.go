package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"ghostcredit/crypto"
)

func testAddress(b byte) string {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0x42
	raw[len(raw)-1] = b
	return crypto.MustNewAddress(crypto.GhostPrefix, raw).String()
}

func sampleGenesis() string {
	return fmt.Sprintf(`RegistryAddress = "%s"

[Credit]
FeeLiquidation = "0.02"
LiquidationStopOnSafe = false

[[Vaults]]
Denom = "uusd"
Address = "%s"
FeeRate = "0.1"
FeeRecipient = "%s"

[Vaults.Model]
Step1 = "0.05"

[[Vaults.Borrowers]]
Address = "%s"
Limit = "5000000"

[[CollateralRatios]]
Denom = "uatom"
Ratio = "0.8"

[Prices]
uatom = "10.5"
uusd = "1"

[[Balances]]
Address = "%s"
Denom = "uusd"
Amount = "1000000"

[[Accounts]]
Owner = "%s"
Tag = "main"

[Pauses]
credit = false
`, testAddress(1), testAddress(2), testAddress(3), testAddress(1), testAddress(4), testAddress(4))
}

func writeGenesis(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesGenesis(t *testing.T) {
	g, err := Load(writeGenesis(t, sampleGenesis()))
	require.NoError(t, err)

	registry, err := g.Registry()
	require.NoError(t, err)
	require.Equal(t, testAddress(1), registry.String())

	creditCfg, err := g.CreditConfig()
	require.NoError(t, err)
	require.True(t, creditCfg.FeeLiquidation.Equal(sdkmath.LegacyMustNewDecFromStr("0.02")))
	require.True(t, creditCfg.FeeLiquidator.Equal(sdkmath.LegacyMustNewDecFromStr("0.01")))
	require.False(t, creditCfg.StopOnSafe())
	require.True(t, creditCfg.FeeAddress.IsZero())

	require.Len(t, g.Vaults, 1)
	vaultCfg, err := g.Vaults[0].VaultConfig()
	require.NoError(t, err)
	require.True(t, vaultCfg.FeeRate.Equal(sdkmath.LegacyMustNewDecFromStr("0.1")))
	require.True(t, vaultCfg.Model.Step1.Equal(sdkmath.LegacyMustNewDecFromStr("0.05")))
	// Unset curve points fall back to the default model.
	require.True(t, vaultCfg.Model.Target.Equal(sdkmath.LegacyMustNewDecFromStr("0.8")))

	borrowers, err := g.Vaults[0].BorrowerLimits()
	require.NoError(t, err)
	require.Len(t, borrowers, 1)
	require.Equal(t, int64(5_000_000), borrowers[0].Limit.Int64())

	prices, err := g.PriceTable()
	require.NoError(t, err)
	require.True(t, prices["uatom"].Equal(sdkmath.LegacyMustNewDecFromStr("10.5")))

	balances, err := g.OpeningBalances()
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.Equal(t, "uusd", balances[0].Denom)
	require.Len(t, g.Accounts, 1)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeGenesis(t, sampleGenesis()+"\nBogus = 1\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Bogus")
}

func TestLoadRejectsInvalidGenesis(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
	}{
		{"ratio above one", `Ratio = "0.8"`, `Ratio = "1.5"`},
		{"missing price", `uatom = "10.5"`, `uosmo = "1"`},
		{"negative balance", `Amount = "1000000"`, `Amount = "-1"`},
		{"bad fee", `FeeLiquidation = "0.02"`, `FeeLiquidation = "0.7"`},
		{"unknown pause", `credit = false`, `swap = true`},
		{"malformed decimal", `FeeRate = "0.1"`, `FeeRate = "ten"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			contents := sampleGenesis()
			require.Contains(t, contents, tc.from)
			_, err := Load(writeGenesis(t, strings.Replace(contents, tc.from, tc.to, 1)))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsDuplicateVaults(t *testing.T) {
	dup := fmt.Sprintf(`
[[Vaults]]
Denom = "uusd"
Address = "%s"
`, testAddress(9))
	_, err := Load(writeGenesis(t, sampleGenesis()+dup))
	require.ErrorContains(t, err, "duplicate vault")
}

func TestSaveRoundTrips(t *testing.T) {
	g, err := Load(writeGenesis(t, sampleGenesis()))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "out.toml")
	require.NoError(t, Save(path, g))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, g.RegistryAddress, loaded.RegistryAddress)
	require.Equal(t, g.Prices, loaded.Prices)
	require.Equal(t, g.Vaults, loaded.Vaults)
}

func TestShippedGenesisLoads(t *testing.T) {
	g, err := Load(filepath.Join("..", "services", "creditd", "genesis.toml"))
	require.NoError(t, err)
	require.Len(t, g.Vaults, 1)
	require.Len(t, g.CollateralRatios, 2)
}
