package params

const (
	// ParamsKeyPauses stores the module pause toggles.
	ParamsKeyPauses = "system/pauses"
	// ParamsKeyCredit stores the credit registry configuration.
	ParamsKeyCredit = "credit/config"
	// paramsKeyVaultPrefix prefixes the per-denom vault configuration.
	paramsKeyVaultPrefix = "vault/config/"
)

// VaultKey returns the parameter name of the vault config for denom.
func VaultKey(denom string) string {
	return paramsKeyVaultPrefix + denom
}
