package config

// CreditGenesis carries the registry parameters. Decimal fields are strings
// such as "0.01"; empty fields take the registry defaults.
type CreditGenesis struct {
	FeeLiquidation        string `toml:"FeeLiquidation"`
	FeeLiquidator         string `toml:"FeeLiquidator"`
	FeeAddress            string `toml:"FeeAddress"`
	LiquidationMaxSlip    string `toml:"LiquidationMaxSlip"`
	LiquidationThreshold  string `toml:"LiquidationThreshold"`
	AdjustmentThreshold   string `toml:"AdjustmentThreshold"`
	MaxCollateralRatios   uint32 `toml:"MaxCollateralRatios"`
	LiquidationStopOnSafe *bool  `toml:"LiquidationStopOnSafe"`
}

// InterestModelGenesis mirrors the kinked rate curve of a vault.
type InterestModelGenesis struct {
	Base   string `toml:"Base"`
	Step1  string `toml:"Step1"`
	Step2  string `toml:"Step2"`
	Target string `toml:"Target"`
}

// BorrowerGenesis grants a borrower a limit in vault denom units.
type BorrowerGenesis struct {
	Address string `toml:"Address"`
	Limit   string `toml:"Limit"`
}

// VaultGenesis declares one vault and its borrowers.
type VaultGenesis struct {
	Denom        string               `toml:"Denom"`
	Address      string               `toml:"Address"`
	Model        InterestModelGenesis `toml:"Model"`
	FeeRate      string               `toml:"FeeRate"`
	FeeRecipient string               `toml:"FeeRecipient"`
	Borrowers    []BorrowerGenesis    `toml:"Borrowers"`
}

type CollateralRatioGenesis struct {
	Denom string `toml:"Denom"`
	Ratio string `toml:"Ratio"`
}

// BalanceGenesis mints Amount of Denom to Address at startup.
type BalanceGenesis struct {
	Address string `toml:"Address"`
	Denom   string `toml:"Denom"`
	Amount  string `toml:"Amount"`
}

// AccountGenesis opens a credit account for Owner.
type AccountGenesis struct {
	Owner string `toml:"Owner"`
	Tag   string `toml:"Tag"`
}
