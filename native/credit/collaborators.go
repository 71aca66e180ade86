package credit

import (
	"math/big"

	sdkmath "cosmossdk.io/math"

	"ghostcredit/core/types"
	"ghostcredit/crypto"
)

// Oracle quotes the USD price of one base unit of denom. A zero price is a
// legitimate answer.
type Oracle interface {
	Price(denom string) (sdkmath.LegacyDec, error)
}

// Custody holds the funds of credit accounts. The registry never holds
// account funds itself.
type Custody interface {
	Balance(account crypto.Address, denom string) (*big.Int, error)
	Send(from, to crypto.Address, coins types.Coins) error
	Execute(account, target crypto.Address, msg []byte, funds types.Coins) error
}

// Vault is a borrowable pool the registry draws from on behalf of accounts.
type Vault interface {
	Denom() string
	Borrow(borrower crypto.Address, delegate *crypto.Address, amount *big.Int, recipient crypto.Address) (*big.Int, error)
	Repay(borrower crypto.Address, delegate *crypto.Address, payer crypto.Address, amount *big.Int) (*big.Int, error)
	DelegateDebt(borrower, delegate crypto.Address) (*big.Int, error)
}

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVIterate(prefix, start []byte, fn func(key, value []byte) bool) error
	Snapshot() int
	RevertToSnapshot(id int) error
}

type configStore interface {
	CreditConfig() (Config, error)
	SetCreditConfig(cfg Config) error
}
