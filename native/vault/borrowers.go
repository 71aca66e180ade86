package vault

import (
	"math/big"

	"ghostcredit/crypto"
	"ghostcredit/native/common"
)

// BorrowerRecord is a whitelisted borrower. Limit is denominated in the vault
// denom and is only changed by governance. DelegatedShares is the part of
// Shares attributed to delegate sub-records.
type BorrowerRecord struct {
	Address         crypto.Address
	Shares          *big.Int
	DelegatedShares *big.Int
	Limit           *big.Int
}

func (b *BorrowerRecord) ensure() {
	if b.Shares == nil {
		b.Shares = new(big.Int)
	}
	if b.DelegatedShares == nil {
		b.DelegatedShares = new(big.Int)
	}
	if b.Limit == nil {
		b.Limit = new(big.Int)
	}
}

// Clone returns a deep copy of the record.
func (b *BorrowerRecord) Clone() *BorrowerRecord {
	if b == nil {
		return nil
	}
	return &BorrowerRecord{
		Address:         b.Address,
		Shares:          common.CopyInt(b.Shares),
		DelegatedShares: common.CopyInt(b.DelegatedShares),
		Limit:           common.CopyInt(b.Limit),
	}
}

// DirectShares are the shares held by the borrower outside any delegate.
func (b *BorrowerRecord) DirectShares() *big.Int {
	b.ensure()
	direct := new(big.Int).Sub(b.Shares, b.DelegatedShares)
	if direct.Sign() < 0 {
		return new(big.Int)
	}
	return direct
}

// BorrowerView is the query shape of a borrower with its current debt.
type BorrowerView struct {
	Address crypto.Address `json:"address"`
	Shares  *big.Int       `json:"shares"`
	Debt    *big.Int       `json:"debt"`
	Limit   *big.Int       `json:"limit"`
}
