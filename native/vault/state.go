package vault

import (
	"math/big"

	"ghostcredit/crypto"
	"ghostcredit/native/common"
)

// MaxPendingFees bounds the number of distinct recipients that can hold a
// deferred fee at once.
const MaxPendingFees = 8

// PendingFee is a fee earned while the deposit pool had no shares. The
// recipient is the one configured when the fee was earned.
type PendingFee struct {
	Recipient crypto.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

// Pending holds amounts owed to depositors and fee recipients that could not
// be credited yet.
type Pending struct {
	Interest *big.Int
	Fees     []PendingFee
}

// State is the persisted record of one vault.
type State struct {
	Deposit     SharePool
	Debt        SharePool
	Pending     Pending
	LastUpdated uint64
}

func newState() *State {
	return &State{
		Deposit: NewSharePool(),
		Debt:    NewSharePool(),
		Pending: Pending{Interest: new(big.Int)},
	}
}

func (s *State) ensure() {
	s.Deposit.ensure()
	s.Debt.ensure()
	if s.Pending.Interest == nil {
		s.Pending.Interest = new(big.Int)
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := &State{
		Deposit:     s.Deposit.Clone(),
		Debt:        s.Debt.Clone(),
		Pending:     Pending{Interest: common.CopyInt(s.Pending.Interest)},
		LastUpdated: s.LastUpdated,
	}
	for _, fee := range s.Pending.Fees {
		clone.Pending.Fees = append(clone.Pending.Fees, PendingFee{
			Recipient: fee.Recipient,
			Amount:    common.CopyInt(fee.Amount),
		})
	}
	return clone
}

// addPendingFee credits amount to recipient, merging with an existing entry.
func (p *Pending) addPendingFee(recipient crypto.Address, amount *big.Int) bool {
	for i := range p.Fees {
		if p.Fees[i].Recipient.Equal(recipient) {
			p.Fees[i].Amount = new(big.Int).Add(common.CopyInt(p.Fees[i].Amount), amount)
			return true
		}
	}
	if len(p.Fees) >= MaxPendingFees {
		return false
	}
	p.Fees = append(p.Fees, PendingFee{Recipient: recipient, Amount: common.CopyInt(amount)})
	return true
}

func (p *Pending) hasRoomFor(recipient crypto.Address) bool {
	for _, fee := range p.Fees {
		if fee.Recipient.Equal(recipient) {
			return true
		}
	}
	return len(p.Fees) < MaxPendingFees
}

// TotalFees sums all deferred fees.
func (p Pending) TotalFees() *big.Int {
	total := new(big.Int)
	for _, fee := range p.Fees {
		if fee.Amount != nil {
			total.Add(total, fee.Amount)
		}
	}
	return total
}
