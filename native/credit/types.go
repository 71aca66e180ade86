package credit

import (
	"math/big"

	sdkmath "cosmossdk.io/math"

	"ghostcredit/core/types"
	"ghostcredit/crypto"
)

// Collateral is a balance held by a credit account in a listed denom.
type Collateral struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// Debt is the amount owed by a credit account to the vault of Denom.
type Debt struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// Valued pairs an item with its USD value and its risk-adjusted value.
type Valued[T any] struct {
	Value         sdkmath.LegacyDec `json:"value"`
	ValueAdjusted sdkmath.LegacyDec `json:"value_adjusted"`
	Item          T                 `json:"item"`
}

// MsgKind selects the variant of a LiquidateMsg or AccountMsg.
type MsgKind uint8

const (
	MsgExecute MsgKind = iota + 1
	MsgRepay
	MsgBorrow
	MsgSend
)

func (k MsgKind) String() string {
	switch k {
	case MsgExecute:
		return "execute"
	case MsgRepay:
		return "repay"
	case MsgBorrow:
		return "borrow"
	case MsgSend:
		return "send"
	default:
		return "unknown"
	}
}

// LiquidateMsg is one step of a liquidation: either an Execute call made from
// the account, or a Repay of the account's debt in Denom from its balance.
type LiquidateMsg struct {
	Kind   MsgKind        `json:"kind"`
	Target crypto.Address `json:"target,omitempty"`
	Msg    []byte         `json:"msg,omitempty"`
	Funds  types.Coins    `json:"funds,omitempty"`
	Denom  string         `json:"denom,omitempty"`
}

// NewExecuteStep builds an Execute liquidation step.
func NewExecuteStep(target crypto.Address, msg []byte, funds types.Coins) LiquidateMsg {
	return LiquidateMsg{Kind: MsgExecute, Target: target, Msg: append([]byte(nil), msg...), Funds: funds}
}

// NewRepayStep builds a Repay liquidation step.
func NewRepayStep(denom string) LiquidateMsg {
	return LiquidateMsg{Kind: MsgRepay, Denom: denom}
}

// AccountMsg is one owner operation on a credit account.
type AccountMsg struct {
	Kind   MsgKind        `json:"kind"`
	Coin   types.Coin     `json:"coin"`
	To     crypto.Address `json:"to,omitempty"`
	Target crypto.Address `json:"target,omitempty"`
	Msg    []byte         `json:"msg,omitempty"`
	Funds  types.Coins    `json:"funds,omitempty"`
}

func BorrowMsg(coin types.Coin) AccountMsg { return AccountMsg{Kind: MsgBorrow, Coin: coin} }

func RepayMsg(coin types.Coin) AccountMsg { return AccountMsg{Kind: MsgRepay, Coin: coin} }

func SendMsg(to crypto.Address, coin types.Coin) AccountMsg {
	return AccountMsg{Kind: MsgSend, To: to, Coin: coin}
}

func ExecuteMsg(target crypto.Address, msg []byte, funds types.Coins) AccountMsg {
	return AccountMsg{Kind: MsgExecute, Target: target, Msg: append([]byte(nil), msg...), Funds: funds}
}

// Preferences are owner-set liquidation instructions. Order ranks collateral
// denoms from first to last to be disposed of; Messages are appended to every
// liquidation queue after the liquidator's own steps.
type Preferences struct {
	Order    []string       `json:"order"`
	Messages []LiquidateMsg `json:"messages"`
}

// AccountRecord is the persisted part of a credit account.
type AccountRecord struct {
	Owner       crypto.Address `json:"owner"`
	Tag         string         `json:"tag"`
	Address     crypto.Address `json:"address"`
	Preferences Preferences    `json:"preferences"`
	// Exposure lists the collateral denoms held at the last evaluation.
	Exposure []string `json:"-" rlp:"optional"`
}

// CreditAccount is an account record valued at current prices.
type CreditAccount struct {
	AccountRecord
	Collaterals []Valued[Collateral] `json:"collaterals"`
	Debts       []Valued[Debt]       `json:"debts"`
}

// TotalCollateral sums the USD value of all collaterals.
func (a *CreditAccount) TotalCollateral() sdkmath.LegacyDec {
	total := sdkmath.LegacyZeroDec()
	for _, c := range a.Collaterals {
		total = total.Add(c.Value)
	}
	return total
}

// TotalCollateralAdjusted sums the risk-adjusted value of all collaterals.
func (a *CreditAccount) TotalCollateralAdjusted() sdkmath.LegacyDec {
	total := sdkmath.LegacyZeroDec()
	for _, c := range a.Collaterals {
		total = total.Add(c.ValueAdjusted)
	}
	return total
}

// TotalDebt sums the USD value of all debts.
func (a *CreditAccount) TotalDebt() sdkmath.LegacyDec {
	total := sdkmath.LegacyZeroDec()
	for _, d := range a.Debts {
		total = total.Add(d.Value)
	}
	return total
}

// DebtOf returns the outstanding amount owed in denom.
func (a *CreditAccount) DebtOf(denom string) *big.Int {
	for _, d := range a.Debts {
		if d.Item.Denom == denom {
			return new(big.Int).Set(d.Item.Amount)
		}
	}
	return new(big.Int)
}
