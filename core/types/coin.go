package types

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Coin is an amount of a single denomination in base units.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// NewCoin returns a coin with a defensive copy of amount.
func NewCoin(denom string, amount *big.Int) Coin {
	return Coin{Denom: denom, Amount: copyInt(amount)}
}

// IsPositive reports whether the coin carries a strictly positive amount.
func (c Coin) IsPositive() bool {
	return c.Amount != nil && c.Amount.Sign() > 0
}

func (c Coin) String() string {
	return fmt.Sprintf("%s%s", copyInt(c.Amount).String(), c.Denom)
}

// Coins is a set of coins. Normalize merges duplicates and drops zero amounts.
type Coins []Coin

// Normalize returns the coins sorted by denom with duplicates merged.
func (cs Coins) Normalize() Coins {
	merged := make(map[string]*big.Int)
	for _, c := range cs {
		denom := strings.TrimSpace(c.Denom)
		if denom == "" || c.Amount == nil {
			continue
		}
		if existing, ok := merged[denom]; ok {
			existing.Add(existing, c.Amount)
			continue
		}
		merged[denom] = new(big.Int).Set(c.Amount)
	}
	out := make(Coins, 0, len(merged))
	for denom, amount := range merged {
		if amount.Sign() == 0 {
			continue
		}
		out = append(out, Coin{Denom: denom, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}

// AmountOf returns the amount held for denom, zero when absent.
func (cs Coins) AmountOf(denom string) *big.Int {
	total := new(big.Int)
	for _, c := range cs {
		if c.Denom == denom && c.Amount != nil {
			total.Add(total, c.Amount)
		}
	}
	return total
}

func (cs Coins) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
