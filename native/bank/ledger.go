package bank

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"ghostcredit/core/events"
	"ghostcredit/core/types"
	"ghostcredit/crypto"
)

var (
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	errInvalidCoin       = errors.New("bank: coin requires a denom and a non-negative amount")
	errNilState          = errors.New("bank: state not configured")
)

const EventTypeTransfer = "bank.transfer"

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVIterate(prefix, start []byte, fn func(key, value []byte) bool) error
}

type transferEvent struct {
	evt *types.Event
}

func (e transferEvent) EventType() string { return e.evt.Type }

func (e transferEvent) Event() *types.Event { return e.evt }

// Ledger keeps per-address balances for every denom in the state store.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger returns a ledger persisting balances through state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used for transfers.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

func balancePrefix(addr crypto.Address) []byte {
	key := []byte("bank/balance/")
	key = append(key, addr.Bytes()...)
	return append(key, '/')
}

func balanceKey(addr crypto.Address, denom string) []byte {
	return append(balancePrefix(addr), denom...)
}

func checkCoin(coin types.Coin) error {
	if strings.TrimSpace(coin.Denom) == "" || coin.Amount == nil || coin.Amount.Sign() < 0 {
		return errInvalidCoin
	}
	return nil
}

// Balance returns the balance held by addr in denom.
func (l *Ledger) Balance(addr crypto.Address, denom string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	bal := new(big.Int)
	ok, err := l.state.KVGet(balanceKey(addr, denom), bal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	return bal, nil
}

// Balances lists every non-zero balance held by addr, sorted by denom.
func (l *Ledger) Balances(addr crypto.Address) (types.Coins, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	prefix := balancePrefix(addr)
	var (
		out     types.Coins
		iterErr error
	)
	err := l.state.KVIterate(prefix, nil, func(key, value []byte) bool {
		amount := new(big.Int)
		if iterErr = rlp.DecodeBytes(value, amount); iterErr != nil {
			return false
		}
		out = append(out, types.Coin{Denom: string(bytes.TrimPrefix(key, prefix)), Amount: amount})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}

func (l *Ledger) setBalance(addr crypto.Address, denom string, amount *big.Int) error {
	if amount.Sign() == 0 {
		return l.state.KVDelete(balanceKey(addr, denom))
	}
	return l.state.KVPut(balanceKey(addr, denom), amount)
}

// Mint credits coin to addr out of thin air. It is used by genesis and tests.
func (l *Ledger) Mint(addr crypto.Address, coin types.Coin) error {
	if err := checkCoin(coin); err != nil {
		return err
	}
	bal, err := l.Balance(addr, coin.Denom)
	if err != nil {
		return err
	}
	return l.setBalance(addr, coin.Denom, bal.Add(bal, coin.Amount))
}

// Transfer moves coin from one address to another.
func (l *Ledger) Transfer(from, to crypto.Address, coin types.Coin) error {
	if err := checkCoin(coin); err != nil {
		return err
	}
	if coin.Amount.Sign() == 0 || from.Equal(to) {
		return nil
	}
	fromBal, err := l.Balance(from, coin.Denom)
	if err != nil {
		return err
	}
	if fromBal.Cmp(coin.Amount) < 0 {
		return fmt.Errorf("%w: %s has %s%s, needs %s", ErrInsufficientFunds, from, fromBal, coin.Denom, coin.Amount)
	}
	toBal, err := l.Balance(to, coin.Denom)
	if err != nil {
		return err
	}
	if err := l.setBalance(from, coin.Denom, fromBal.Sub(fromBal, coin.Amount)); err != nil {
		return err
	}
	if err := l.setBalance(to, coin.Denom, toBal.Add(toBal, coin.Amount)); err != nil {
		return err
	}
	l.emitter.Emit(transferEvent{evt: &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"from":   from.String(),
			"to":     to.String(),
			"denom":  coin.Denom,
			"amount": coin.Amount.String(),
		},
	}})
	return nil
}

// Send transfers every coin in coins.
func (l *Ledger) Send(from, to crypto.Address, coins types.Coins) error {
	for _, coin := range coins.Normalize() {
		if err := l.Transfer(from, to, coin); err != nil {
			return err
		}
	}
	return nil
}
