package bank

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"ghostcredit/core/types"
	"ghostcredit/crypto"
)

var errUnknownTarget = errors.New("bank: unknown execute target")

// Handler processes a message sent to a registered target. Funds have already
// been moved to the target when Handle runs.
type Handler interface {
	Handle(sender crypto.Address, msg []byte, funds types.Coins) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(sender crypto.Address, msg []byte, funds types.Coins) error

func (f HandlerFunc) Handle(sender crypto.Address, msg []byte, funds types.Coins) error {
	return f(sender, msg, funds)
}

// Router dispatches execute calls to handlers keyed by target address.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register binds handler to target, replacing any previous binding.
func (r *Router) Register(target crypto.Address, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[string(target.Bytes())] = handler
}

func (r *Router) lookup(target crypto.Address) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[string(target.Bytes())]
	return h, ok
}

// Custody is the funds proxy used by credit accounts: balances and transfers
// come from the ledger, contract-style calls go through the router.
type Custody struct {
	Ledger *Ledger
	Router *Router
}

// NewCustody pairs a ledger with a router.
func NewCustody(ledger *Ledger, router *Router) *Custody {
	if router == nil {
		router = NewRouter()
	}
	return &Custody{Ledger: ledger, Router: router}
}

func (c *Custody) Balance(account crypto.Address, denom string) (*big.Int, error) {
	return c.Ledger.Balance(account, denom)
}

func (c *Custody) Send(from, to crypto.Address, coins types.Coins) error {
	return c.Ledger.Send(from, to, coins)
}

// Execute sends funds from account to target and invokes the target handler.
func (c *Custody) Execute(account, target crypto.Address, msg []byte, funds types.Coins) error {
	handler, ok := c.Router.lookup(target)
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownTarget, target)
	}
	if err := c.Ledger.Send(account, target, funds); err != nil {
		return err
	}
	return handler.Handle(account, msg, funds)
}
