package vault

import (
	"math/big"

	"ghostcredit/crypto"
)

const (
	// DefaultPageSize is used when a listing asks for zero entries.
	DefaultPageSize = 30
	// MaxPageSize caps every listing regardless of the requested limit.
	MaxPageSize = 100
)

func pageLimit(limit uint32) int {
	switch {
	case limit == 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return int(limit)
	}
}

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVIterate(prefix, start []byte, fn func(key, value []byte) bool) error
}

type configStore interface {
	VaultConfig(denom string) (Config, error)
	SetVaultConfig(denom string, cfg Config) error
}

func vaultPrefix(denom string) []byte {
	return []byte("vault/" + denom + "/")
}

func stateKey(denom string) []byte {
	return append(vaultPrefix(denom), "state"...)
}

func borrowerKey(denom string, borrower crypto.Address) []byte {
	return append(append(vaultPrefix(denom), "borrower/"...), borrower.Bytes()...)
}

func borrowerPrefix(denom string) []byte {
	return append(vaultPrefix(denom), "borrower/"...)
}

func delegateKey(denom string, borrower, delegate crypto.Address) []byte {
	key := append(vaultPrefix(denom), "delegate/"...)
	key = append(key, borrower.Bytes()...)
	key = append(key, '/')
	return append(key, delegate.Bytes()...)
}

func depositorKey(denom string, depositor crypto.Address) []byte {
	return append(append(vaultPrefix(denom), "depositor/"...), depositor.Bytes()...)
}

func (e *Engine) loadState() (*State, error) {
	st := newState()
	ok, err := e.state.KVGet(stateKey(e.denom), st)
	if err != nil {
		return nil, err
	}
	if !ok {
		st = newState()
	}
	st.ensure()
	return st, nil
}

func (e *Engine) putState(st *State) error {
	return e.state.KVPut(stateKey(e.denom), st)
}

func (e *Engine) getBorrower(addr crypto.Address) (*BorrowerRecord, error) {
	rec := new(BorrowerRecord)
	ok, err := e.state.KVGet(borrowerKey(e.denom, addr), rec)
	if err != nil || !ok {
		return nil, err
	}
	rec.ensure()
	return rec, nil
}

func (e *Engine) putBorrower(rec *BorrowerRecord) error {
	return e.state.KVPut(borrowerKey(e.denom, rec.Address), rec)
}

func (e *Engine) loadShares(key []byte) (*big.Int, error) {
	shares := new(big.Int)
	ok, err := e.state.KVGet(key, shares)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	return shares, nil
}

func (e *Engine) putShares(key []byte, shares *big.Int) error {
	if shares.Sign() == 0 {
		return e.state.KVDelete(key)
	}
	return e.state.KVPut(key, shares)
}

func (e *Engine) delegateShares(borrower, delegate crypto.Address) (*big.Int, error) {
	return e.loadShares(delegateKey(e.denom, borrower, delegate))
}

func (e *Engine) depositorShares(depositor crypto.Address) (*big.Int, error) {
	return e.loadShares(depositorKey(e.denom, depositor))
}

func (e *Engine) creditDepositor(depositor crypto.Address, minted *big.Int) error {
	held, err := e.depositorShares(depositor)
	if err != nil {
		return err
	}
	return e.putShares(depositorKey(e.denom, depositor), held.Add(held, minted))
}
