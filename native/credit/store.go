package credit

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/rlp"

	"ghostcredit/crypto"
	"ghostcredit/native/common"
)

const (
	// DefaultPageSize is used when a listing asks for zero entries.
	DefaultPageSize = 30
	// MaxPageSize caps every listing regardless of the requested limit.
	MaxPageSize = 100
)

var (
	accountPrefix     = []byte("credit/account/")
	ownerPrefix       = []byte("credit/owner/")
	ownerTagPrefix    = []byte("credit/ownertag/")
	liquidationPrefix = []byte("credit/liquidation/")
	exposurePrefix    = []byte("credit/exposure/")
)

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func ratiosKey() []byte { return []byte("credit/ratios") }

func sequenceKey() []byte { return []byte("credit/sequence") }

func exposureKey(denom string) []byte { return concat(exposurePrefix, []byte(denom)) }

func accountKey(addr crypto.Address) []byte { return concat(accountPrefix, addr.Bytes()) }

func liquidationKey(addr crypto.Address) []byte { return concat(liquidationPrefix, addr.Bytes()) }

func ownerIndexPrefix(owner crypto.Address) []byte {
	return concat(ownerPrefix, owner.Bytes(), []byte("/"))
}

func ownerTagIndexPrefix(owner crypto.Address, tag string) []byte {
	return concat(ownerTagPrefix, owner.Bytes(), []byte("/"), []byte(tag), []byte("/"))
}

func (r *Registry) getAccount(addr crypto.Address) (*AccountRecord, error) {
	rec := new(AccountRecord)
	ok, err := r.state.KVGet(accountKey(addr), rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorsmod.Wrapf(common.ErrNotFound, "credit account %s", addr)
	}
	return rec, nil
}

func (r *Registry) putAccount(rec *AccountRecord) error {
	return r.state.KVPut(accountKey(rec.Address), rec)
}

func (r *Registry) indexAccount(rec *AccountRecord) error {
	if err := r.state.KVPut(concat(ownerIndexPrefix(rec.Owner), rec.Address.Bytes()), rec.Address); err != nil {
		return err
	}
	return r.state.KVPut(concat(ownerTagIndexPrefix(rec.Owner, rec.Tag), rec.Address.Bytes()), rec.Address)
}

func (r *Registry) unindexAccount(rec *AccountRecord) error {
	if err := r.state.KVDelete(concat(ownerIndexPrefix(rec.Owner), rec.Address.Bytes())); err != nil {
		return err
	}
	return r.state.KVDelete(concat(ownerTagIndexPrefix(rec.Owner, rec.Tag), rec.Address.Bytes()))
}

func (r *Registry) nextSequence() (uint64, error) {
	var seq uint64
	if _, err := r.state.KVGet(sequenceKey(), &seq); err != nil {
		return 0, err
	}
	seq++
	if err := r.state.KVPut(sequenceKey(), seq); err != nil {
		return 0, err
	}
	return seq, nil
}

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

// scanAddresses walks keys under prefix whose suffix is an address, starting
// after cursor. It returns at most limit addresses and the cursor of the next
// page, which is zero when the listing is exhausted.
func (r *Registry) scanAddresses(prefix []byte, cursor crypto.Address, limit uint32, fromValue bool) ([]crypto.Address, crypto.Address, error) {
	size := pageLimit(limit)
	var start []byte
	if !cursor.IsZero() {
		start = concat(prefix, cursor.Bytes(), []byte{0})
	}
	var (
		out     []crypto.Address
		iterErr error
	)
	err := r.state.KVIterate(prefix, start, func(key, value []byte) bool {
		var addr crypto.Address
		if fromValue {
			if err := rlp.DecodeBytes(value, &addr); err != nil {
				iterErr = err
				return false
			}
		} else {
			rec := new(AccountRecord)
			if err := rlp.DecodeBytes(value, rec); err != nil {
				iterErr = err
				return false
			}
			addr = rec.Address
		}
		out = append(out, addr)
		return len(out) <= size
	})
	if err != nil {
		return nil, crypto.Address{}, err
	}
	if iterErr != nil {
		return nil, crypto.Address{}, iterErr
	}
	var next crypto.Address
	if len(out) > size {
		out = out[:size]
		next = out[size-1]
	}
	return out, next, nil
}

func (r *Registry) loadAccounts(addrs []crypto.Address) ([]AccountRecord, error) {
	out := make([]AccountRecord, 0, len(addrs))
	for _, addr := range addrs {
		rec, err := r.getAccount(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Account returns the stored record of addr.
func (r *Registry) Account(addr crypto.Address) (*AccountRecord, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.getAccount(addr)
}

// Accounts lists every account in address order, starting after cursor.
func (r *Registry) Accounts(cursor crypto.Address, limit uint32) ([]AccountRecord, crypto.Address, error) {
	if err := r.ready(); err != nil {
		return nil, crypto.Address{}, err
	}
	addrs, next, err := r.scanAddresses(accountPrefix, cursor, limit, false)
	if err != nil {
		return nil, crypto.Address{}, err
	}
	recs, err := r.loadAccounts(addrs)
	return recs, next, err
}

// AccountsByOwner lists the accounts of owner, narrowed to tag when it is not
// empty.
func (r *Registry) AccountsByOwner(owner crypto.Address, tag string, cursor crypto.Address, limit uint32) ([]AccountRecord, crypto.Address, error) {
	if err := r.ready(); err != nil {
		return nil, crypto.Address{}, err
	}
	prefix := ownerIndexPrefix(owner)
	if tag != "" {
		prefix = ownerTagIndexPrefix(owner, tag)
	}
	addrs, next, err := r.scanAddresses(prefix, cursor, limit, true)
	if err != nil {
		return nil, crypto.Address{}, err
	}
	recs, err := r.loadAccounts(addrs)
	return recs, next, err
}

// LiquidationStatus returns the in-flight liquidation of addr, if any.
func (r *Registry) LiquidationStatus(addr crypto.Address) (*LiquidationState, bool, error) {
	if err := r.ready(); err != nil {
		return nil, false, err
	}
	return r.getLiquidation(addr)
}

func (r *Registry) getLiquidation(addr crypto.Address) (*LiquidationState, bool, error) {
	ls := new(LiquidationState)
	ok, err := r.state.KVGet(liquidationKey(addr), ls)
	if err != nil || !ok {
		return nil, false, err
	}
	return ls, true, nil
}

func (r *Registry) putLiquidation(ls *LiquidationState) error {
	return r.state.KVPut(liquidationKey(ls.Account), ls)
}
