package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"ghostcredit/storage"
)

var (
	errEmptyKey        = errors.New("kv: key must not be empty")
	errUnknownSnapshot = errors.New("state: unknown snapshot")
)

type entry struct {
	value   []byte
	deleted bool
}

// Manager buffers writes above a storage.Database in journal layers. Reads see
// the newest layer first. Nothing reaches the database until Commit.
type Manager struct {
	mu     sync.RWMutex
	db     storage.Database
	layers []map[string]entry
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, layers: []map[string]entry{{}}}
}

// Snapshot opens a new journal layer and returns its identifier.
func (m *Manager) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers = append(m.layers, map[string]entry{})
	return len(m.layers) - 1
}

// RevertToSnapshot drops every write made since the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || id >= len(m.layers) {
		return fmt.Errorf("%w: %d", errUnknownSnapshot, id)
	}
	m.layers = m.layers[:id]
	return nil
}

// Commit flushes every pending layer to the database in one batch.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := m.flattenLocked()
	batch := new(storage.Batch)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := merged[k]
		if e.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), e.value)
	}
	if err := m.db.Write(batch); err != nil {
		return err
	}
	m.layers = []map[string]entry{{}}
	return nil
}

// Discard drops all pending writes.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers = []map[string]entry{{}}
}

func (m *Manager) flattenLocked() map[string]entry {
	merged := make(map[string]entry)
	for _, layer := range m.layers {
		for k, e := range layer {
			merged[k] = e
		}
	}
	return merged
}

func (m *Manager) put(key []byte, e entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[len(m.layers)-1][string(key)] = e
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.layers) - 1; i >= 0; i-- {
		if e, ok := m.layers[i][string(key)]; ok {
			if e.deleted {
				return nil, false, nil
			}
			return e.value, true, nil
		}
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(key, entry{value: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, errEmptyKey
	}
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	m.put(key, entry{deleted: true})
	return nil
}

// KVIterate visits the RLP payloads stored under prefix in key order, starting
// at start when non-nil. Pending writes shadow the database. The database is
// streamed, so nothing past the key at which fn returns false is read.
func (m *Manager) KVIterate(prefix, start []byte, fn func(key, value []byte) bool) error {
	pending := m.pendingRange(prefix, start)
	next := 0
	stopped := false
	emit := func(key, value []byte) bool {
		if !fn(key, value) {
			stopped = true
		}
		return !stopped
	}
	// drain emits pending keys ordered before limit, or all of them when
	// limit is nil.
	drain := func(limit []byte) bool {
		for ; next < len(pending); next++ {
			p := pending[next]
			if limit != nil && bytes.Compare(p.key, limit) >= 0 {
				return true
			}
			if p.deleted {
				continue
			}
			if !emit(p.key, p.value) {
				next++
				return false
			}
		}
		return true
	}

	err := m.db.Iterate(prefix, start, func(key, value []byte) bool {
		if !drain(key) {
			return false
		}
		if next < len(pending) && bytes.Equal(pending[next].key, key) {
			p := pending[next]
			next++
			if p.deleted {
				return true
			}
			return emit(p.key, p.value)
		}
		return emit(key, value)
	})
	if err != nil || stopped {
		return err
	}
	drain(nil)
	return nil
}

type pendingEntry struct {
	key []byte
	entry
}

// pendingRange returns the buffered writes under prefix at or after start,
// newest layer winning, in key order.
func (m *Manager) pendingRange(prefix, start []byte) []pendingEntry {
	m.mu.RLock()
	merged := make(map[string]entry)
	for _, layer := range m.layers {
		for k, e := range layer {
			key := []byte(k)
			if !bytes.HasPrefix(key, prefix) {
				continue
			}
			if start != nil && bytes.Compare(key, start) < 0 {
				continue
			}
			merged[k] = e
		}
	}
	m.mu.RUnlock()

	out := make([]pendingEntry, 0, len(merged))
	for k, e := range merged {
		out = append(out, pendingEntry{key: []byte(k), entry: e})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].key, out[j].key) < 0 })
	return out
}

// ParamStoreSet records a raw parameter payload.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	if name == "" {
		return errEmptyKey
	}
	m.put(paramKey(name), entry{value: append([]byte(nil), value...)})
	return nil
}

// ParamStoreGet loads a raw parameter payload.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	if name == "" {
		return nil, false, errEmptyKey
	}
	return m.get(paramKey(name))
}

func paramKey(name string) []byte {
	return append([]byte("params/"), name...)
}
