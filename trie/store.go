package trie

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/ethnode/discv4trie/common"
)

// Store is the trie's backing-store contract (spec section 6.3): get by
// content hash, put content keyed by its own hash. Callers guarantee
// hash == keccak256(content); implementations should be idempotent for
// repeat puts of the same hash.
type Store interface {
	Get(hash common.Hash) (content []byte, found bool, err error)
	Put(hash common.Hash, content []byte) error
}

// MapStore is an in-memory Store, used by tests and by callers that
// never intend to persist a trie across process restarts.
type MapStore struct {
	mu   sync.RWMutex
	data map[common.Hash][]byte
}

// NewMapStore creates an empty in-memory store.
func NewMapStore() *MapStore {
	return &MapStore{data: make(map[common.Hash][]byte)}
}

func (m *MapStore) Get(hash common.Hash) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[hash]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

func (m *MapStore) Put(hash common.Hash, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(content))
	copy(cp, content)
	m.data[hash] = cp
	return nil
}

// Len reports the number of distinct hashes currently stored.
func (m *MapStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// trieNodeKeyPrefix namespaces trie node keys within a shared Pebble
// keyspace, mirroring the teacher's rawdb "t"-prefix convention.
var trieNodeKeyPrefix = []byte("t")

// PebbleStore adapts a github.com/cockroachdb/pebble database to Store,
// giving the pluggable backing store of spec section 3.5 a real
// persistent implementation instead of only the in-memory one the
// teacher's own trie package was built around.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if absent) a Pebble database at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("trie: open pebble store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// NewPebbleStore wraps an already-open Pebble database.
func NewPebbleStore(db *pebble.DB) *PebbleStore {
	return &PebbleStore{db: db}
}

func (p *PebbleStore) key(hash common.Hash) []byte {
	key := make([]byte, 0, len(trieNodeKeyPrefix)+len(hash))
	key = append(key, trieNodeKeyPrefix...)
	key = append(key, hash[:]...)
	return key
}

func (p *PebbleStore) Get(hash common.Hash) ([]byte, bool, error) {
	value, closer, err := p.db.Get(p.key(hash))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("trie: pebble get %s: %w", hash, err)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	if cerr := closer.Close(); cerr != nil {
		return nil, false, fmt.Errorf("trie: pebble close reader for %s: %w", hash, cerr)
	}
	return cp, true, nil
}

func (p *PebbleStore) Put(hash common.Hash, content []byte) error {
	if err := p.db.Set(p.key(hash), content, pebble.Sync); err != nil {
		return fmt.Errorf("trie: pebble put %s: %w", hash, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (p *PebbleStore) Close() error {
	return p.db.Close()
}
