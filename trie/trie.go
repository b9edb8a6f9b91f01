package trie

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethnode/discv4trie/common"
)

// ErrNotFound is returned by Get when key has no entry in the trie.
var ErrNotFound = errors.New("trie: key not found")

// Trie is a persistent, hash-addressed Merkle Patricia Trie (spec
// sections 3.5 and 4), generic over the stored value type V. Every
// mutation walks the current root through the pure get/put/remove
// visitors of visitor.go and replaces the root pointer with whatever
// they return; a Factory interposes any persistence side effects
// (spec section 4.4), so the same Trie type serves both a purely
// in-memory trie and one backed by a content-addressed Store.
type Trie[V any] struct {
	root    Node[V]
	factory Factory[V]
	ser     Serializer[V]
}

// New creates an empty, purely in-memory trie: nothing it builds is
// ever written to a backing store, and Commit is a no-op beyond
// reporting the root hash.
func New[V any](ser Serializer[V]) *Trie[V] {
	return &Trie[V]{root: Null[V](), factory: NewInMemoryFactory(ser), ser: ser}
}

// NewStored creates an empty trie whose nodes of RLP size >= 32 bytes
// are persisted to store as they are built.
func NewStored[V any](store Store, ser Serializer[V]) *Trie[V] {
	return &Trie[V]{root: Null[V](), factory: NewStoredFactory(store, ser), ser: ser}
}

// NewFromRoot reopens a previously committed trie at hash, lazily
// loading nodes from factory's backing store as traversals need them.
// hash must be the empty-trie root or a hash previously returned by
// Commit against a store factory reaches into.
func NewFromRoot[V any](hash common.Hash, factory Factory[V], ser Serializer[V]) *Trie[V] {
	if hash == emptyRoot {
		return &Trie[V]{root: Null[V](), factory: factory, ser: ser}
	}
	return &Trie[V]{root: newStoredNode[V](hash, factory, nil), factory: factory, ser: ser}
}

// Get retrieves the value stored under key, or ErrNotFound if key has
// no entry. It may suspend (spec section 5) whenever the walk crosses
// an unloaded Stored node.
func (t *Trie[V]) Get(ctx context.Context, key []byte) (V, error) {
	var zero V
	n, err := get(ctx, t.root, BytesToPath(key))
	if err != nil {
		return zero, err
	}
	switch n := n.(type) {
	case leafNode[V]:
		return n.Val, nil
	case branchNode[V]:
		if n.Val != nil {
			return *n.Val, nil
		}
	}
	return zero, ErrNotFound
}

// Put inserts or replaces the value stored under key.
func (t *Trie[V]) Put(ctx context.Context, key []byte, val V) error {
	n, err := put(ctx, t.root, BytesToPath(key), val, t.factory)
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

// Delete removes key's entry, if any. Deleting an absent key is a no-op.
func (t *Trie[V]) Delete(ctx context.Context, key []byte) error {
	n, err := remove(ctx, t.root, BytesToPath(key), t.factory)
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

// RootHash returns the trie's current content hash: keccak256 of the
// root node's RLP, or the well-known empty-trie root (spec section
// 6.4) when the trie holds nothing.
func (t *Trie[V]) RootHash() (common.Hash, error) {
	return HashOf(t.root, t.ser)
}

// Commit forces the root node itself to be written to the backing
// store under its own hash, even if its RLP encoding is under 32
// bytes (and so would otherwise only ever be inlined into a parent's
// rlpRef, never addressed directly). It is a no-op beyond computing
// the hash for an in-memory-only trie. Call Commit before handing the
// returned hash to NewFromRoot in a later process.
func (t *Trie[V]) Commit() (common.Hash, error) {
	hash, err := HashOf(t.root, t.ser)
	if err != nil {
		return common.Hash{}, err
	}
	if IsNull(t.root) {
		return hash, nil
	}
	if _, alreadyStored := t.root.(*storedNode[V]); alreadyStored {
		return hash, nil
	}
	sf, ok := t.factory.(*StoredFactory[V])
	if !ok {
		return hash, nil
	}
	enc, err := encodeNode(t.root, t.ser)
	if err != nil {
		return common.Hash{}, err
	}
	if err := sf.Store.Put(hash, enc); err != nil {
		return common.Hash{}, fmt.Errorf("trie: commit root %s: %w", hash, err)
	}
	t.root = newStoredNode[V](hash, sf, t.root)
	return hash, nil
}
