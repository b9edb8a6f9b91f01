package trie

import (
	"fmt"

	"github.com/ethnode/discv4trie/common"
	"github.com/ethnode/discv4trie/cryptoutil"
)

// Factory constructs trie nodes, per spec section 4.4. Both conforming
// implementations build the same concrete variant; a Stored factory
// additionally persists any node whose RLP encoding is >= 32 bytes and
// hands back a Stored wrapper in its place.
type Factory[V any] interface {
	Leaf(path []byte, val V) (Node[V], error)
	Extension(path []byte, child Node[V]) (Node[V], error)
	Branch(children [16]Node[V], val *V) (Node[V], error)
	// Retrieve fetches and decodes the node stored under hash.
	Retrieve(hash common.Hash) (Node[V], error)
}

// InMemoryFactory builds nodes without ever persisting them; Retrieve
// always fails since nothing is ever written to a store.
type InMemoryFactory[V any] struct {
	Serializer Serializer[V]
}

// NewInMemoryFactory creates a Factory that never leaves memory.
func NewInMemoryFactory[V any](ser Serializer[V]) *InMemoryFactory[V] {
	return &InMemoryFactory[V]{Serializer: ser}
}

func (f *InMemoryFactory[V]) Leaf(path []byte, val V) (Node[V], error) {
	return leafNode[V]{Path: path, Val: val}, nil
}

func (f *InMemoryFactory[V]) Extension(path []byte, child Node[V]) (Node[V], error) {
	return extensionNode[V]{Path: path, Child: child}, nil
}

func (f *InMemoryFactory[V]) Branch(children [16]Node[V], val *V) (Node[V], error) {
	return branchNode[V]{Children: children, Val: val}, nil
}

func (f *InMemoryFactory[V]) Retrieve(hash common.Hash) (Node[V], error) {
	return nil, fmt.Errorf("trie: %s has no backing store to retrieve %s from", "InMemoryFactory", hash)
}

// StoredFactory builds nodes the same way InMemoryFactory does, but any
// node whose RLP encoding is >= 32 bytes is written to Store keyed by
// its keccak256 hash and replaced with a Stored wrapper. The wrapper's
// soft reference starts populated with the just-built node, so the
// caller that built it never has to immediately reload what it wrote.
type StoredFactory[V any] struct {
	Store      Store
	Serializer Serializer[V]
}

// NewStoredFactory creates a Factory that persists large nodes to store.
func NewStoredFactory[V any](store Store, ser Serializer[V]) *StoredFactory[V] {
	return &StoredFactory[V]{Store: store, Serializer: ser}
}

func (f *StoredFactory[V]) Leaf(path []byte, val V) (Node[V], error) {
	return f.maybeStore(leafNode[V]{Path: path, Val: val})
}

func (f *StoredFactory[V]) Extension(path []byte, child Node[V]) (Node[V], error) {
	return f.maybeStore(extensionNode[V]{Path: path, Child: child})
}

func (f *StoredFactory[V]) Branch(children [16]Node[V], val *V) (Node[V], error) {
	return f.maybeStore(branchNode[V]{Children: children, Val: val})
}

func (f *StoredFactory[V]) maybeStore(n Node[V]) (Node[V], error) {
	enc, err := encodeNode(n, f.Serializer)
	if err != nil {
		return nil, err
	}
	if len(enc) < 32 {
		return n, nil
	}
	hash := cryptoutil.Keccak256Hash(enc)
	if err := f.Store.Put(hash, enc); err != nil {
		return nil, fmt.Errorf("trie: persist node %s: %w", hash, err)
	}
	return newStoredNode[V](hash, f, n), nil
}

func (f *StoredFactory[V]) Retrieve(hash common.Hash) (Node[V], error) {
	data, found, err := f.Store.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("trie: retrieve %s: %w", hash, err)
	}
	if !found {
		return nil, fmt.Errorf("trie: node %s not found in store", hash)
	}
	return decodeStoredNode[V](hash, data, f, f.Serializer)
}
