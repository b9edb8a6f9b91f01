// Package trie implements a persistent, hash-addressed Merkle Patricia
// Trie as defined in the Ethereum Yellow Paper, generic over the stored
// value type and backed by a pluggable content-addressed store.
package trie

import (
	"sync/atomic"

	"github.com/ethnode/discv4trie/common"
	"github.com/ethnode/discv4trie/future"
)

// Node is the sealed variant every trie node satisfies: nullNode,
// leafNode[V], extensionNode[V], branchNode[V], and *storedNode[V]. The
// interface carries no V-dependent method so a single concrete type
// (nullNode, *storedNode[V] aside) can satisfy Node[V] for every V.
type Node[V any] interface {
	isNode()
}

// nullNode is the canonical empty sub-trie. It has no fields, so every
// instance compares equal; Null[V]() always returns the same value.
type nullNode struct{}

func (nullNode) isNode() {}

// Null returns the canonical empty-trie node for value type V.
func Null[V any]() Node[V] { return nullNode{} }

// IsNull reports whether n is the canonical empty node.
func IsNull[V any](n Node[V]) bool {
	_, ok := n.(nullNode)
	return ok
}

// leafNode is a terminal node: Path always ends in the Terminator nibble
// and Val holds the associated value.
type leafNode[V any] struct {
	Path []byte
	Val  V
}

func (leafNode[V]) isNode() {}

// extensionNode shares a path prefix with a single child; Path never
// ends in the terminator and has length >= 1.
type extensionNode[V any] struct {
	Path  []byte
	Child Node[V]
}

func (extensionNode[V]) isNode() {}

// branchNode has exactly 16 child slots (one per nibble) and an optional
// value for paths that terminate here.
type branchNode[V any] struct {
	Children [16]Node[V]
	Val      *V
}

func (branchNode[V]) isNode() {}

// storedNode is a placeholder that resolves to one of the above variants
// by fetching Hash from a Factory's backing store. Loaded content is
// cached behind an atomic pointer (the soft reference of spec §4.5,
// rendered as plain memoization since recomputation/reload is always
// safe and Go has no weak-reference primitive); concurrent loaders
// share one in-flight retrieval via future.Slot.
type storedNode[V any] struct {
	Hash    common.Hash
	factory Factory[V]
	cached  atomic.Pointer[Node[V]]
	pending future.Slot[Node[V]]
}

func (*storedNode[V]) isNode() {}

// newStoredNode wraps hash as an unloaded placeholder resolved through
// factory. If preloaded is non-nil, the soft reference starts populated
// (used by StoredFactory right after it constructs and persists a node,
// so the caller need not immediately reload what it just built).
func newStoredNode[V any](hash common.Hash, factory Factory[V], preloaded Node[V]) *storedNode[V] {
	s := &storedNode[V]{Hash: hash, factory: factory}
	if preloaded != nil {
		s.cached.Store(&preloaded)
	}
	return s
}

// Unload clears the soft reference; the next Load call will re-fetch
// the node from the backing store.
func (s *storedNode[V]) Unload() {
	s.cached.Store(nil)
}
