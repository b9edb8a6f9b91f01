// Package expmap implements a key/value map whose entries carry an optional
// expiry instant. Reads never observe an expired entry; a background-style
// Purge call reclaims expired storage without requiring a reader to walk the
// whole map on every access.
package expmap

import (
	"container/heap"
	"sync"
	"time"
)

// unbounded is the sentinel expiry used by Put for entries that never
// expire on their own (they still leave via Remove).
var unbounded = time.Time{}

type entry[K comparable, V any] struct {
	key    K
	value  V
	expiry time.Time // zero value means unbounded
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return !e.expiry.IsZero() && !e.expiry.After(now)
}

// pqItem is the heap element: it points back at the live entry so a purge
// can check, by pointer identity, whether the mapping it was queued for has
// since been overwritten by a later Put.
type pqItem[K comparable, V any] struct {
	e     *entry[K, V]
	index int
}

type priorityQueue[K comparable, V any] []*pqItem[K, V]

func (pq priorityQueue[K, V]) Len() int { return len(pq) }
func (pq priorityQueue[K, V]) Less(i, j int) bool {
	return pq[i].e.expiry.Before(pq[j].e.expiry)
}
func (pq priorityQueue[K, V]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue[K, V]) Push(x any) {
	item := x.(*pqItem[K, V])
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue[K, V]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// Map is a thread-safe map from K to V where entries may carry a finite
// expiry. Entries with a finite expiry are ordered in an internal priority
// queue so Purge can reclaim them without scanning every key.
type Map[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	pq      priorityQueue[K, V]
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{entries: make(map[K]*entry[K, V])}
}

// Put inserts or overwrites k with an unbounded (never-expiring) entry.
func (m *Map[K, V]) Put(k K, v V) {
	m.PutWithExpiry(k, v, unbounded)
}

// PutWithExpiry inserts or overwrites k so that it expires at expiry. A
// zero expiry means unbounded. An expiry that is already ≤ now behaves as
// Remove(k).
func (m *Map[K, V]) PutWithExpiry(k K, v V, expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !expiry.IsZero() && !expiry.After(time.Now()) {
		m.removeLocked(k)
		return
	}

	e := &entry[K, V]{key: k, value: v, expiry: expiry}
	m.entries[k] = e
	if !expiry.IsZero() {
		heap.Push(&m.pq, &pqItem[K, V]{e: e})
	}
}

// Get returns the value stored for k, provided it is present and not
// expired.
func (m *Map[K, V]) Get(k K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[k]
	if !ok || e.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Contains reports whether k maps to a live, unexpired entry.
func (m *Map[K, V]) Contains(k K) bool {
	_, ok := m.Get(k)
	return ok
}

// Remove deletes k unconditionally and reports whether a live (unexpired)
// entry was removed. This is the primitive spec.md's "conditional remove"
// (e.g. the awaiting-pongs map) is built on: the caller decides what
// "matching" means by comparing the returned value before calling Remove,
// or by using RemoveIf.
func (m *Map[K, V]) Remove(k K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(k)
}

func (m *Map[K, V]) removeLocked(k K) bool {
	e, ok := m.entries[k]
	if !ok {
		return false
	}
	delete(m.entries, k)
	wasLive := !e.expired(time.Now())
	return wasLive
}

// RemoveIf atomically removes k if it is present, unexpired, and match
// returns true for its current value. It reports whether the removal
// happened. This implements the awaiting-pongs "remove on match" semantics
// of spec.md §4.8 without a separate get-then-remove race window.
func (m *Map[K, V]) RemoveIf(k K, match func(V) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[k]
	if !ok || e.expired(time.Now()) {
		return false
	}
	if !match(e.value) {
		return false
	}
	delete(m.entries, k)
	return true
}

// Len returns the number of live, unexpired entries.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for _, e := range m.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Keys returns the keys of all live, unexpired entries, in no particular
// order.
func (m *Map[K, V]) Keys() []K {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := make([]K, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.expired(now) {
			out = append(out, k)
		}
	}
	return out
}

// Values returns the values of all live, unexpired entries, in no
// particular order.
func (m *Map[K, V]) Values() []V {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := make([]V, 0, len(m.entries))
	for _, e := range m.entries {
		if !e.expired(now) {
			out = append(out, e.value)
		}
	}
	return out
}

// Purge removes every entry whose expiry is ≤ now from the priority queue
// and, when that queued reference still matches the live mapping for its
// key, from the map itself. A queued reference that no longer matches (the
// key was since overwritten by a later Put) is discarded without touching
// the newer mapping, by pointer identity.
func (m *Map[K, V]) Purge(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for m.pq.Len() > 0 {
		top := m.pq[0]
		if top.e.expiry.After(now) {
			break
		}
		heap.Pop(&m.pq)
		if live, ok := m.entries[top.e.key]; ok && live == top.e {
			delete(m.entries, top.e.key)
			purged++
		}
	}
	return purged
}
