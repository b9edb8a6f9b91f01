package discover

import (
	"sort"
	"sync"

	"github.com/ethnode/discv4trie/p2p/enode"
)

// RoutingTable is the peer-membership structure the lifecycle manager
// consults when answering FindNeighbors requests and deciding whether a
// newly active peer is worth tracking.
type RoutingTable interface {
	// Add inserts peer, returning false if the table is full (or the
	// metric-aware implementation otherwise rejects it).
	Add(peer *Peer) bool
	// Contains reports whether peer is currently a member.
	Contains(peer *Peer) bool
	// Nearest returns up to n members closest to target. Implementations
	// with no distance metric configured may return members in any order.
	Nearest(target enode.NodeId, n int) []*Peer
	// Clear removes every member.
	Clear()
}

// SimpleRoutingTable is a bounded, unordered set of peers with no distance
// metric: Add rejects once the bound is reached, and Nearest returns
// whatever members exist (there being no notion of distance to order by).
type SimpleRoutingTable struct {
	mu      sync.Mutex
	bound   int
	members map[enode.NodeId]*Peer
}

// NewSimpleRoutingTable creates a table that holds at most bound peers.
func NewSimpleRoutingTable(bound int) *SimpleRoutingTable {
	return &SimpleRoutingTable{bound: bound, members: make(map[enode.NodeId]*Peer)}
}

func (t *SimpleRoutingTable) Add(peer *Peer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.members[peer.NodeID()]; ok {
		return true
	}
	if len(t.members) >= t.bound {
		return false
	}
	t.members[peer.NodeID()] = peer
	return true
}

func (t *SimpleRoutingTable) Contains(peer *Peer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.members[peer.NodeID()]
	return ok
}

func (t *SimpleRoutingTable) Nearest(target enode.NodeId, n int) []*Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Peer, 0, len(t.members))
	for _, p := range t.members {
		out = append(out, p)
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (t *SimpleRoutingTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.members = make(map[enode.NodeId]*Peer)
}

// Kademlia table constants, carried over from the teacher's bucket sizing.
const (
	KademliaBucketSize      = 16
	KademliaNumBuckets      = 512 // one bucket per possible XOR log distance over a 64-byte NodeId
	KademliaMaxReplacements = 10
)

type kademliaBucket struct {
	entries      []*Peer
	replacements []*Peer
}

// KademliaRoutingTable organizes peers into buckets indexed by XOR log
// distance from the local node, following the discv4 k-bucket scheme: each
// bucket holds up to KademliaBucketSize entries plus a small replacement
// cache, and Nearest answers a bounded closest-peers query by scanning and
// sorting all members by distance to the target.
type KademliaRoutingTable struct {
	mu      sync.RWMutex
	self    enode.NodeId
	buckets [KademliaNumBuckets]kademliaBucket
}

// NewKademliaRoutingTable creates a routing table local to self.
func NewKademliaRoutingTable(self enode.NodeId) *KademliaRoutingTable {
	return &KademliaRoutingTable{self: self}
}

// bucketIndex returns which bucket id belongs in, or -1 for the local node.
func (t *KademliaRoutingTable) bucketIndex(id enode.NodeId) int {
	dist := enode.Distance(t.self, id)
	if dist == 0 {
		return -1
	}
	return dist - 1
}

func (t *KademliaRoutingTable) Add(peer *Peer) bool {
	idx := t.bucketIndex(peer.NodeID())
	if idx < 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b := &t.buckets[idx]
	for _, e := range b.entries {
		if e.NodeID() == peer.NodeID() {
			return true
		}
	}
	if len(b.entries) < KademliaBucketSize {
		b.entries = append(b.entries, peer)
		return true
	}
	for _, e := range b.replacements {
		if e.NodeID() == peer.NodeID() {
			return false
		}
	}
	if len(b.replacements) < KademliaMaxReplacements {
		b.replacements = append(b.replacements, peer)
	}
	return false
}

func (t *KademliaRoutingTable) Contains(peer *Peer) bool {
	idx := t.bucketIndex(peer.NodeID())
	if idx < 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.buckets[idx].entries {
		if e.NodeID() == peer.NodeID() {
			return true
		}
	}
	return false
}

// Remove evicts peer's NodeId from its bucket, promoting a replacement if
// one is queued.
func (t *KademliaRoutingTable) Remove(id enode.NodeId) {
	idx := t.bucketIndex(id)
	if idx < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := &t.buckets[idx]
	for i, e := range b.entries {
		if e.NodeID() == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			if len(b.replacements) > 0 {
				b.entries = append(b.entries, b.replacements[0])
				b.replacements = b.replacements[1:]
			}
			return
		}
	}
}

func (t *KademliaRoutingTable) Nearest(target enode.NodeId, n int) []*Peer {
	t.mu.RLock()
	var all []*Peer
	for i := range t.buckets {
		all = append(all, t.buckets[i].entries...)
	}
	t.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return enode.DistCmp(target, all[i].NodeID(), all[j].NodeID()) < 0
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func (t *KademliaRoutingTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.buckets {
		t.buckets[i] = kademliaBucket{}
	}
}

// Len returns the total number of peers across all buckets.
func (t *KademliaRoutingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for i := range t.buckets {
		n += len(t.buckets[i].entries)
	}
	return n
}
