package discover

import (
	"sync"
	"time"

	"github.com/ethnode/discv4trie/p2p/enode"
)

// PeerObserver receives peer lifecycle notifications. Implementations must
// return promptly: notifications are delivered synchronously on the
// goroutine that made the change, after the affected peer's lock has been
// released; the lock is not held while an observer runs.
type PeerObserver interface {
	OnPeerAdded(p *Peer)
	OnPeerActive(p *Peer)
	OnPeerInactive(p *Peer)
	OnCapabilitiesChanged(p *Peer, prior map[string]struct{})
}

// Peer is a discovery-protocol participant. A repository guarantees at
// most one *Peer exists per NodeId for the lifetime of the process, so
// pointer identity can be relied on as a canonicality check.
type Peer struct {
	mu           sync.Mutex
	nodeID       enode.NodeId
	endpoint     enode.Endpoint
	hasEndpoint  bool
	active       bool
	capabilities map[string]struct{}
	lastSeen     time.Time
	hasLastSeen  bool

	repo *PeerRepository
}

// NodeID returns the peer's identity.
func (p *Peer) NodeID() enode.NodeId { return p.nodeID }

// Endpoint returns the peer's known network location and whether one has
// been recorded yet.
func (p *Peer) Endpoint() (enode.Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoint, p.hasEndpoint
}

// IsActive reports whether the peer has completed a ping/pong exchange.
func (p *Peer) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// LastSeen returns the last time activity was recorded for this peer.
func (p *Peer) LastSeen() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen, p.hasLastSeen
}

// Capabilities returns a snapshot of the peer's current capability set.
func (p *Peer) Capabilities() map[string]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]struct{}, len(p.capabilities))
	for c := range p.capabilities {
		out[c] = struct{}{}
	}
	return out
}

// SetCapabilities replaces the peer's capability set. A no-op while the
// peer is inactive, per the "capabilities can only be set while active"
// invariant.
func (p *Peer) SetCapabilities(caps map[string]struct{}) {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	prior := p.capabilities
	p.capabilities = caps
	p.mu.Unlock()

	for _, o := range p.repo.snapshotObservers() {
		o.OnCapabilitiesChanged(p, prior)
	}
}

// markSeen records lastSeen = now under the peer's lock.
func (p *Peer) markSeen(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.hasLastSeen = true
	p.mu.Unlock()
}

// updateEndpointIfInactive sets the endpoint when none is known yet, or when
// the peer is not active. Active peers keep their endpoint unchanged.
func (p *Peer) updateEndpointIfInactive(ep enode.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return
	}
	p.endpoint = ep
	p.hasEndpoint = true
}

// setActive marks the peer active with the given endpoint and notifies
// peer-active observers. It is a no-op if the peer is already active.
func (p *Peer) setActive(ep enode.Endpoint) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.endpoint = ep
	p.hasEndpoint = true
	p.mu.Unlock()

	for _, o := range p.repo.snapshotObservers() {
		o.OnPeerActive(p)
	}
}

// setInactive clears capabilities and marks the peer inactive, notifying
// peer-inactive observers with the capability set that was in effect.
func (p *Peer) setInactive() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	prior := p.capabilities
	p.capabilities = nil
	p.mu.Unlock()

	for _, o := range p.repo.snapshotObservers() {
		o.OnPeerInactive(p)
		if len(prior) > 0 {
			o.OnCapabilitiesChanged(p, prior)
		}
	}
}

// PeerRepository is the canonical peer store: at most one *Peer per NodeId
// is ever created, and all callers observe the same pointer.
type PeerRepository struct {
	mu        sync.Mutex
	peers     map[enode.NodeId]*Peer
	observers []PeerObserver
}

// NewPeerRepository creates an empty repository.
func NewPeerRepository() *PeerRepository {
	return &PeerRepository{peers: make(map[enode.NodeId]*Peer)}
}

// AddObserver registers an observer for peer lifecycle events. Safe to call
// concurrently with repository lookups.
func (r *PeerRepository) AddObserver(o PeerObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// RemoveObserver deregisters a previously added observer.
func (r *PeerRepository) RemoveObserver(o PeerObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ob := range r.observers {
		if ob == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *PeerRepository) snapshotObservers() []PeerObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PeerObserver, len(r.observers))
	copy(out, r.observers)
	return out
}

// Get returns the canonical Peer for nodeID, creating one (with no known
// endpoint) if absent.
func (r *PeerRepository) Get(nodeID enode.NodeId) *Peer {
	p, created := r.getOrCreate(nodeID)
	if created {
		r.notifyAdded(p)
	}
	return p
}

// GetWithEndpoint returns the canonical Peer for nodeID, creating it if
// absent. If the peer already exists and is inactive, its endpoint is
// updated; an active peer's endpoint is left untouched.
func (r *PeerRepository) GetWithEndpoint(nodeID enode.NodeId, ep enode.Endpoint) *Peer {
	p, created := r.getOrCreate(nodeID)
	if created {
		p.mu.Lock()
		p.endpoint = ep
		p.hasEndpoint = true
		p.mu.Unlock()
		r.notifyAdded(p)
		return p
	}
	p.updateEndpointIfInactive(ep)
	return p
}

// GetFromURI parses uri (per enode.ParseEnodeURI) and returns the
// corresponding canonical Peer, creating it if absent.
func (r *PeerRepository) GetFromURI(uri string) (*Peer, error) {
	nodeID, ep, err := enode.ParseEnodeURI(uri)
	if err != nil {
		return nil, err
	}
	return r.GetWithEndpoint(nodeID, ep), nil
}

func (r *PeerRepository) getOrCreate(nodeID enode.NodeId) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[nodeID]; ok {
		return p, false
	}
	p := &Peer{nodeID: nodeID, repo: r}
	r.peers[nodeID] = p
	return p, true
}

func (r *PeerRepository) notifyAdded(p *Peer) {
	for _, o := range r.snapshotObservers() {
		o.OnPeerAdded(p)
	}
}

// Lookup returns the existing Peer for nodeID without creating one.
func (r *PeerRepository) Lookup(nodeID enode.NodeId) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[nodeID]
	return p, ok
}

// Len returns the number of peers known to the repository.
func (r *PeerRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}
