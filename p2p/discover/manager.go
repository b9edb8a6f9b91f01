// Manager implements the peer lifecycle state machine: bootstrapping,
// ping/pong liveness, and neighbor discovery. It is grounded on the discv4
// grounding node's handlePing/handlePong/handleFindNode/handleNeighbors
// control flow, adapted to this module's repository/routing-table/observer
// split instead of that node's single flat peers map.
package discover

import (
	"net"
	"time"

	"github.com/ethnode/discv4trie/cryptoutil"
	"github.com/ethnode/discv4trie/expmap"
	"github.com/ethnode/discv4trie/log"
	"github.com/ethnode/discv4trie/p2p/enode"
)

const (
	// ExpirationPeriod is how far in the future outgoing packets set their
	// expiration timestamp.
	ExpirationPeriod = 3000 * time.Millisecond
	// PongExpiration is how long an awaiting-pong record lives before a
	// late Pong is treated as stale and ignored.
	PongExpiration = 60000 * time.Millisecond
	// MaxNeighbors bounds how many peers a single Neighbors packet lists.
	MaxNeighbors = 5
)

// Manager drives the discovery protocol: it owns the local identity, the
// peer repository, the routing table, and the transport, and turns inbound
// packets into repository/routing-table mutations and outbound packets.
type Manager struct {
	priv      *cryptoutil.PrivateKey
	self      enode.NodeId
	selfEP    enode.Endpoint
	transport Transport
	repo      *PeerRepository
	table     RoutingTable
	pending   *expmap.Map[[32]byte, enode.NodeId]
	logger    *log.Logger
	now       func() time.Time
}

// ManagerConfig bundles the collaborators a Manager needs.
type ManagerConfig struct {
	PrivateKey   *cryptoutil.PrivateKey
	Self         enode.NodeId
	SelfEndpoint enode.Endpoint
	Transport    Transport
	Repository   *PeerRepository
	Table        RoutingTable
	Logger       *log.Logger
}

// NewManager creates a Manager and registers it as the repository's
// peer-added observer, per spec: bootstrap and Neighbors-driven discovery
// both flow through repository.get(...) triggering peer-added.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		priv:      cfg.PrivateKey,
		self:      cfg.Self,
		selfEP:    cfg.SelfEndpoint,
		transport: cfg.Transport,
		repo:      cfg.Repository,
		table:     cfg.Table,
		pending:   expmap.New[[32]byte, enode.NodeId](),
		logger:    logger,
		now:       time.Now,
	}
	cfg.Repository.AddObserver(m)
	return m
}

// Bootstrap seeds the routing table from a list of enode:// URIs.
// repository.get(uri) fires OnPeerAdded for each newly created peer, which
// (per the peer-added observer below) adds it to the table and sends a
// Ping if its endpoint differs from our own.
func (m *Manager) Bootstrap(uris []string) {
	for _, uri := range uris {
		if _, err := m.repo.GetFromURI(uri); err != nil {
			m.logger.Warn("discover: bad bootstrap uri", "uri", uri, "err", err)
		}
	}
}

// OnPeerAdded implements PeerObserver. A freshly created peer with a known
// endpoint distinct from our own is added to the routing table and pinged.
func (m *Manager) OnPeerAdded(p *Peer) {
	ep, ok := p.Endpoint()
	if !ok || ep.Equal(m.selfEP) {
		return
	}
	m.table.Add(p)
	m.sendPing(p, ep)
}

// OnPeerActive implements PeerObserver: once a peer becomes active, probe
// it for more of the network via FindNeighbors targeting our own NodeId.
func (m *Manager) OnPeerActive(p *Peer) {
	ep, ok := p.Endpoint()
	if !ok {
		return
	}
	raw, _, err := EncodeFindNeighbors(m.priv, m.self, m.now().Add(ExpirationPeriod))
	if err != nil {
		m.logger.Warn("discover: encode find-neighbors failed", "err", err)
		return
	}
	m.send(raw, ep)
}

// OnPeerInactive implements PeerObserver; the lifecycle spec attaches no
// behavior to deactivation beyond the capability-clearing Peer already does.
func (m *Manager) OnPeerInactive(*Peer) {}

// OnCapabilitiesChanged implements PeerObserver; capability negotiation is
// outside the discovery wire protocol's scope.
func (m *Manager) OnCapabilitiesChanged(*Peer, map[string]struct{}) {}

func (m *Manager) sendPing(p *Peer, ep enode.Endpoint) {
	raw, hash, err := EncodePing(m.priv, m.selfEP, ep, m.now().Add(ExpirationPeriod))
	if err != nil {
		m.logger.Warn("discover: encode ping failed", "err", err)
		return
	}
	m.pending.PutWithExpiry(hash, p.NodeID(), m.now().Add(PongExpiration))
	m.send(raw, ep)
}

func (m *Manager) send(raw []byte, ep enode.Endpoint) {
	if err := m.transport.WriteTo(raw, ep.UDPAddr()); err != nil {
		m.logger.Warn("discover: send failed", "err", err)
	}
}

// HandlePacket decodes and dispatches one inbound UDP datagram. Decoding
// failures are logged and dropped without mutating any state, per the
// failure-semantics section of the lifecycle spec.
func (m *Manager) HandlePacket(from *net.UDPAddr, raw []byte) {
	pkt, sender, err := DecodePacket(raw)
	if err != nil {
		m.logger.Warn("discover: dropping malformed packet", "err", err, "from", from)
		return
	}

	switch pkt.Type {
	case PacketPing:
		m.handlePing(sender, from, pkt)
	case PacketPong:
		m.handlePong(sender, pkt)
	case PacketFindNeighbors:
		m.handleFindNeighbors(sender, pkt)
	case PacketNeighbors:
		m.handleNeighbors(sender, pkt)
	}
}

func (m *Manager) handlePing(sender enode.NodeId, from *net.UDPAddr, pkt Packet) {
	senderFrom, _, _, err := DecodePing(pkt.Payload)
	if err != nil {
		m.logger.Warn("discover: dropping malformed ping", "err", err)
		return
	}

	p := m.repo.GetWithEndpoint(sender, senderFrom)
	p.markSeen(m.now())

	ep, ok := p.Endpoint()
	if !ok {
		return
	}
	raw, _, err := EncodePong(m.priv, ep, pkt.Hash, m.now().Add(ExpirationPeriod))
	if err != nil {
		m.logger.Warn("discover: encode pong failed", "err", err)
		return
	}
	m.send(raw, ep)
}

func (m *Manager) handlePong(sender enode.NodeId, pkt Packet) {
	_, pingHash, _, err := DecodePong(pkt.Payload)
	if err != nil {
		m.logger.Warn("discover: dropping malformed pong", "err", err)
		return
	}

	matched := m.pending.RemoveIf(pingHash, func(id enode.NodeId) bool { return id == sender })
	if !matched {
		// Unsolicited or expired: the sender lookup below still adds it
		// to the repository as a side effect, but activity is untouched.
		m.repo.Get(sender)
		return
	}

	p, ok := m.repo.Lookup(sender)
	if !ok {
		return
	}
	p.markSeen(m.now())
	if !m.table.Contains(p) {
		return
	}
	ep, ok := p.Endpoint()
	if !ok {
		return
	}
	p.setActive(ep)
}

func (m *Manager) handleFindNeighbors(sender enode.NodeId, pkt Packet) {
	target, _, err := DecodeFindNeighbors(pkt.Payload)
	if err != nil {
		m.logger.Warn("discover: dropping malformed find-neighbors", "err", err)
		return
	}

	p, ok := m.repo.Lookup(sender)
	if !ok {
		p = m.repo.Get(sender)
	}
	if !p.IsActive() {
		return
	}
	ep, ok := p.Endpoint()
	if !ok {
		return
	}
	p.markSeen(m.now())

	var neighbors []Neighbor
	for _, n := range m.table.Nearest(target, MaxNeighbors) {
		nep, ok := n.Endpoint()
		if !ok {
			continue
		}
		neighbors = append(neighbors, Neighbor{NodeID: n.NodeID(), Endpoint: nep})
	}

	raw, _, err := EncodeNeighbors(m.priv, neighbors, m.now().Add(ExpirationPeriod))
	if err != nil {
		m.logger.Warn("discover: encode neighbors failed", "err", err)
		return
	}
	m.send(raw, ep)
}

func (m *Manager) handleNeighbors(sender enode.NodeId, pkt Packet) {
	neighbors, _, err := DecodeNeighbors(pkt.Payload)
	if err != nil {
		m.logger.Warn("discover: dropping malformed neighbors", "err", err)
		return
	}

	p, ok := m.repo.Lookup(sender)
	if !ok || !p.IsActive() {
		return
	}
	if _, ok := p.Endpoint(); !ok {
		return
	}
	p.markSeen(m.now())

	for _, n := range neighbors {
		if n.NodeID == m.self {
			continue
		}
		m.repo.GetWithEndpoint(n.NodeID, n.Endpoint)
	}
}
