// Packet header construction and parsing for the discovery wire protocol:
// hash(32) || signature(65) || type(1) || rlp-payload, as produced and
// verified per the indexsupply discv4 node's write/serve loop, adapted to
// this module's NodeId/Endpoint shapes and cryptoutil signing primitives.
package discover

import (
	"errors"
	"net"
	"time"

	"github.com/ethnode/discv4trie/cryptoutil"
	"github.com/ethnode/discv4trie/p2p/enode"
	"github.com/ethnode/discv4trie/rlp"
)

// PacketType identifies one of the four discovery packet kinds.
type PacketType byte

const (
	PacketPing          PacketType = 0x01
	PacketPong          PacketType = 0x02
	PacketFindNeighbors PacketType = 0x03
	PacketNeighbors     PacketType = 0x04
)

const (
	hashSize   = 32
	sigSize    = 65
	typeSize   = 1
	headerSize = hashSize + sigSize + typeSize

	// MaxPacketSize is the largest wire packet the transport will accept.
	MaxPacketSize = 1280

	pingVersion = 4
)

var (
	ErrPacketTooLarge   = errors.New("discover: packet exceeds maximum size")
	ErrPacketTooSmall   = errors.New("discover: packet smaller than header")
	ErrHashMismatch     = errors.New("discover: packet hash does not match contents")
	ErrUnknownPacket    = errors.New("discover: unknown packet type")
	ErrWrongPingVersion = errors.New("discover: ping version mismatch")
)

// Packet is a decoded discovery envelope: the fields read directly off the
// wire, before the RLP payload has been interpreted.
type Packet struct {
	Hash    [hashSize]byte
	Sig     [sigSize]byte
	Type    PacketType
	Payload []byte
}

// wireEndpoint is the [ip, udp-port, tcp-port] triple as it appears inside
// RLP payloads. A TCP port of zero (the empty string on the wire) decodes as
// the UDP port. All three elements must be present: a list that leaves out
// the TCP element does not decode.
type wireEndpoint struct {
	IP  []byte
	UDP uint16
	TCP uint16
}

func toWireEndpoint(ep enode.Endpoint) wireEndpoint {
	return wireEndpoint{IP: ep.Host, UDP: ep.UDP, TCP: ep.TCP}
}

func (w wireEndpoint) toEndpoint() enode.Endpoint {
	tcp := w.TCP
	if tcp == 0 {
		tcp = w.UDP
	}
	return enode.Endpoint{Host: net.IP(w.IP), UDP: w.UDP, TCP: tcp}
}

// PingPayload is the RLP shape of a Ping packet's data.
type PingPayload struct {
	Version    uint32
	From       wireEndpoint
	To         wireEndpoint
	Expiration uint64
}

// PongPayload is the RLP shape of a Pong packet's data.
type PongPayload struct {
	To         wireEndpoint
	PingHash   []byte
	Expiration uint64
}

// FindNeighborsPayload is the RLP shape of a FindNeighbors packet's data.
type FindNeighborsPayload struct {
	Target     []byte
	Expiration uint64
}

// neighborEntry is one [endpoint, nodeId] pair inside a Neighbors payload.
type neighborEntry struct {
	Endpoint wireEndpoint
	NodeID   []byte
}

// NeighborsPayload is the RLP shape of a Neighbors packet's data.
type NeighborsPayload struct {
	Nodes      []neighborEntry
	Expiration uint64
}

// Neighbor is a (NodeId, Endpoint) pair as consumed by callers outside the
// wire-codec layer.
type Neighbor struct {
	NodeID   enode.NodeId
	Endpoint enode.Endpoint
}

// EncodePing builds a signed Ping packet.
func EncodePing(priv *cryptoutil.PrivateKey, from, to enode.Endpoint, expiration time.Time) ([]byte, [32]byte, error) {
	payload := PingPayload{
		Version:    pingVersion,
		From:       toWireEndpoint(from),
		To:         toWireEndpoint(to),
		Expiration: uint64(expiration.Unix()),
	}
	return encodePacket(PacketPing, payload, priv)
}

// EncodePong builds a signed Pong packet echoing pingHash.
func EncodePong(priv *cryptoutil.PrivateKey, to enode.Endpoint, pingHash [32]byte, expiration time.Time) ([]byte, [32]byte, error) {
	payload := PongPayload{
		To:         toWireEndpoint(to),
		PingHash:   pingHash[:],
		Expiration: uint64(expiration.Unix()),
	}
	return encodePacket(PacketPong, payload, priv)
}

// EncodeFindNeighbors builds a signed FindNeighbors packet targeting target.
func EncodeFindNeighbors(priv *cryptoutil.PrivateKey, target enode.NodeId, expiration time.Time) ([]byte, [32]byte, error) {
	t := target
	payload := FindNeighborsPayload{
		Target:     t[:],
		Expiration: uint64(expiration.Unix()),
	}
	return encodePacket(PacketFindNeighbors, payload, priv)
}

// EncodeNeighbors builds a signed Neighbors packet listing neighbors.
func EncodeNeighbors(priv *cryptoutil.PrivateKey, neighbors []Neighbor, expiration time.Time) ([]byte, [32]byte, error) {
	nodes := make([]neighborEntry, len(neighbors))
	for i, n := range neighbors {
		id := n.NodeID
		nodes[i] = neighborEntry{Endpoint: toWireEndpoint(n.Endpoint), NodeID: id[:]}
	}
	payload := NeighborsPayload{Nodes: nodes, Expiration: uint64(expiration.Unix())}
	return encodePacket(PacketNeighbors, payload, priv)
}

// encodePacket assembles a packet: RLP-encode the payload, sign
// (type || payload), hash (sig || type || payload), and prepend the header.
// Returns the wire bytes and the packet hash.
func encodePacket(kind PacketType, payload interface{}, priv *cryptoutil.PrivateKey) ([]byte, [32]byte, error) {
	pd, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, [32]byte{}, err
	}

	signed := make([]byte, 0, typeSize+len(pd))
	signed = append(signed, byte(kind))
	signed = append(signed, pd...)

	sigHash := cryptoutil.Keccak256(signed)
	sig, err := cryptoutil.Sign(sigHash, priv)
	if err != nil {
		return nil, [32]byte{}, err
	}

	toHash := make([]byte, 0, sigSize+len(signed))
	toHash = append(toHash, sig...)
	toHash = append(toHash, signed...)
	hash := cryptoutil.Keccak256(toHash)

	out := make([]byte, 0, headerSize+len(pd))
	out = append(out, hash...)
	out = append(out, sig...)
	out = append(out, signed...)

	var h [32]byte
	copy(h[:], hash)

	if len(out) > MaxPacketSize {
		return nil, [32]byte{}, ErrPacketTooLarge
	}
	return out, h, nil
}

// DecodePacket parses a raw wire packet, verifying its hash and recovering
// the sender's NodeId from the embedded signature. It does not interpret
// the payload; callers dispatch on Packet.Type and decode accordingly.
func DecodePacket(raw []byte) (Packet, enode.NodeId, error) {
	if len(raw) > MaxPacketSize {
		return Packet{}, enode.NodeId{}, ErrPacketTooLarge
	}
	if len(raw) <= headerSize {
		return Packet{}, enode.NodeId{}, ErrPacketTooSmall
	}

	var pkt Packet
	copy(pkt.Hash[:], raw[:hashSize])
	copy(pkt.Sig[:], raw[hashSize:hashSize+sigSize])
	pkt.Type = PacketType(raw[hashSize+sigSize])
	pkt.Payload = raw[headerSize:]

	gotHash := cryptoutil.Keccak256(raw[hashSize:])
	if !equalBytes(gotHash, pkt.Hash[:]) {
		return Packet{}, enode.NodeId{}, ErrHashMismatch
	}

	sigHash := cryptoutil.Keccak256(raw[hashSize+sigSize:])
	pub, err := cryptoutil.Ecrecover(sigHash, pkt.Sig[:])
	if err != nil {
		return Packet{}, enode.NodeId{}, err
	}
	var sender enode.NodeId
	copy(sender[:], pub)

	switch pkt.Type {
	case PacketPing, PacketPong, PacketFindNeighbors, PacketNeighbors:
	default:
		return Packet{}, enode.NodeId{}, ErrUnknownPacket
	}

	return pkt, sender, nil
}

// DecodePing decodes a Ping packet's RLP payload.
func DecodePing(payload []byte) (from, to enode.Endpoint, expiration time.Time, err error) {
	var p PingPayload
	if err = rlp.DecodeBytes(payload, &p); err != nil {
		return
	}
	if p.Version != pingVersion {
		err = ErrWrongPingVersion
		return
	}
	from = p.From.toEndpoint()
	to = p.To.toEndpoint()
	expiration = time.Unix(int64(p.Expiration), 0)
	return
}

// DecodePong decodes a Pong packet's RLP payload.
func DecodePong(payload []byte) (to enode.Endpoint, pingHash [32]byte, expiration time.Time, err error) {
	var p PongPayload
	if err = rlp.DecodeBytes(payload, &p); err != nil {
		return
	}
	to = p.To.toEndpoint()
	copy(pingHash[:], p.PingHash)
	expiration = time.Unix(int64(p.Expiration), 0)
	return
}

// DecodeFindNeighbors decodes a FindNeighbors packet's RLP payload.
func DecodeFindNeighbors(payload []byte) (target enode.NodeId, expiration time.Time, err error) {
	var p FindNeighborsPayload
	if err = rlp.DecodeBytes(payload, &p); err != nil {
		return
	}
	copy(target[:], p.Target)
	expiration = time.Unix(int64(p.Expiration), 0)
	return
}

// DecodeNeighbors decodes a Neighbors packet's RLP payload.
func DecodeNeighbors(payload []byte) (neighbors []Neighbor, expiration time.Time, err error) {
	var p NeighborsPayload
	if err = rlp.DecodeBytes(payload, &p); err != nil {
		return
	}
	neighbors = make([]Neighbor, len(p.Nodes))
	for i, n := range p.Nodes {
		var id enode.NodeId
		copy(id[:], n.NodeID)
		neighbors[i] = Neighbor{NodeID: id, Endpoint: n.Endpoint.toEndpoint()}
	}
	expiration = time.Unix(int64(p.Expiration), 0)
	return
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
