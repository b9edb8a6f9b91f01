// Package enode identifies discovery peers by their raw secp256k1 public
// key and parses the enode:// URI grammar used to bootstrap them.
package enode

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"net"
	"strconv"
	"strings"
)

// NodeId is the 64-byte uncompressed secp256k1 public key (X || Y, no
// 0x04 prefix byte) that identifies a peer.
type NodeId [64]byte

// String returns the hex-encoded NodeId, without a "0x" prefix (matching
// the enode:// URI grammar's node-id segment).
func (id NodeId) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the all-zero NodeId.
func (id NodeId) IsZero() bool { return id == NodeId{} }

// ParseNodeID parses a hex-encoded 64-byte public key into a NodeId. The
// "0x" prefix is optional.
func ParseNodeID(s string) (NodeId, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return NodeId{}, fmt.Errorf("enode: invalid hex node id: %w", err)
	}
	if len(b) != 64 {
		return NodeId{}, fmt.Errorf("enode: wrong node id length %d, want 64", len(b))
	}
	var id NodeId
	copy(id[:], b)
	return id, nil
}

// DefaultTCPPort is the port assumed when an enode URI omits one.
const DefaultTCPPort = 30303

// Endpoint is a network location: a host (IPv4 or IPv6 literal) plus UDP
// and TCP ports.
type Endpoint struct {
	Host net.IP
	UDP  uint16
	TCP  uint16
}

// Equal reports whether two endpoints denote the same host and ports.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.Host.Equal(o.Host) && e.UDP == o.UDP && e.TCP == o.TCP
}

// String renders the endpoint as "host:udp/tcp".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d/%d", e.Host, e.UDP, e.TCP)
}

// UDPAddr returns the endpoint's UDP network address.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.Host, Port: int(e.UDP)}
}

var (
	ErrMissingScheme = errors.New("enode: URI must start with enode://")
	ErrMissingAt     = errors.New("enode: URI missing @ separator")
	ErrInvalidHost   = errors.New("enode: invalid or missing host")
	ErrInvalidPort   = errors.New("enode: port must be in 1..65535")
	ErrMissingNodeID = errors.New("enode: URI missing node id")
)

// ParseEnodeURI parses `enode://<hex-nodeid>@<host>[:<tcp-port>]
// [?discport=<udp-port>][&other…]` per the discovery bootstrap grammar.
// The scheme must be exactly "enode". Default TCP port is DefaultTCPPort;
// default UDP port is the TCP port unless overridden by discport. Any
// other query parameters are accepted and ignored.
func ParseEnodeURI(uri string) (NodeId, Endpoint, error) {
	const scheme = "enode://"
	if !strings.HasPrefix(uri, scheme) {
		return NodeId{}, Endpoint{}, ErrMissingScheme
	}
	rest := uri[len(scheme):]

	atIdx := strings.Index(rest, "@")
	if atIdx < 0 {
		return NodeId{}, Endpoint{}, ErrMissingAt
	}
	hexID, hostPart := rest[:atIdx], rest[atIdx+1:]
	if hexID == "" {
		return NodeId{}, Endpoint{}, ErrMissingNodeID
	}
	nodeID, err := ParseNodeID(hexID)
	if err != nil {
		return NodeId{}, Endpoint{}, err
	}

	hostPortPart, queryPart := hostPart, ""
	if qIdx := strings.Index(hostPart, "?"); qIdx >= 0 {
		hostPortPart, queryPart = hostPart[:qIdx], hostPart[qIdx+1:]
	}

	host, tcpPort, err := splitHostPort(hostPortPart)
	if err != nil {
		return NodeId{}, Endpoint{}, err
	}

	udpPort := tcpPort
	for _, param := range strings.Split(queryPart, "&") {
		if param == "" {
			continue
		}
		kv := strings.SplitN(param, "=", 2)
		if len(kv) == 2 && kv[0] == "discport" {
			dp, err := strconv.ParseUint(kv[1], 10, 16)
			if err != nil || dp == 0 {
				return NodeId{}, Endpoint{}, ErrInvalidPort
			}
			udpPort = uint16(dp)
		}
		// Other query parameters are ignored per the grammar.
	}

	return nodeID, Endpoint{Host: host, TCP: tcpPort, UDP: udpPort}, nil
}

// splitHostPort parses "host" or "host:port", defaulting the port to
// DefaultTCPPort when absent. host may be an IPv4 or IPv6 literal.
func splitHostPort(s string) (net.IP, uint16, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No ":port" present at all.
		host = s
		portStr = ""
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, 0, ErrInvalidHost
	}
	if portStr == "" {
		return ip, DefaultTCPPort, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return nil, 0, ErrInvalidPort
	}
	return ip, uint16(port), nil
}

// URI renders (id, endpoint) back into enode:// form.
func URI(id NodeId, ep Endpoint) string {
	s := fmt.Sprintf("enode://%s@%s:%d", id.String(), ep.Host.String(), ep.TCP)
	if ep.UDP != ep.TCP {
		s += fmt.Sprintf("?discport=%d", ep.UDP)
	}
	return s
}

// Distance returns the XOR log distance between two NodeIds: the bit
// position of the most significant differing bit, counted from the
// right (0 for identical ids).
func Distance(a, b NodeId) int {
	lz := 0
	for i := 0; i < len(a); i += 8 {
		ai := binary.BigEndian.Uint64(a[i : i+8])
		bi := binary.BigEndian.Uint64(b[i : i+8])
		x := ai ^ bi
		if x == 0 {
			lz += 64
			continue
		}
		lz += bits.LeadingZeros64(x)
		break
	}
	return len(a)*8 - lz
}

// DistCmp compares the distances of a and b to target, returning -1 if a
// is closer, 1 if b is closer, 0 if equidistant.
func DistCmp(target, a, b NodeId) int {
	for i := 0; i < len(target); i += 8 {
		tn := binary.BigEndian.Uint64(target[i : i+8])
		da := tn ^ binary.BigEndian.Uint64(a[i:i+8])
		db := tn ^ binary.BigEndian.Uint64(b[i:i+8])
		if da != db {
			if da > db {
				return 1
			}
			return -1
		}
	}
	return 0
}
