package discover

import (
	"errors"
	"net"
)

var errNotUDPAddr = errors.New("discover: transport returned a non-UDP address")

// Transport sends and receives raw discovery packets. UDPTransport is the
// production implementation over a net.PacketConn; tests substitute an
// in-memory fake wired directly to a peer manager.
type Transport interface {
	WriteTo(b []byte, addr *net.UDPAddr) error
	ReadFrom(buf []byte) (n int, addr *net.UDPAddr, err error)
}

// UDPTransport adapts a net.PacketConn to the Transport interface, mirroring
// the discv4 grounding node's read/serve/write loop.
type UDPTransport struct {
	conn net.PacketConn
}

// NewUDPTransport wraps an already-bound net.PacketConn.
func NewUDPTransport(conn net.PacketConn) *UDPTransport {
	return &UDPTransport{conn: conn}
}

func (t *UDPTransport) WriteTo(b []byte, addr *net.UDPAddr) error {
	_, err := t.conn.WriteTo(b, addr)
	return err
}

func (t *UDPTransport) ReadFrom(buf []byte) (int, *net.UDPAddr, error) {
	n, addr, err := t.conn.ReadFrom(buf)
	if err != nil {
		return n, nil, err
	}
	uaddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return n, nil, errNotUDPAddr
	}
	return n, uaddr, nil
}

// Serve reads packets from t in a loop, dispatching each to handle, until
// ReadFrom returns an error (typically because the connection was closed).
func Serve(t Transport, handle func(from *net.UDPAddr, raw []byte)) error {
	buf := make([]byte, MaxPacketSize)
	for {
		n, addr, err := t.ReadFrom(buf)
		if err != nil {
			return err
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		handle(addr, raw)
	}
}
