package transport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrNoData is returned by Endpoint.TryRecv when there is nothing to read;
// it is not a failure and must never be logged as one.
var ErrNoData = errors.New("transport: no data")

// pollTimeout bounds how long TryRecv blocks waiting for a datagram. It is
// the "non-blocking" knob required by §4.1: short enough that the caller's
// loop stays responsive, long enough to avoid a busy spin.
const pollTimeout = 5 * time.Millisecond

// Endpoint wraps a single non-blocking IPv4 UDP socket.
type Endpoint struct {
	conn *net.UDPConn
}

// Bind opens a UDP socket on the given port. port == 0 lets the OS pick an
// ephemeral port, used by the file-transfer data plane (§4.10).
func Bind(port int) (*Endpoint, error) {
	return BindAddr(&net.UDPAddr{IP: net.IPv4zero, Port: port})
}

// BindAddr opens a UDP socket on a specific local address, used when the
// configured serverIp is not the wildcard address.
func BindAddr(addr *net.UDPAddr) (*Endpoint, error) {
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind: %w", err)
	}
	return &Endpoint{conn: conn}, nil
}

// LocalAddr returns the bound address, including the OS-assigned port when
// Bind(0) was used.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Send writes bytes to addr. Transient failures (e.g. a momentarily
// unreachable host) are surfaced to the caller, who per §7 is expected to
// drop the packet and continue rather than treat it as fatal.
func (e *Endpoint) Send(addr *net.UDPAddr, b []byte) error {
	_, err := e.conn.WriteToUDP(b, addr)
	return err
}

// TryRecv returns the next datagram without blocking beyond pollTimeout.
// ErrNoData means "nothing arrived in time", not an error condition; any
// other error is fatal per §7 (SocketFatal).
func (e *Endpoint) TryRecv(buf []byte) (*net.UDPAddr, []byte, error) {
	if err := e.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
		return nil, nil, fmt.Errorf("transport: set deadline: %w", err)
	}
	n, addr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, ErrNoData
		}
		return nil, nil, fmt.Errorf("transport: recv: %w", err)
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return addr, out, nil
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

// AddrEqual compares two UDP addresses by family, IP, and port, per §4.1.
func AddrEqual(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}
