// Package tcpio implements the controller's TCP transport primitives: a
// listener accepting one connection per request/response exchange, and
// timeout-aware framed recv/send of PDU_TCP segments.
package tcpio

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/erkko68/xarxes/internal/wire"
)

// ErrListen is returned when binding the local TCP listener fails.
var ErrListen = errors.New("tcpio: listen failed")

// ErrAccept is returned on a fatal (non-timeout) accept error.
var ErrAccept = errors.New("tcpio: accept failed")

// ErrRecv is returned for any recv failure other than a timeout.
var ErrRecv = errors.New("tcpio: recv failed")

// ErrSend is returned when a PDU_TCP segment could not be fully written.
var ErrSend = errors.New("tcpio: send failed")

// DefaultRecvTimeout is the default framed-read timeout for a data
// request/response exchange.
const DefaultRecvTimeout = 3 * time.Second

// Listener binds INADDR_ANY:localPort and accepts one connection per
// request/response exchange.
type Listener struct {
	ln net.Listener
}

// Listen binds localPort with a backlog of at least 5 (net.Listen's TCP
// default backlog already exceeds this). A bind failure is returned as an
// error wrapping ErrListen; it does not stop the process (the liveness
// receiver reports it as a failed handshake and the controller re-subscribes).
func Listen(localPort int) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", localPort))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListen, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close closes the listener.
func (l *Listener) Close() error { return l.ln.Close() }

// AcceptOne blocks until an incoming connection arrives.
func (l *Listener) AcceptOne() (net.Conn, net.Addr, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAccept, err)
	}
	return conn, conn.RemoteAddr(), nil
}

// Recv reads exactly wire.TCPPacketSize bytes from conn within timeout.
// Returns (nil, nil) on timeout.
func Recv(conn net.Conn, timeout time.Duration) (*wire.TCPPacket, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %v", ErrRecv, err)
	}
	buf := make([]byte, wire.TCPPacketSize)
	if _, err := readFull(conn, buf); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRecv, err)
	}
	pkt, err := wire.DecodeTCP(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecv, err)
	}
	return &pkt, nil
}

// Send writes the full wire representation of pkt to conn.
func Send(conn net.Conn, pkt wire.TCPPacket) error {
	buf := wire.EncodeTCP(pkt)
	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}

// readFull reads len(buf) bytes, returning a timeout net.Error unmodified
// so callers can classify it, and the underlying read error (io.EOF) for a
// connection that closed mid-frame.
func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Dial opens a new TCP connection to (host, port) for a controller-initiated
// exchange (SEND_DATA).
func Dial(host string, port string) (net.Conn, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("tcpio: dial: %w", err)
	}
	return conn, nil
}
