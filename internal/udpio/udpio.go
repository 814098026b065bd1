// Package udpio implements the controller's UDP transport primitives:
// full-payload send with partial-write retry, and timeout-aware receive
// of exactly one PDU_UDP datagram.
package udpio

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/erkko68/xarxes/internal/logging"
	"github.com/erkko68/xarxes/internal/wire"
)

// ErrSend is returned when a datagram could not be fully transmitted.
var ErrSend = errors.New("udpio: send failed")

// ErrRecv is returned for any recv failure other than a timeout.
var ErrRecv = errors.New("udpio: recv failed")

// Send transmits packet to (host, port) over conn, looping sendto-style
// until the full payload is written; if the OS accepts fewer bytes than
// requested it truncates the already-sent prefix and retries the
// remainder. Any other error fails fatally with ErrSend.
func Send(conn *net.UDPConn, packet []byte, host string, port int) error {
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	remaining := packet
	for len(remaining) > 0 {
		n, err := conn.WriteToUDP(remaining, addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSend, err)
		}
		if n < len(remaining) {
			logging.L().Warn("udpio_partial_send", "sent", n, "want", len(remaining))
		}
		remaining = remaining[n:]
	}
	return nil
}

// Recv performs a single read of exactly wire.UDPPacketSize bytes with the
// given deadline. On timeout it returns (nil, nil, nil); on any other
// error it returns a wrapped ErrRecv.
func Recv(conn *net.UDPConn, timeout time.Duration) (*wire.UDPPacket, *net.UDPAddr, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, fmt.Errorf("%w: set deadline: %v", ErrRecv, err)
	}
	buf := make([]byte, wire.UDPPacketSize)
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrRecv, err)
	}
	if n < wire.UDPPacketSize {
		return nil, nil, fmt.Errorf("%w: short datagram (%d bytes)", ErrRecv, n)
	}
	pkt, err := wire.DecodeUDP(buf[:n])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRecv, err)
	}
	return &pkt, addr, nil
}
