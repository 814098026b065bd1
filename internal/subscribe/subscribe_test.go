package subscribe

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/erkko68/xarxes/internal/identity"
	"github.com/erkko68/xarxes/internal/session"
	"github.com/erkko68/xarxes/internal/udpio"
	"github.com/erkko68/xarxes/internal/wire"
)

func listenLocal(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testParams() Params {
	return Params{T: 10 * time.Millisecond, U: 10 * time.Millisecond, N: 3, O: 2, P: 2, Q: 3}
}

func newTestController(server string, srvPort int) *session.Controller {
	id := identity.Identity{
		Name: "CTRL0001", Situation: "B01L02R03A04", MAC: "A1B2C3D4E5F6",
		LocalTCP: 9000, SrvUDP: srvPort, Server: server,
	}
	return session.New(id, identity.NewElements([]string{"TMP-1-O"}))
}

func TestRunHappyPath(t *testing.T) {
	server := listenLocal(t)
	serverPort := server.LocalAddr().(*net.UDPAddr).Port
	client := listenLocal(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, src, err := udpio.Recv(server, time.Second)
		if err != nil || req == nil {
			t.Errorf("server recv SUBS_REQ: %v", err)
			return
		}
		ackInfoConn := listenLocal(t)
		ackPort := ackInfoConn.LocalAddr().(*net.UDPAddr).Port
		ack := wire.EncodeUDP(wire.UDPPacket{Type: wire.SubsAck, MAC: "SRVMAC000001", RND: "R0000ABCD", Data: strconv.Itoa(ackPort)})
		if err := udpio.Send(server, ack, src.IP.String(), src.Port); err != nil {
			t.Errorf("server send SUBS_ACK: %v", err)
			return
		}

		info, _, err := udpio.Recv(ackInfoConn, time.Second)
		if err != nil || info == nil || info.Type != wire.SubsInfo {
			t.Errorf("server recv SUBS_INFO: %+v err=%v", info, err)
			return
		}
		reply := wire.EncodeUDP(wire.UDPPacket{Type: wire.InfoAck, MAC: "SRVMAC000001", RND: "R0000ABCD", Data: "12500"})
		if err := udpio.Send(ackInfoConn, reply, src.IP.String(), src.Port); err != nil {
			t.Errorf("server send INFO_ACK: %v", err)
		}
	}()

	ctrl := newTestController("127.0.0.1", serverPort)
	if err := Run(client, ctrl, testParams()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-done

	if got := ctrl.Status(); got != session.Subscribed {
		t.Fatalf("expected SUBSCRIBED, got %s", got)
	}
	b := ctrl.Binding()
	// The SUBS_ACK RND "R0000ABCD" crosses a 9-byte field and arrives as its first 8 chars.
	if b == nil || b.ServerTCPPort != "12500" || b.RND != "R0000ABC" {
		t.Fatalf("unexpected binding: %+v", b)
	}
}

func TestRunSubsRejAbortsAttemptImmediately(t *testing.T) {
	server := listenLocal(t)
	serverPort := server.LocalAddr().(*net.UDPAddr).Port
	client := listenLocal(t)

	received := make(chan struct{}, 1)
	go func() {
		req, src, err := udpio.Recv(server, time.Second)
		if err != nil || req == nil {
			return
		}
		received <- struct{}{}
		rej := wire.EncodeUDP(wire.UDPPacket{Type: wire.SubsRej, MAC: "SRVMAC000001", RND: "00000000"})
		_ = udpio.Send(server, rej, src.IP.String(), src.Port)
	}()

	ctrl := newTestController("127.0.0.1", serverPort)
	err := Run(client, ctrl, testParams())
	if err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	select {
	case <-received:
	default:
		t.Fatalf("server never received a SUBS_REQ")
	}
	if got := ctrl.Status(); got != session.Disconnected {
		t.Fatalf("expected DISCONNECTED after exhaustion, got %s", got)
	}
}

// TestAttemptOnceWaitLadderBounded covers the ladder for t=20ms, n=7, p=3,
// q=3, where the per-packet wait is t,t,t,2t,3t,3t,3t, never growing past
// q*t=3t. The server answers every SUBS_REQ with SUBS_NACK at once, so the
// attempt sends all n packets; the test checks that all n arrive and that
// no gap between consecutive SUBS_REQ exceeds q*t.
func TestAttemptOnceWaitLadderBounded(t *testing.T) {
	server := listenLocal(t)
	serverPort := server.LocalAddr().(*net.UDPAddr).Port
	client := listenLocal(t)

	params := Params{T: 20 * time.Millisecond, U: 20 * time.Millisecond, N: 7, O: 1, P: 3, Q: 3}
	recvTimes := make([]time.Time, 0, params.N)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < params.N; i++ {
			req, src, err := udpio.Recv(server, time.Second)
			if err != nil || req == nil {
				t.Errorf("server recv SUBS_REQ %d: %v", i+1, err)
				return
			}
			recvTimes = append(recvTimes, time.Now())
			nack := wire.EncodeUDP(wire.UDPPacket{Type: wire.SubsNack, MAC: "SRVMAC000001", RND: "00000000"})
			if err := udpio.Send(server, nack, src.IP.String(), src.Port); err != nil {
				t.Errorf("server send SUBS_NACK %d: %v", i+1, err)
				return
			}
		}
	}()

	ctrl := newTestController("127.0.0.1", serverPort)
	ok, wait, err := attemptOnce(client, ctrl, params)
	<-done
	if err != nil {
		t.Fatalf("attemptOnce: %v", err)
	}
	if ok {
		t.Fatalf("expected attempt to be exhausted, got ok=true wait=%v", wait)
	}
	if len(recvTimes) != params.N {
		t.Fatalf("server saw %d of %d SUBS_REQ packets", len(recvTimes), params.N)
	}

	maxWait := time.Duration(params.Q) * params.T
	tolerance := 10 * time.Millisecond
	for i := 1; i < len(recvTimes); i++ {
		gap := recvTimes[i].Sub(recvTimes[i-1])
		if gap > maxWait+tolerance {
			t.Fatalf("gap between packet %d and %d was %v, exceeds q*t=%v (+%v tolerance)", i, i+1, gap, maxWait, tolerance)
		}
	}
}

func TestRunNoServerExhausts(t *testing.T) {
	client := listenLocal(t)
	// Nothing is listening on this port.
	deadConn := listenLocal(t)
	deadPort := deadConn.LocalAddr().(*net.UDPAddr).Port
	deadConn.Close()

	ctrl := newTestController("127.0.0.1", deadPort)
	start := time.Now()
	err := Run(client, ctrl, testParams())
	if err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("took too long: %v", elapsed)
	}
}
