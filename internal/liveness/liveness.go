// Package liveness implements the two cooperating HELLO tasks that keep a
// subscription alive: a sender that pings the server periodically, and a
// receiver that detects disconnection after three consecutive misses or a
// credential mismatch.
package liveness

import (
	"net"
	"time"

	"github.com/erkko68/xarxes/internal/metrics"
	"github.com/erkko68/xarxes/internal/session"
	"github.com/erkko68/xarxes/internal/tcpio"
	"github.com/erkko68/xarxes/internal/udpio"
	"github.com/erkko68/xarxes/internal/wire"
)

// MaxMissed is the number of consecutive receive timeouts tolerated in the
// steady loop before disconnection is declared.
const MaxMissed = 3

// Params configures the HELLO cadence and timeouts.
type Params struct {
	// Interval is the period between outbound HELLO datagrams.
	Interval time.Duration
	// InitialTimeout is the receive timeout for the first post-subscription
	// HELLO, double the steady-state timeout.
	InitialTimeout time.Duration
	// SteadyTimeout is the receive timeout used once SEND_HELLO has been reached.
	SteadyTimeout time.Duration
}

// DefaultParams matches the reference cadence: HELLO every 2s, initial
// receive timeout 4s, steady receive timeout 2s.
var DefaultParams = Params{
	Interval:       2 * time.Second,
	InitialTimeout: 4 * time.Second,
	SteadyTimeout:  2 * time.Second,
}

// RunSender sends HELLO{mac, rnd, name+","+situation} to (binding.ip,
// ctrl.Srv_UDP) every params.Interval until disc is raised.
func RunSender(conn *net.UDPConn, ctrl *session.Controller, disc *session.DisconnectSignal, params Params) {
	log := ctrl.Logger
	ticker := time.NewTicker(params.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-disc.C():
			return
		case <-ticker.C:
			binding := ctrl.Binding()
			if binding == nil {
				continue
			}
			pkt := wire.EncodeUDP(wire.UDPPacket{
				Type: wire.Hello,
				MAC:  ctrl.Identity.MAC,
				RND:  binding.RND,
				Data: ctrl.Identity.Name + "," + ctrl.Identity.Situation,
			})
			if err := udpio.Send(conn, pkt, binding.ServerIP, ctrl.Identity.SrvUDP); err != nil {
				metrics.IncError(metrics.ErrUDPSend)
				log.Warn("hello_send_failed", "error", err)
				continue
			}
			metrics.IncHelloSent()
		}
	}
}

// RunReceiver performs the initial double-timeout HELLO wait, and on a
// credential-matched reply transitions the controller to SEND_HELLO, opens
// the TCP listener on localTCPPort, and sends it on listenerCh before
// entering the steady miss-counting loop. It always closes whatever
// listener it opened before returning. Exactly one value (possibly nil) is
// sent on listenerCh.
func RunReceiver(conn *net.UDPConn, ctrl *session.Controller, disc *session.DisconnectSignal, localTCPPort int, listenerCh chan<- *tcpio.Listener, params Params) {
	log := ctrl.Logger

	got, src, err := udpio.Recv(conn, params.InitialTimeout)
	if err != nil {
		metrics.IncError(metrics.ErrUDPRecv)
		log.Warn("hello_initial_recv_error", "error", err)
		listenerCh <- nil
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}
	if got == nil {
		log.Warn("hello_initial_timeout")
		listenerCh <- nil
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}
	if got.Type == wire.HelloRej {
		metrics.IncHelloRej()
		log.Warn("hello_initial_rejected")
		listenerCh <- nil
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}

	binding := ctrl.Binding()
	if binding == nil || !binding.MatchesCredentials(got.MAC, got.RND, src.IP.String()) {
		log.Warn("hello_initial_credential_mismatch")
		sendHelloRej(conn, ctrl, src, *got)
		listenerCh <- nil
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}

	ctrl.SetStatus(session.SendHello)
	ctrl.ResetSubsAttempts()

	listener, err := tcpio.Listen(localTCPPort)
	if err != nil {
		metrics.IncError(metrics.ErrTCPBind)
		log.Error("hello_tcp_listen_failed", "error", err)
		listenerCh <- nil
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}
	listenerCh <- listener
	defer listener.Close()

	runSteadyLoop(conn, ctrl, disc, params)
}

// runSteadyLoop implements the steady-state receive loop entered once
// SEND_HELLO is reached, exiting on three consecutive misses, a HELLO_REJ,
// or a credential mismatch.
func runSteadyLoop(conn *net.UDPConn, ctrl *session.Controller, disc *session.DisconnectSignal, params Params) {
	log := ctrl.Logger
	missed := 0

	for missed < MaxMissed {
		select {
		case <-disc.C():
			return
		default:
		}

		got, src, err := udpio.Recv(conn, params.SteadyTimeout)
		if err != nil {
			metrics.IncError(metrics.ErrUDPRecv)
			log.Warn("hello_steady_recv_error", "error", err)
			missed++
			metrics.IncHelloMissed()
			continue
		}
		if got == nil {
			missed++
			metrics.IncHelloMissed()
			continue
		}
		if got.Type == wire.HelloRej {
			metrics.IncHelloRej()
			log.Warn("hello_rejected_by_server")
			ctrl.SetStatus(session.NotSubscribed)
			disc.Raise()
			return
		}

		binding := ctrl.Binding()
		if binding != nil && binding.MatchesCredentials(got.MAC, got.RND, src.IP.String()) {
			missed = 0
			continue
		}

		log.Warn("hello_steady_credential_mismatch")
		sendHelloRej(conn, ctrl, src, *got)
		ctrl.SetStatus(session.NotSubscribed)
		disc.Raise()
		return
	}

	log.Warn("hello_three_consecutive_lost")
	ctrl.SetStatus(session.NotSubscribed)
	disc.Raise()
}

// sendHelloRej echoes received back to its sender with its type flipped
// to HELLO_REJ, leaving MAC/RND/Data untouched.
func sendHelloRej(conn *net.UDPConn, ctrl *session.Controller, src *net.UDPAddr, received wire.UDPPacket) {
	metrics.IncHelloRej()
	received.Type = wire.HelloRej
	pkt := wire.EncodeUDP(received)
	if err := udpio.Send(conn, pkt, src.IP.String(), src.Port); err != nil {
		ctrl.Logger.Warn("hello_rej_send_failed", "error", err)
	}
}
