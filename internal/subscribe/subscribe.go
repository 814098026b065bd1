// Package subscribe implements the controller's subscription handshake: a
// deterministic retry ladder over UDP that drives the controller from
// NOT_SUBSCRIBED through WAIT_ACK_SUBS and WAIT_ACK_INFO to SUBSCRIBED.
package subscribe

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/erkko68/xarxes/internal/metrics"
	"github.com/erkko68/xarxes/internal/session"
	"github.com/erkko68/xarxes/internal/udpio"
	"github.com/erkko68/xarxes/internal/wire"
)

// Params configures the retry ladder. Field names mirror the reference
// ladder's symbolic parameters: T is the base per-packet wait, U is the
// inter-attempt pause, N is packets per attempt, O is the max number of
// attempts, P is the packet index after which the wait starts growing, and
// Q bounds the wait at Q*T.
type Params struct {
	T time.Duration
	U time.Duration
	N int
	O int
	P int
	Q int
}

// DefaultParams matches the reference ladder: t=1s, u=2s, n=7, o=3, p=3, q=3.
var DefaultParams = Params{
	T: time.Second,
	U: 2 * time.Second,
	N: 7,
	O: 3,
	P: 3,
	Q: 3,
}

// ErrExhausted is returned when all O attempts fail to produce a
// subscription.
var ErrExhausted = errors.New("subscribe: exhausted subscription attempts")

const subsReqRND = "00000000"

// Run drives the subscription engine to completion: it performs up to
// params.O attempts against conn, installing a ServerBinding on ctrl and
// advancing its status on success. On exhaustion it sets status
// DISCONNECTED and returns ErrExhausted. Returns any transport error from
// udpio immediately (a fatal send/recv failure, not a protocol timeout).
func Run(conn *net.UDPConn, ctrl *session.Controller, params Params) error {
	log := ctrl.Logger
	for attempt := 0; attempt < params.O; attempt++ {
		ctrl.IncSubsAttempts()
		metrics.IncSubsAttempts()
		log.Info("subscribe_attempt_start", "attempt", attempt+1, "max", params.O)

		ok, wait, err := attemptOnce(conn, ctrl, params)
		if err != nil {
			return err
		}
		if ok {
			if err := completeInfoPhase(conn, ctrl, wait); err != nil {
				return err
			}
			if ctrl.Status() == session.Subscribed {
				log.Info("subscribe_succeeded")
				return nil
			}
			log.Warn("subscribe_info_phase_failed")
		}

		if attempt < params.O-1 {
			time.Sleep(params.U)
		}
	}

	ctrl.SetStatus(session.Disconnected)
	log.Error("subscribe_exhausted", "attempts", params.O)
	return ErrExhausted
}

// attemptOnce runs the SUBS_REQ loop for one attempt (up to params.N
// packets, growing wait). It returns (true, wait, nil) once a SUBS_ACK has
// been received and SUBS_INFO has been sent, at which point ctrl.Status()
// is WAIT_ACK_INFO and the caller must complete the INFO phase using the
// returned (current, possibly grown) wait as the INFO_ACK timeout. It
// returns (false, 0, nil) if the attempt is exhausted or rejected, and a
// non-nil error only for a fatal transport failure.
func attemptOnce(conn *net.UDPConn, ctrl *session.Controller, params Params) (bool, time.Duration, error) {
	log := ctrl.Logger
	wait := params.T
	maxWait := time.Duration(params.Q) * params.T

	for k := 0; k < params.N; k++ {
		reqData := ctrl.Identity.Name + "," + ctrl.Identity.Situation
		pkt := wire.EncodeUDP(wire.UDPPacket{
			Type: wire.SubsReq,
			MAC:  ctrl.Identity.MAC,
			RND:  subsReqRND,
			Data: reqData,
		})
		if err := udpio.Send(conn, pkt, ctrl.Identity.Server, ctrl.Identity.SrvUDP); err != nil {
			metrics.IncError(metrics.ErrUDPSend)
			return false, 0, fmt.Errorf("subscribe: send SUBS_REQ: %w", err)
		}
		metrics.IncSubsReq()
		ctrl.SetStatus(session.WaitAckSubs)

		got, src, err := udpio.Recv(conn, wait)
		if err != nil {
			metrics.IncError(metrics.ErrUDPRecv)
			return false, 0, fmt.Errorf("subscribe: recv: %w", err)
		}

		switch {
		case got == nil:
			log.Info("subs_req_timeout", "packet", k+1, "wait", wait)
			if wait+params.T <= maxWait && (k+1) >= params.P {
				wait += params.T
			}

		case got.Type == wire.SubsAck:
			metrics.IncSubsAck()
			binding := session.ServerBinding{
				ServerMAC: got.MAC,
				ServerIP:  src.IP.String(),
				RND:       got.RND,
			}
			ctrl.SetBinding(binding)

			newPort, err := strconv.Atoi(strings.TrimSpace(got.Data))
			if err != nil {
				log.Error("subs_ack_bad_port", "data", got.Data)
				return false, 0, nil
			}

			infoData := strconv.Itoa(ctrl.Identity.LocalTCP) + "," + strings.Join(ctrl.Elements.Keys(), ";")
			infoPkt := wire.EncodeUDP(wire.UDPPacket{
				Type: wire.SubsInfo,
				MAC:  ctrl.Identity.MAC,
				RND:  binding.RND,
				Data: infoData,
			})
			if err := udpio.Send(conn, infoPkt, binding.ServerIP, newPort); err != nil {
				metrics.IncError(metrics.ErrUDPSend)
				return false, 0, fmt.Errorf("subscribe: send SUBS_INFO: %w", err)
			}
			ctrl.SetStatus(session.WaitAckInfo)
			return true, wait, nil

		case got.Type == wire.SubsNack:
			metrics.IncSubsNack()
			ctrl.SetStatus(session.NotSubscribed)
			if wait+params.T <= maxWait && (k+1) >= params.P {
				wait += params.T
			}

		case got.Type == wire.SubsRej:
			metrics.IncSubsRej()
			ctrl.SetStatus(session.NotSubscribed)
			return false, 0, nil

		default:
			metrics.IncSubsRej()
			log.Warn("subs_unexpected_packet", "type", got.Type.String())
			ctrl.SetStatus(session.NotSubscribed)
			return false, 0, nil
		}
	}

	return false, 0, nil
}

// completeInfoPhase performs the single WAIT_ACK_INFO recv after SUBS_INFO
// has been sent, using wait (the current, possibly grown, per-packet wait
// attemptOnce was using when it received SUBS_ACK) as the INFO_ACK timeout.
func completeInfoPhase(conn *net.UDPConn, ctrl *session.Controller, wait time.Duration) error {
	log := ctrl.Logger

	got, _, err := udpio.Recv(conn, wait)
	if err != nil {
		metrics.IncError(metrics.ErrUDPRecv)
		return fmt.Errorf("subscribe: recv INFO_ACK: %w", err)
	}

	binding := ctrl.Binding()
	if got == nil {
		log.Warn("info_ack_timeout")
		ctrl.SetStatus(session.NotSubscribed)
		return nil
	}
	if got.Type != wire.InfoAck || binding == nil || got.MAC != binding.ServerMAC || got.RND != binding.RND {
		log.Warn("info_ack_rejected", "type", got.Type.String())
		ctrl.SetStatus(session.NotSubscribed)
		return nil
	}

	ctrl.UpdateBinding(func(b *session.ServerBinding) {
		b.ServerTCPPort = strings.TrimSpace(got.Data)
	})
	ctrl.SetStatus(session.Subscribed)
	return nil
}
